// Package errors answers failed requests in the API's {"error": reason}
// shape and logs the faults clients cannot act on.
package errors

import (
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorLogger logs request-scoped faults.
type ErrorLogger struct {
	logger *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log records err at Error level with the request's method, path and
// request id, plus any extra fields.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error, fields ...zap.Field) {
	base := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		base = append(base, zap.String("request_id", id))
	}
	e.logger.Error(msg, append(base, fields...)...)
}

// Respond writes err as {"error": reason}. Internal and pipeline faults
// are logged under msg; the client only sees the opaque reason.
func (e *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	switch jsonutil.WriteError(w, err).Kind {
	case apierr.Internal, apierr.PipelineFailure:
		e.Log(r, msg, err, fields...)
	}
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	jsonutil.Error(w, http.StatusNotFound, apierr.ReasonNotFound)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}
