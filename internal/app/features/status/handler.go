// internal/app/features/status/handler.go
package status

import (
	"context"
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/features/errors"
	"github.com/dalemusser/filesmanager/internal/app/features/health"
	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Counter reports the number of documents in a collection.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Handler serves the unauthenticated /status and /stats endpoints.
type Handler struct {
	redis  health.Pinger
	db     health.Pinger
	users  Counter
	files  Counter
	errLog *errors.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a status Handler.
func NewHandler(redis, db health.Pinger, users, files Counter, errLog *errors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		redis:  redis,
		db:     db,
		users:  users,
		files:  files,
		errLog: errLog,
		logger: logger,
	}
}

// StatusResponse reports backing store reachability.
type StatusResponse struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

// StatsResponse reports document counts.
type StatsResponse struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

// Status answers 200 with the reachability of Redis and MongoDB. A store
// being down is reported in the body, not as an error.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := StatusResponse{
		Redis: h.alive(ctx, "redis", h.redis),
		DB:    h.alive(ctx, "db", h.db),
	}
	jsonutil.OK(w, resp)
}

func (h *Handler) alive(ctx context.Context, name string, p health.Pinger) bool {
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("status: ping failed", zap.String("service", name), zap.Error(err))
		return false
	}
	return true
}

// Stats answers with the number of users and file nodes.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.users.Count(ctx)
	if err != nil {
		h.errLog.Respond(w, r, "count users failed", err)
		return
	}
	files, err := h.files.Count(ctx)
	if err != nil {
		h.errLog.Respond(w, r, "count files failed", err)
		return
	}
	jsonutil.OK(w, StatsResponse{Users: users, Files: files})
}
