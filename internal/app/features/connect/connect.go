// Package connect issues and revokes session tokens.
package connect

import (
	"context"
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/features/errors"
	"github.com/dalemusser/filesmanager/internal/app/system/auditlog"
	"github.com/dalemusser/filesmanager/internal/app/system/authn"
	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Authenticator logs users in and out. *authn.Authenticator implements it.
type Authenticator interface {
	Login(ctx context.Context, authorization string) (string, error)
	Logout(ctx context.Context, token string) error
}

// Handler serves /connect and /disconnect.
type Handler struct {
	auth   Authenticator
	errLog *errors.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a connect Handler.
func NewHandler(auth Authenticator, errLog *errors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{auth: auth, errLog: errLog, logger: logger}
}

// MountRootEndpoints adds /connect and /disconnect on the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/connect", h.connect)
	r.Get("/disconnect", h.disconnect)
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	token, err := h.auth.Login(auditlog.WithClient(ctx, r), r.Header.Get("Authorization"))
	if err != nil {
		h.errLog.Respond(w, r, "login failed", err)
		return
	}
	jsonutil.OK(w, tokenResponse{Token: token})
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.auth.Logout(auditlog.WithClient(ctx, r), authn.TokenFrom(r)); err != nil {
		h.errLog.Respond(w, r, "logout failed", err)
		return
	}
	jsonutil.NoContent(w)
}
