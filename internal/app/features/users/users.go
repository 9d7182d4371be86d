// Package users provides account registration and the current-user endpoint.
package users

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/features/errors"
	jobstore "github.com/dalemusser/filesmanager/internal/app/store/jobs"
	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/auditlog"
	"github.com/dalemusser/filesmanager/internal/app/system/authn"
	"github.com/dalemusser/filesmanager/internal/app/system/authutil"
	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	"github.com/dalemusser/filesmanager/internal/app/system/normalize"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/dalemusser/filesmanager/internal/app/system/welcome"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Store creates accounts. *userstore.Store implements it.
type Store interface {
	Create(ctx context.Context, email, passwordHash string) (models.User, error)
}

// Authenticator resolves session tokens.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Enqueuer submits background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload map[string]any) (jobstore.Job, error)
}

// Handler serves /users.
type Handler struct {
	store       Store
	auth        Authenticator
	queue       Enqueuer
	auditLogger *auditlog.Logger
	errLog      *errors.ErrorLogger
	logger      *zap.Logger
}

// NewHandler creates a users Handler.
func NewHandler(store Store, auth Authenticator, queue Enqueuer, auditLogger *auditlog.Logger, errLog *errors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		auth:        auth,
		queue:       queue,
		auditLogger: auditLogger,
		errLog:      errLog,
		logger:      logger,
	}
}

// Routes returns a chi.Router with the /users endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.register)
	r.Get("/me", h.me)
	return r
}

// View is the public form of an account.
type View struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req registerRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		req = registerRequest{}
	}

	email := normalize.Email(req.Email)
	if email == "" {
		jsonutil.WriteError(w, apierr.ErrMissingEmail)
		return
	}
	if req.Password == "" {
		jsonutil.WriteError(w, apierr.ErrMissingPassword)
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		h.errLog.Respond(w, r, "hash password failed", err)
		return
	}

	user, err := h.store.Create(ctx, email, hash)
	if stderrors.Is(err, userstore.ErrDuplicateEmail) {
		jsonutil.WriteError(w, apierr.ErrAlreadyExists)
		return
	}
	if err != nil {
		h.errLog.Respond(w, r, "create user failed", err)
		return
	}

	h.auditLogger.UserRegistered(auditlog.WithClient(ctx, r), user.ID, user.Email)

	if _, err := h.queue.Enqueue(ctx, welcome.Queue, welcome.JobType, welcome.Payload(user.ID)); err != nil {
		h.logger.Error("failed to enqueue welcome job",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}

	jsonutil.Created(w, View{ID: user.ID.Hex(), Email: user.Email})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.auth.Resolve(ctx, authn.TokenFrom(r))
	if err != nil {
		h.errLog.Respond(w, r, "resolve token failed", err)
		return
	}
	jsonutil.OK(w, View{ID: user.ID.Hex(), Email: user.Email})
}
