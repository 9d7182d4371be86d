// Package authn turns Basic credentials into session tokens and tokens
// back into users.
package authn

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/store/sessions"
	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/auditlog"
	"github.com/dalemusser/filesmanager/internal/app/system/authutil"
	"github.com/dalemusser/filesmanager/internal/app/system/normalize"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Token"

// Users looks up accounts.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// HashUpgrader is implemented by user stores that can replace a stored
// password hash. When Users also implements it, hashes that
// authutil.NeedsRehash flags are rewritten as bcrypt after a successful
// login.
type HashUpgrader interface {
	UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
}

// Sessions mints, resolves and revokes tokens. *sessions.Store implements it.
type Sessions interface {
	Create(ctx context.Context, userID primitive.ObjectID) (string, error)
	Resolve(ctx context.Context, token string) (primitive.ObjectID, error)
	Delete(ctx context.Context, token string) error
}

// Limiter throttles repeated login failures. *ratelimit.Store implements it.
type Limiter interface {
	CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time)
	RecordFailure(ctx context.Context, email string) (lockedOut bool, lockedUntil *time.Time)
	ClearOnSuccess(ctx context.Context, email string) error
}

// Authenticator implements login, logout and token resolution.
type Authenticator struct {
	users    Users
	sessions Sessions
	limiter  Limiter
	audit    *auditlog.Logger
	logger   *zap.Logger
}

// New creates an Authenticator. limiter and audit may be nil.
func New(users Users, sessions Sessions, limiter Limiter, audit *auditlog.Logger, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		audit:    audit,
		logger:   logger,
	}
}

// TokenFrom returns the session token sent with r.
func TokenFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// ParseBasic decodes an "Authorization: Basic ..." header value into an
// email and password. The password may contain ':'.
func ParseBasic(header string) (email, password string, ok bool) {
	scheme, encoded, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	email, password, found = strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	email = normalize.Email(email)
	if email == "" || password == "" {
		return "", "", false
	}
	return email, password, true
}

// Login verifies the Basic credentials in authorization and returns a new
// session token. Every credential problem is reported as Unauthorized.
func (a *Authenticator) Login(ctx context.Context, authorization string) (string, error) {
	email, password, ok := ParseBasic(authorization)
	if !ok {
		a.audit.LoginMalformed(ctx)
		return "", apierr.ErrUnauthorized
	}

	if a.limiter != nil {
		if allowed, _, until := a.limiter.CheckAllowed(ctx, email); !allowed {
			a.audit.LoginLockedOut(ctx, email, until)
			return "", apierr.ErrUnauthorized
		}
	}

	user, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		a.recordFailure(ctx, email)
		a.audit.LoginFailedUserNotFound(ctx, email)
		return "", apierr.ErrUnauthorized
	}
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}

	if !authutil.CheckPassword(password, user.PasswordHash) {
		a.recordFailure(ctx, email)
		a.audit.LoginFailedWrongPassword(ctx, user.ID, email)
		return "", apierr.ErrUnauthorized
	}

	if authutil.NeedsRehash(user.PasswordHash) {
		a.upgradeHash(ctx, user, password)
	}

	if a.limiter != nil {
		if err := a.limiter.ClearOnSuccess(ctx, email); err != nil {
			a.logger.Warn("failed to clear login attempts", zap.String("email", email), zap.Error(err))
		}
	}

	token, err := a.sessions.Create(ctx, user.ID)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}

	a.audit.LoginSuccess(ctx, user.ID, email)
	return token, nil
}

// upgradeHash stores a fresh bcrypt hash for user. Failures are logged
// and never fail the login.
func (a *Authenticator) upgradeHash(ctx context.Context, user *models.User, password string) {
	up, ok := a.users.(HashUpgrader)
	if !ok {
		return
	}
	hash, err := authutil.HashPassword(password)
	if err == nil {
		err = up.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		a.logger.Warn("password hash upgrade failed", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return
	}
	a.logger.Info("password hash upgraded", zap.String("user_id", user.ID.Hex()))
}

func (a *Authenticator) recordFailure(ctx context.Context, email string) {
	if a.limiter == nil {
		return
	}
	if lockedOut, until := a.limiter.RecordFailure(ctx, email); lockedOut {
		a.audit.LoginLockedOut(ctx, email, until)
	}
}

// Resolve returns the user owning token. Unknown, expired and orphaned
// tokens are Unauthorized.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apierr.ErrUnauthorized
	}
	userID, err := a.sessions.Resolve(ctx, token)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, apierr.ErrUnauthorized
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}

	user, err := a.users.GetByID(ctx, userID)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, apierr.ErrUnauthorized
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}
	return user, nil
}

// Logout revokes token. A token that does not resolve to a user is
// Unauthorized, so logging out twice fails the second time.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	user, err := a.Resolve(ctx, token)
	if err != nil {
		return err
	}

	err = a.sessions.Delete(ctx, token)
	if errors.Is(err, sessions.ErrNotFound) {
		return apierr.ErrUnauthorized
	}
	if err != nil {
		return apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}

	a.audit.Logout(ctx, user.ID)
	return nil
}
