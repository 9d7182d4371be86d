// Package welcome greets newly registered users from a background job.
package welcome

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/jobrunner"
	"github.com/dalemusser/filesmanager/internal/app/system/mailer"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	Queue   = "users"
	JobType = "user.welcome"
)

var (
	ErrMissingUserID = apierr.New(apierr.PipelineFailure, "Missing userId")
	ErrUserNotFound  = apierr.New(apierr.PipelineFailure, "User not found")
)

// Users looks up accounts. *userstore.Store implements it.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Sender delivers email. *mailer.Mailer implements it.
type Sender interface {
	Send(email mailer.Email) error
}

// Greeter handles user.welcome jobs.
type Greeter struct {
	users   Users
	mail    Sender // nil when mail is disabled
	appName string
	logger  *zap.Logger
}

// New creates a Greeter. mail may be nil.
func New(users Users, mail Sender, appName string, logger *zap.Logger) *Greeter {
	return &Greeter{users: users, mail: mail, appName: appName, logger: logger}
}

// Payload builds the job payload for a new user.
func Payload(userID primitive.ObjectID) map[string]any {
	return map[string]any{"userId": userID.Hex()}
}

// Handle is the jobrunner.Handler for user.welcome.
func (g *Greeter) Handle(ctx context.Context, payload map[string]any) (map[string]any, error) {
	hex, _ := payload["userId"].(string)
	if hex == "" {
		return nil, jobrunner.Permanent(ErrMissingUserID)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, jobrunner.Permanent(ErrUserNotFound)
	}

	user, err := g.users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, jobrunner.Permanent(ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	g.logger.Info("Welcome " + user.Email + "!")

	mailed := false
	if g.mail != nil {
		text, html := mailer.WelcomeEmail(mailer.WelcomeEmailData{AppName: g.appName, Email: user.Email})
		if err := g.mail.Send(mailer.Email{
			To:       user.Email,
			Subject:  "Welcome to " + g.appName,
			TextBody: text,
			HTMLBody: html,
		}); err != nil {
			return nil, fmt.Errorf("send welcome email: %w", err)
		}
		mailed = true
	}

	return map[string]any{"email": user.Email, "mailed": mailed}, nil
}
