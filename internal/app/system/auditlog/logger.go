// Package auditlog records authentication events to zap, the audit_logs
// collection, or both.
package auditlog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/store/audit"
	"github.com/dalemusser/filesmanager/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Mode selects where events go. The empty Mode behaves like ModeAll.
type Mode string

const (
	ModeAll Mode = "all"
	ModeDB  Mode = "db"
	ModeLog Mode = "log"
	ModeOff Mode = "off"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeDB, ModeLog, ModeOff, "":
		return m, nil
	}
	return "", fmt.Errorf("unknown audit mode %q", s)
}

func (m Mode) toLog() bool { return m == "" || m == ModeAll || m == ModeLog }
func (m Mode) toDB() bool  { return m == "" || m == ModeAll || m == ModeDB }

// Sink persists audit events. *audit.Store implements it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records auth events. A nil *Logger records nothing.
type Logger struct {
	sink Sink
	log  *zap.Logger
	mode Mode
}

func New(sink Sink, log *zap.Logger, mode Mode) *Logger {
	return &Logger{sink: sink, log: log, mode: mode}
}

type clientKey struct{}

type client struct{ ip, userAgent string }

// WithClient stores r's client address and user agent in ctx; events
// logged with that context inherit them.
func WithClient(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: network.ClientIP(r), userAgent: r.UserAgent()})
}

// Log sends event to the configured destinations, filling IP and user
// agent from the context when unset. A failed write is logged, never
// returned: auditing must not break the request.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil || l.mode == ModeOff {
		return
	}
	if c, ok := ctx.Value(clientKey{}).(client); ok {
		if event.IP == "" {
			event.IP = c.ip
		}
		if event.UserAgent == "" {
			event.UserAgent = c.userAgent
		}
	}

	if l.mode.toLog() {
		l.write(event)
	}
	if l.mode.toDB() && l.sink != nil {
		if err := l.sink.Log(ctx, event); err != nil {
			l.log.Error("failed to store audit event", zap.String("event_type", event.EventType), zap.Error(err))
		}
	}
}

func (l *Logger) write(e audit.Event) {
	fields := make([]zap.Field, 0, 8+len(e.Details))
	fields = append(fields,
		zap.Bool("audit", true),
		zap.String("category", e.Category),
		zap.String("event_type", e.EventType),
		zap.Bool("success", e.Success),
		zap.String("ip", e.IP),
	)
	if e.UserID != nil {
		fields = append(fields, zap.String("user_id", e.UserID.Hex()))
	}
	if e.Email != "" {
		fields = append(fields, zap.String("email", e.Email))
	}
	if e.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", e.FailureReason))
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	level := zap.InfoLevel
	if !e.Success {
		level = zap.WarnLevel
	}
	l.log.Log(level, "audit event", fields...)
}

func authEvent(eventType string, userID *primitive.ObjectID, email string) audit.Event {
	return audit.Event{Category: audit.CategoryAuth, EventType: eventType, UserID: userID, Email: email}
}

func succeeded(e audit.Event) audit.Event {
	e.Success = true
	return e
}

func failed(e audit.Event, reason string) audit.Event {
	e.FailureReason = reason
	return e
}

func (l *Logger) UserRegistered(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, succeeded(authEvent(audit.EventUserRegistered, &userID, email)))
}

func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, succeeded(authEvent(audit.EventLoginSuccess, &userID, email)))
}

// LoginMalformed is a /connect whose Authorization header did not parse.
func (l *Logger) LoginMalformed(ctx context.Context) {
	l.Log(ctx, failed(authEvent(audit.EventLoginMalformed, nil, ""), "malformed authorization header"))
}

func (l *Logger) LoginFailedUserNotFound(ctx context.Context, email string) {
	l.Log(ctx, failed(authEvent(audit.EventLoginFailedUserNotFound, nil, email), "user not found"))
}

func (l *Logger) LoginFailedWrongPassword(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, failed(authEvent(audit.EventLoginFailedWrongPassword, &userID, email), "wrong password"))
}

// LoginLockedOut records a refused login; until is kept as an RFC 3339
// detail when known.
func (l *Logger) LoginLockedOut(ctx context.Context, email string, until *time.Time) {
	e := failed(authEvent(audit.EventLoginLockedOut, nil, email), "too many failed attempts")
	if until != nil {
		e.Details = map[string]string{"locked_until": until.UTC().Format(time.RFC3339)}
	}
	l.Log(ctx, e)
}

func (l *Logger) Logout(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, succeeded(authEvent(audit.EventLogout, &userID, "")))
}
