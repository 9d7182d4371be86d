package welcome

import (
	"context"
	"errors"
	"testing"

	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/jobrunner"
	"github.com/dalemusser/filesmanager/internal/app/system/mailer"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeUsers struct {
	users map[primitive.ObjectID]*models.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, userstore.ErrNotFound
}

type fakeSender struct {
	sent []mailer.Email
	err  error
}

func (s *fakeSender) Send(e mailer.Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, e)
	return nil
}

func newUsers() (*fakeUsers, *models.User) {
	u := &models.User{ID: primitive.NewObjectID(), Email: "bob@dylan.com"}
	return &fakeUsers{users: map[primitive.ObjectID]*models.User{u.ID: u}}, u
}

func TestHandle_LogsWelcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	users, u := newUsers()
	g := New(users, nil, "Files Manager", zap.New(core))

	result, err := g.Handle(context.Background(), Payload(u.ID))
	require.NoError(t, err)
	assert.Equal(t, false, result["mailed"])
	assert.Equal(t, 1, logs.FilterMessage("Welcome bob@dylan.com!").Len())
}

func TestHandle_SendsMail(t *testing.T) {
	users, u := newUsers()
	sender := &fakeSender{}
	g := New(users, sender, "Files Manager", zap.NewNop())

	result, err := g.Handle(context.Background(), Payload(u.ID))
	require.NoError(t, err)
	assert.Equal(t, true, result["mailed"])
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "bob@dylan.com", sender.sent[0].To)
	assert.Equal(t, "Welcome to Files Manager", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].TextBody, "bob@dylan.com")
}

func TestHandle_MailFailureRetries(t *testing.T) {
	users, u := newUsers()
	g := New(users, &fakeSender{err: errors.New("smtp down")}, "Files Manager", zap.NewNop())

	_, err := g.Handle(context.Background(), Payload(u.ID))
	require.Error(t, err)
	assert.False(t, jobrunner.IsPermanent(err))
}

func TestHandle_PermanentFailures(t *testing.T) {
	users, _ := newUsers()
	g := New(users, nil, "Files Manager", zap.NewNop())

	tests := []struct {
		name    string
		payload map[string]any
		want    error
	}{
		{"missing userId", map[string]any{}, ErrMissingUserID},
		{"wrong type", map[string]any{"userId": 42}, ErrMissingUserID},
		{"malformed id", map[string]any{"userId": "nope"}, ErrUserNotFound},
		{"unknown user", Payload(primitive.NewObjectID()), ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Handle(context.Background(), tt.payload)
			require.Error(t, err)
			assert.True(t, jobrunner.IsPermanent(err))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandle_StoreErrorRetries(t *testing.T) {
	g := New(&fakeUsers{err: errors.New("mongo down")}, nil, "Files Manager", zap.NewNop())

	_, err := g.Handle(context.Background(), Payload(primitive.NewObjectID()))
	require.Error(t, err)
	assert.False(t, jobrunner.IsPermanent(err))
}
