package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-classroom-api/internal/domain"
)

// --- mocks ---

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessions) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return m.Called(ctx, sessionID, updates).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeSigner struct{ signed []string }

func (f *fakeSigner) Sign(userID, role, sessionID string) (string, error) {
	f.signed = append(f.signed, userID+"/"+role+"/"+sessionID)
	return "bearer-token", nil
}

// --- helpers ---

func userWithPassword(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		UserID:       "u1",
		Username:     "alice",
		PasswordHash: string(hash),
		Role:         domain.RoleStudent,
		Enable:       true,
	}
}

// --- tests ---

func TestLogin_Success(t *testing.T) {
	sessions := &mockSessions{}
	users := &mockUsers{}
	signer := &fakeSigner{}
	svc := NewService(sessions, users, signer)

	users.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "secret"), nil)
	sessions.On("Put", mock.Anything, mock.Anything).Return(nil)

	res, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "bearer-token", res.Bearer)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.Session)
	assert.Equal(t, "u1", res.Session.UserID)
	assert.True(t, res.Session.Enable)
	require.Len(t, signer.signed, 1)
	assert.Contains(t, signer.signed[0], "u1/student/")
}

func TestLogin_WrongPasswordUnauthorized(t *testing.T) {
	sessions := &mockSessions{}
	users := &mockUsers{}
	svc := NewService(sessions, users, &fakeSigner{})

	users.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "secret"), nil)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	sessions.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_UnknownUserUnauthorizedNotNotFound(t *testing.T) {
	sessions := &mockSessions{}
	users := &mockUsers{}
	svc := NewService(sessions, users, &fakeSigner{})

	users.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "x"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	// Credential probing must not reveal which usernames exist.
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestLogin_DisabledAccountRejected(t *testing.T) {
	sessions := &mockSessions{}
	users := &mockUsers{}
	svc := NewService(sessions, users, &fakeSigner{})

	u := userWithPassword(t, "secret")
	u.Enable = false
	users.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "secret"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_RotatesToken(t *testing.T) {
	sessions := &mockSessions{}
	users := &mockUsers{}
	signer := &fakeSigner{}
	svc := NewService(sessions, users, signer)

	sess := &domain.Session{
		SessionID:        "sess-1",
		UserID:           "u1",
		Enable:           true,
		RefreshToken:     "old-token",
		RefreshExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	sessions.On("GetByRefreshToken", mock.Anything, "old-token").Return(sess, nil)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Role: domain.RoleStudent}, nil)
	sessions.On("Update", mock.Anything, "sess-1", mock.Anything).Return(nil)

	bearer, newToken, err := svc.Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", bearer)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, "old-token", newToken)
}

func TestRefresh_ExpiredTokenRejected(t *testing.T) {
	sessions := &mockSessions{}
	svc := NewService(sessions, &mockUsers{}, &fakeSigner{})

	sess := &domain.Session{
		SessionID:        "sess-1",
		Enable:           true,
		RefreshExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}
	sessions.On("GetByRefreshToken", mock.Anything, "stale").Return(sess, nil)

	_, _, err := svc.Refresh(context.Background(), "stale")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout_DisablesSession(t *testing.T) {
	sessions := &mockSessions{}
	svc := NewService(sessions, &mockUsers{}, &fakeSigner{})

	sessions.On("Update", mock.Anything, "sess-1", map[string]interface{}{"enable": false}).Return(nil)
	require.NoError(t, svc.Logout(context.Background(), "sess-1"))
	sessions.AssertExpectations(t)
}
