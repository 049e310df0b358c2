package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-classroom-api/internal/domain"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) SoftDelete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func validRequest() domain.CreateUserRequest {
	sid := 12345
	return domain.CreateUserRequest{
		Username:  "alice",
		Password:  "hunter22",
		FullName:  "Alice Doe",
		Email:     "alice@example.com",
		Role:      "student",
		StudentID: &sid,
	}
}

func TestRegister_Student(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, domain.ErrNotFound)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	u, err := svc.Register(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, u.UserID)
	assert.Equal(t, domain.RoleStudent, u.Role)
	require.NotNil(t, u.StudentID)
	assert.Equal(t, 12345, *u.StudentID)
	assert.True(t, u.Enable)

	// Password is stored as a bcrypt hash, never in the clear.
	assert.NotEqual(t, "hunter22", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))
}

func TestRegister_StudentWithoutStudentIDRejected(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	req := validRequest()
	req.StudentID = nil
	_, err := svc.Register(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrValidation)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRegister_InstructorWithStudentIDRejected(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	req := validRequest()
	req.Role = "instructor"
	_, err := svc.Register(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegister_UnknownRoleRejected(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	req := validRequest()
	req.Role = "principal"
	_, err := svc.Register(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegister_TakenUsernameConflict(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	repo.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{UserID: "u0", Username: "alice"}, nil)

	_, err := svc.Register(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrConflict)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestDelete_MissingUserNotFound(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	repo.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	err := svc.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
	repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDelete_SoftDeletes(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	repo.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	repo.On("SoftDelete", mock.Anything, "u1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "u1"))
	repo.AssertExpectations(t)
}
