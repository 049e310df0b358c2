package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-classroom-api/internal/domain"
)

// --- mocks ---

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) ListByReceiver(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *mockRepo) ListAll(ctx context.Context) ([]domain.Notification, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *mockRepo) MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, notificationID string) error {
	return m.Called(ctx, notificationID).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) GetMany(ctx context.Context, userIDs []string) ([]domain.User, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).([]domain.User), args.Error(1)
}

// --- fixtures ---

func testGroup() *domain.Group {
	return &domain.Group{
		GroupID:      "g1",
		Name:         "algebra",
		InstructorID: "instructor-1",
		StudentIDs:   []string{"student-1", "student-2"},
	}
}

func testStudents() []domain.User {
	return []domain.User{
		{UserID: "student-1", Username: "alice"},
		{UserID: "student-2", Username: "bob"},
	}
}

// --- fan-out ---

func TestNotifyGroupMessage_SnapshotCapturesMembership(t *testing.T) {
	repo := &mockRepo{}
	users := &mockUsers{}
	svc := NewService(repo, users)

	group := testGroup()
	users.On("GetMany", mock.Anything, group.StudentIDs).Return(testStudents(), nil)
	users.On("Get", mock.Anything, "instructor-1").Return(&domain.User{UserID: "instructor-1", Username: "prof"}, nil)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	sender := &domain.User{UserID: "student-1", Username: "alice"}
	msg := &domain.Message{MessageID: "m1", GroupID: "g1"}

	n, err := svc.NotifyGroupMessage(context.Background(), group, sender, msg)
	require.NoError(t, err)

	assert.NotEmpty(t, n.NotificationID)
	assert.Equal(t, domain.NotificationGroupMessage, n.Type)
	assert.Equal(t, "alice sent a new message to the group algebra", n.Message)
	require.NotNil(t, n.SenderID)
	assert.Equal(t, "student-1", *n.SenderID)
	require.NotNil(t, n.RelatedMessageID)
	assert.Equal(t, "m1", *n.RelatedMessageID)

	require.NotNil(t, n.Group)
	assert.Equal(t, "g1", n.Group.GroupID)
	assert.Equal(t, "algebra", n.Group.Name)
	require.NotNil(t, n.Group.Instructor)
	assert.Equal(t, "instructor-1", n.Group.Instructor.UserID)
	assert.Equal(t, "prof", n.Group.Instructor.Username)
	require.Len(t, n.Group.Students, 2)
	assert.Equal(t, "alice", n.Group.Students[0].Username)
	assert.Equal(t, "bob", n.Group.Students[1].Username)

	repo.AssertCalled(t, "Put", mock.Anything, n)
}

func TestNotifyGroupMessage_MissingInstructorTolerated(t *testing.T) {
	repo := &mockRepo{}
	users := &mockUsers{}
	svc := NewService(repo, users)

	group := testGroup()
	users.On("GetMany", mock.Anything, group.StudentIDs).Return(testStudents(), nil)
	users.On("Get", mock.Anything, "instructor-1").Return(nil, domain.ErrNotFound)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	n, err := svc.NotifyGroupMessage(context.Background(), group,
		&domain.User{UserID: "student-1", Username: "alice"},
		&domain.Message{MessageID: "m1"})
	require.NoError(t, err)
	assert.Nil(t, n.Group.Instructor)
	assert.Len(t, n.Group.Students, 2)
}

func TestNotifyDirectMessage_AddressedToRecipient(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	sender := &domain.User{UserID: "u1", Username: "alice"}
	recipient := &domain.User{UserID: "u2", Username: "bob"}

	n, err := svc.NotifyDirectMessage(context.Background(), sender, recipient, &domain.Message{MessageID: "m1"})
	require.NoError(t, err)

	assert.Equal(t, domain.NotificationUserMessage, n.Type)
	assert.Equal(t, "alice sent you a message", n.Message)
	require.NotNil(t, n.ReceiverID)
	assert.Equal(t, "u2", *n.ReceiverID)
	assert.Nil(t, n.Group)
}

func TestNotifyRiskFlagChange_TextTracksDirection(t *testing.T) {
	repo := &mockRepo{}
	users := &mockUsers{}
	svc := NewService(repo, users)

	group := testGroup()
	users.On("GetMany", mock.Anything, group.StudentIDs).Return(testStudents(), nil)
	users.On("Get", mock.Anything, "instructor-1").Return(&domain.User{UserID: "instructor-1"}, nil)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	flagged, err := svc.NotifyRiskFlagChange(context.Background(), group, true, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationRiskFlag, flagged.Type)
	assert.Equal(t, "group algebra has been flagged at risk", flagged.Message)
	assert.Nil(t, flagged.SenderID)

	cleared, err := svc.NotifyRiskFlagChange(context.Background(), group, false, &domain.User{UserID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "group algebra is no longer flagged at risk", cleared.Message)
	require.NotNil(t, cleared.SenderID)
	assert.Equal(t, "admin-1", *cleared.SenderID)
}

// --- read side ---

func TestListForCaller_FiltersToAudience(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})

	receiver := "student-1"
	other := "student-9"
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	directMine := domain.Notification{NotificationID: "direct-mine", ReceiverID: &receiver, CreatedAt: base}
	all := []domain.Notification{
		directMine,
		{NotificationID: "direct-other", ReceiverID: &other, CreatedAt: base.Add(30 * time.Second)},
		{NotificationID: "group-mine", CreatedAt: base.Add(time.Minute), Group: &domain.GroupSnapshot{
			Students: []domain.UserRef{{UserID: "student-1"}},
		}},
		{NotificationID: "group-other", CreatedAt: base.Add(2 * time.Minute), Group: &domain.GroupSnapshot{
			Students: []domain.UserRef{{UserID: "student-9"}},
		}},
	}
	repo.On("ListByReceiver", mock.Anything, "student-1").Return([]domain.Notification{directMine}, nil)
	repo.On("ListAll", mock.Anything).Return(all, nil)

	caller := domain.Identity{UserID: "student-1", Role: domain.RoleStudent}
	got, err := svc.ListForCaller(context.Background(), caller)
	require.NoError(t, err)

	// Direct ones come from the receiver index; the scan contributes only the
	// snapshot-audience ones, so direct-mine appears once despite being in both.
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, "group-mine", got[0].NotificationID)
	assert.Equal(t, "direct-mine", got[1].NotificationID)
}

func TestListForCaller_DirectServedByReceiverIndex(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})

	receiver := "student-1"
	direct := []domain.Notification{{NotificationID: "n1", ReceiverID: &receiver}}
	repo.On("ListByReceiver", mock.Anything, "student-1").Return(direct, nil)
	repo.On("ListAll", mock.Anything).Return([]domain.Notification{}, nil)

	caller := domain.Identity{UserID: "student-1", Role: domain.RoleStudent}
	got, err := svc.ListForCaller(context.Background(), caller)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].NotificationID)
	repo.AssertCalled(t, "ListByReceiver", mock.Anything, "student-1")
}

func TestListForCaller_AdminSeesEverything(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})

	all := []domain.Notification{{NotificationID: "n1"}, {NotificationID: "n2"}}
	repo.On("ListAll", mock.Anything).Return(all, nil)

	admin := domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
	got, err := svc.ListForCaller(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMarkAsRead_OutsideAudienceForbidden(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})

	receiver := "student-2"
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{
		NotificationID: "n1",
		ReceiverID:     &receiver,
	}, nil)

	caller := domain.Identity{UserID: "student-1", Role: domain.RoleStudent}
	_, err := svc.MarkAsRead(context.Background(), "n1", caller)
	require.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
}

func TestMarkAsRead_ReceiverAllowed(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, &mockUsers{})

	receiver := "student-1"
	stored := &domain.Notification{NotificationID: "n1", ReceiverID: &receiver}
	read := &domain.Notification{NotificationID: "n1", ReceiverID: &receiver, Read: true}
	repo.On("Get", mock.Anything, "n1").Return(stored, nil)
	repo.On("MarkAsRead", mock.Anything, "n1").Return(read, nil)

	caller := domain.Identity{UserID: "student-1", Role: domain.RoleStudent}
	n, err := svc.MarkAsRead(context.Background(), "n1", caller)
	require.NoError(t, err)
	assert.True(t, n.Read)
}
