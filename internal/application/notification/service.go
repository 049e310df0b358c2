package notification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/pkg/id"
)

// Repository is the persistence surface the fan-out engine needs.
type Repository interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByReceiver(ctx context.Context, userID string) ([]domain.Notification, error)
	ListAll(ctx context.Context) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error)
	Delete(ctx context.Context, notificationID string) error
}

// UserReader resolves user ids into snapshot entries.
type UserReader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetMany(ctx context.Context, userIDs []string) ([]domain.User, error)
}

// Service derives the audience for an event and persists one notification
// record addressed to it. Group audiences are captured as a point-in-time
// snapshot: later membership changes never rewrite notification history.
type Service interface {
	NotifyGroupMessage(ctx context.Context, group *domain.Group, sender *domain.User, msg *domain.Message) (*domain.Notification, error)
	NotifyDirectMessage(ctx context.Context, sender, recipient *domain.User, msg *domain.Message) (*domain.Notification, error)
	NotifyRiskFlagChange(ctx context.Context, group *domain.Group, atRisk bool, actor *domain.User) (*domain.Notification, error)

	ListForCaller(ctx context.Context, caller domain.Identity) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string, caller domain.Identity) (*domain.Notification, error)
	Delete(ctx context.Context, notificationID string) error
}

type service struct {
	repo  Repository
	users UserReader
}

func NewService(repo Repository, users UserReader) Service {
	return &service{repo: repo, users: users}
}

func (s *service) NotifyGroupMessage(ctx context.Context, group *domain.Group, sender *domain.User, msg *domain.Message) (*domain.Notification, error) {
	snapshot, err := s.snapshot(ctx, group)
	if err != nil {
		return nil, err
	}
	senderID := sender.UserID
	n := &domain.Notification{
		NotificationID:   id.New(),
		Type:             domain.NotificationGroupMessage,
		Message:          fmt.Sprintf("%s sent a new message to the group %s", sender.Username, group.Name),
		SenderID:         &senderID,
		RelatedMessageID: &msg.MessageID,
		Group:            snapshot,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist group notification: %w", err)
	}
	return n, nil
}

func (s *service) NotifyDirectMessage(ctx context.Context, sender, recipient *domain.User, msg *domain.Message) (*domain.Notification, error) {
	senderID := sender.UserID
	receiverID := recipient.UserID
	n := &domain.Notification{
		NotificationID:   id.New(),
		Type:             domain.NotificationUserMessage,
		Message:          fmt.Sprintf("%s sent you a message", sender.Username),
		SenderID:         &senderID,
		ReceiverID:       &receiverID,
		RelatedMessageID: &msg.MessageID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist direct notification: %w", err)
	}
	return n, nil
}

func (s *service) NotifyRiskFlagChange(ctx context.Context, group *domain.Group, atRisk bool, actor *domain.User) (*domain.Notification, error) {
	snapshot, err := s.snapshot(ctx, group)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("group %s is no longer flagged at risk", group.Name)
	if atRisk {
		text = fmt.Sprintf("group %s has been flagged at risk", group.Name)
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		Type:           domain.NotificationRiskFlag,
		Message:        text,
		Group:          snapshot,
		CreatedAt:      time.Now().UTC(),
	}
	if actor != nil {
		actorID := actor.UserID
		n.SenderID = &actorID
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist risk flag notification: %w", err)
	}
	return n, nil
}

// snapshot copies the group's membership by value at the moment of sending.
// Stale member ids that no longer resolve are dropped rather than failing the
// whole fan-out.
func (s *service) snapshot(ctx context.Context, group *domain.Group) (*domain.GroupSnapshot, error) {
	students, err := s.users.GetMany(ctx, group.StudentIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve group students: %w", err)
	}
	snap := &domain.GroupSnapshot{
		GroupID: group.GroupID,
		Name:    group.Name,
		Students: lo.Map(students, func(u domain.User, _ int) domain.UserRef {
			return u.Ref()
		}),
	}
	if group.InstructorID != "" {
		if instructor, err := s.users.Get(ctx, group.InstructorID); err == nil {
			ref := instructor.Ref()
			snap.Instructor = &ref
		}
	}
	return snap, nil
}

// ListForCaller returns the caller's notifications, newest first: direct
// notifications addressed to them plus group notifications whose snapshot
// included them. Admins see everything.
//
// Direct notifications come from the receiver index; the scan only serves the
// snapshot-audience ones, which carry no receiver and cannot be indexed.
func (s *service) ListForCaller(ctx context.Context, caller domain.Identity) ([]domain.Notification, error) {
	if caller.IsAdmin() {
		all, err := s.repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		sortNewestFirst(all)
		return all, nil
	}

	visible, err := s.repo.ListByReceiver(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if n.ReceiverID != nil {
			// Addressed notifications were already served by the index.
			continue
		}
		if n.Group.Includes(caller.UserID) {
			visible = append(visible, n)
		}
	}
	sortNewestFirst(visible)
	return visible, nil
}

func (s *service) MarkAsRead(ctx context.Context, notificationID string, caller domain.Identity) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if !s.inAudience(n, caller) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrForbidden)
	}
	return s.repo.MarkAsRead(ctx, notificationID)
}

func (s *service) Delete(ctx context.Context, notificationID string) error {
	if _, err := s.repo.Get(ctx, notificationID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, notificationID)
}

func (s *service) inAudience(n *domain.Notification, caller domain.Identity) bool {
	if caller.IsAdmin() {
		return true
	}
	if n.ReceiverID != nil && *n.ReceiverID == caller.UserID {
		return true
	}
	return n.Group.Includes(caller.UserID)
}

func sortNewestFirst(ns []domain.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
}
