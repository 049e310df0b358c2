package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/infrastructure/sns"
	"github.com/go-classroom-api/internal/pkg/id"
	"github.com/go-classroom-api/internal/pkg/validate"
	"github.com/go-classroom-api/internal/realtime"
)

// Repository is the group persistence surface.
type Repository interface {
	Put(ctx context.Context, g *domain.Group) error
	Get(ctx context.Context, groupID string) (*domain.Group, error)
	GetByName(ctx context.Context, name string) (*domain.Group, error)
	List(ctx context.Context) ([]domain.Group, error)
	Update(ctx context.Context, groupID string, updates map[string]interface{}) error
}

// UserReader resolves member ids for role validation.
type UserReader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// RiskNotifier persists the notification record for a risk-flag change.
type RiskNotifier interface {
	NotifyRiskFlagChange(ctx context.Context, group *domain.Group, atRisk bool, actor *domain.User) (*domain.Notification, error)
}

// Broadcaster pushes realtime events to the group's channel.
type Broadcaster interface {
	Broadcast(channelID, event string, payload interface{}) int
}

type Service interface {
	Create(ctx context.Context, req domain.CreateGroupRequest) (*domain.Group, error)
	Get(ctx context.Context, groupID string) (*domain.Group, error)
	List(ctx context.Context) ([]domain.Group, error)
	Update(ctx context.Context, groupID string, req domain.UpdateGroupRequest) (*domain.Group, error)
	// SetRiskFlag flips the at-risk flag and fans the change out to the
	// group's audience: a notification record, a realtime event and, when an
	// alert topic is configured, an SNS publish. The flag write is the only
	// fatal step.
	SetRiskFlag(ctx context.Context, caller domain.Identity, groupID string, atRisk bool) (*domain.Group, error)
}

type service struct {
	repo        Repository
	users       UserReader
	notifier    RiskNotifier
	broadcaster Broadcaster
	alerts      sns.AlertPublisher // nil when no topic is configured
	logger      *zap.Logger
}

type ServiceDeps struct {
	Repo        Repository
	Users       UserReader
	Notifier    RiskNotifier
	Broadcaster Broadcaster
	Alerts      sns.AlertPublisher
	Logger      *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.Repo,
		users:       deps.Users,
		notifier:    deps.Notifier,
		broadcaster: deps.Broadcaster,
		alerts:      deps.Alerts,
		logger:      deps.Logger,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateGroupRequest) (*domain.Group, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("group name %q already taken: %w", req.Name, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.checkMemberRoles(ctx, req.InstructorID, req.StudentIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g := &domain.Group{
		GroupID:      id.New(),
		Name:         req.Name,
		InstructorID: req.InstructorID,
		StudentIDs:   req.StudentIDs,
		MessageIDs:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if g.StudentIDs == nil {
		g.StudentIDs = []string{}
	}
	if err := s.repo.Put(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	return s.repo.Get(ctx, groupID)
}

func (s *service) List(ctx context.Context) ([]domain.Group, error) {
	return s.repo.List(ctx)
}

func (s *service) Update(ctx context.Context, groupID string, req domain.UpdateGroupRequest) (*domain.Group, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		existing, err := s.repo.GetByName(ctx, *req.Name)
		if err == nil && existing.GroupID != groupID {
			return nil, fmt.Errorf("group name %q already taken: %w", *req.Name, domain.ErrConflict)
		}
		updates["name"] = *req.Name
	}
	var instructorID string
	var studentIDs []string
	if req.InstructorID != nil {
		instructorID = *req.InstructorID
	}
	if req.StudentIDs != nil {
		studentIDs = *req.StudentIDs
	}
	if err := s.checkMemberRoles(ctx, instructorID, studentIDs); err != nil {
		return nil, err
	}
	if req.InstructorID != nil {
		updates["instructor_id"] = *req.InstructorID
	}
	if req.StudentIDs != nil {
		updates["student_ids"] = *req.StudentIDs
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, groupID)
	}

	if err := s.repo.Update(ctx, groupID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, groupID)
}

func (s *service) SetRiskFlag(ctx context.Context, caller domain.Identity, groupID string, atRisk bool) (*domain.Group, error) {
	g, err := s.repo.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, groupID, map[string]interface{}{"at_risk": atRisk}); err != nil {
		return nil, err
	}
	g.AtRisk = atRisk

	var actor *domain.User
	if caller.UserID != "" {
		if u, err := s.users.Get(ctx, caller.UserID); err == nil {
			actor = u
		}
	}
	if _, err := s.notifier.NotifyRiskFlagChange(ctx, g, atRisk, actor); err != nil {
		s.logger.Error("risk flag notification failed",
			zap.String("group_id", groupID),
			zap.Bool("at_risk", atRisk),
			zap.Error(err),
		)
	}

	s.broadcaster.Broadcast(groupID, realtime.EventRiskFlagChanged, RiskFlagPayload{
		GroupID: groupID,
		AtRisk:  atRisk,
	})

	if s.alerts != nil {
		subject := fmt.Sprintf("group %s risk flag changed", g.Name)
		body := fmt.Sprintf("group=%s at_risk=%t", g.Name, atRisk)
		if err := s.alerts.Publish(ctx, subject, body); err != nil {
			s.logger.Warn("risk alert publish failed", zap.String("group_id", groupID), zap.Error(err))
		}
	}

	return g, nil
}

// checkMemberRoles enforces the membership invariant: the instructor slot
// only holds an instructor, the student set only holds students.
func (s *service) checkMemberRoles(ctx context.Context, instructorID string, studentIDs []string) error {
	if instructorID != "" {
		u, err := s.users.Get(ctx, instructorID)
		if err != nil {
			return err
		}
		if u.Role != domain.RoleInstructor {
			return fmt.Errorf("user %s is not an instructor: %w", instructorID, domain.ErrValidation)
		}
	}
	for _, sid := range studentIDs {
		u, err := s.users.Get(ctx, sid)
		if err != nil {
			return err
		}
		if u.Role != domain.RoleStudent {
			return fmt.Errorf("user %s is not a student: %w", sid, domain.ErrValidation)
		}
	}
	return nil
}
