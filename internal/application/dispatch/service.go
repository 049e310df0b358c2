// Package dispatch coordinates the end-to-end handling of one send-message
// request: authorization, attachment relocation, persistence, notification
// fan-out and realtime broadcast.
//
// Persistence is the commit point. Everything before it aborts the request;
// everything after it (group index append, notification, broadcast) is
// best-effort, logged and reported through Result.Effects but never unwinds
// the stored message. A caller that times out after the commit point may
// therefore see a failure for a message that exists; that asymmetry is
// inherent and deliberately not papered over with speculative rollback.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/application/membership"
	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/infrastructure/blob"
	"github.com/go-classroom-api/internal/pkg/id"
	"github.com/go-classroom-api/internal/realtime"
)

// GroupStore is the group persistence surface dispatch needs. Group lookups
// go through the membership resolver; only the index append is direct.
type GroupStore interface {
	AppendMessageID(ctx context.Context, groupID, messageID string) error
}

// UserStore resolves senders and direct-message recipients.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// MessageStore is the append-only message record.
type MessageStore interface {
	Put(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, messageID string) (*domain.Message, error)
	ListByGroup(ctx context.Context, groupID string) ([]domain.Message, error)
	ListByRecipient(ctx context.Context, userID string) ([]domain.Message, error)
}

// Notifier is the notification fan-out engine.
type Notifier interface {
	NotifyGroupMessage(ctx context.Context, group *domain.Group, sender *domain.User, msg *domain.Message) (*domain.Notification, error)
	NotifyDirectMessage(ctx context.Context, sender, recipient *domain.User, msg *domain.Message) (*domain.Notification, error)
}

// Broadcaster pushes realtime events to subscribed sockets. Injected so tests
// can substitute a fake with no network.
type Broadcaster interface {
	Broadcast(channelID, event string, payload interface{}) int
}

// SendInput carries one inbound send request. Upload is nil when the request
// had no file part.
type SendInput struct {
	Content string
	Upload  *blob.Upload
}

// Effect records the outcome of one best-effort step that ran after the
// message was committed.
type Effect struct {
	Stage string // "group_index", "notification", "broadcast"
	Err   error  // nil on success
}

// Result is the outcome of a dispatch: the committed message, the
// notification when one was stored, and the secondary-effect outcomes.
type Result struct {
	Message      *domain.Message
	Notification *domain.Notification
	Effects      []Effect
}

const (
	stageGroupIndex   = "group_index"
	stageNotification = "notification"
	stageBroadcast    = "broadcast"
)

// Service is the dispatch orchestrator.
type Service interface {
	SendToGroup(ctx context.Context, caller domain.Identity, groupID string, in SendInput) (*Result, error)
	SendToUser(ctx context.Context, caller domain.Identity, recipientID string, in SendInput) (*Result, error)

	// ListGroupMessages returns the group's history sorted ascending by
	// server-assigned creation time. The caller must be authorized to read.
	ListGroupMessages(ctx context.Context, caller domain.Identity, groupID string) (*domain.Group, []domain.Message, error)
	// ListUserMessages returns direct messages addressed to userID. Only the
	// recipient themselves or an admin may read them.
	ListUserMessages(ctx context.Context, caller domain.Identity, userID string) ([]domain.Message, error)
	// GetMessage fetches one message by id, scoped to the same audience a
	// listing would allow: the sender, the direct recipient, a member of the
	// message's group, or an admin.
	GetMessage(ctx context.Context, caller domain.Identity, messageID string) (*domain.Message, error)
}

type service struct {
	groups      GroupStore
	users       UserStore
	messages    MessageStore
	resolver    membership.Service
	notifier    Notifier
	attachments blob.Store
	broadcaster Broadcaster
	logger      *zap.Logger
}

type ServiceDeps struct {
	Groups      GroupStore
	Users       UserStore
	Messages    MessageStore
	Resolver    membership.Service
	Notifier    Notifier
	Attachments blob.Store
	Broadcaster Broadcaster
	Logger      *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		groups:      deps.Groups,
		users:       deps.Users,
		messages:    deps.Messages,
		resolver:    deps.Resolver,
		notifier:    deps.Notifier,
		attachments: deps.Attachments,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
	}
}

func (s *service) SendToGroup(ctx context.Context, caller domain.Identity, groupID string, in SendInput) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	// Authorization is evaluated once, at admission. The membership used here
	// may go stale before the append; that is accepted.
	group, err := s.resolver.LoadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Authorize(group, caller, membership.ActionPostMessage); err != nil {
		return nil, err
	}
	sender, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	msg, err := s.persistMessage(ctx, in, func(m *domain.Message) {
		m.GroupID = groupID
		m.SenderID = sender.UserID
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Message: msg}

	// The group's message index is appended after the message commit. On
	// failure the message still exists and is discoverable by query; this is
	// an accepted eventual-consistency gap, not a rollback.
	if err := s.groups.AppendMessageID(ctx, groupID, msg.MessageID); err != nil {
		s.logger.Error("group index append failed",
			zap.String("group_id", groupID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		res.Effects = append(res.Effects, Effect{Stage: stageGroupIndex, Err: err})
	} else {
		res.Effects = append(res.Effects, Effect{Stage: stageGroupIndex})
	}

	notification, err := s.notifier.NotifyGroupMessage(ctx, group, sender, msg)
	if err != nil {
		// Message delivery outranks the notification record: log and continue.
		s.logger.Error("group notification failed",
			zap.String("group_id", groupID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		res.Effects = append(res.Effects, Effect{Stage: stageNotification, Err: err})
	} else {
		res.Notification = notification
		res.Effects = append(res.Effects, Effect{Stage: stageNotification})
	}

	delivered := s.broadcaster.Broadcast(groupID, realtime.EventNewGroupMessage, GroupMessagePayload{Message: msg})
	s.logger.Debug("group message broadcast",
		zap.String("group_id", groupID),
		zap.String("message_id", msg.MessageID),
		zap.Int("delivered", delivered),
	)
	res.Effects = append(res.Effects, Effect{Stage: stageBroadcast})

	return res, nil
}

func (s *service) SendToUser(ctx context.Context, caller domain.Identity, recipientID string, in SendInput) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	recipient, err := s.users.Get(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	msg, err := s.persistMessage(ctx, in, func(m *domain.Message) {
		m.RecipientID = recipient.UserID
		m.SenderID = sender.UserID
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Message: msg}

	notification, err := s.notifier.NotifyDirectMessage(ctx, sender, recipient, msg)
	if err != nil {
		s.logger.Error("direct notification failed",
			zap.String("recipient_id", recipientID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		res.Effects = append(res.Effects, Effect{Stage: stageNotification, Err: err})
	} else {
		res.Notification = notification
		res.Effects = append(res.Effects, Effect{Stage: stageNotification})
	}

	delivered := s.broadcaster.Broadcast(recipientID, realtime.EventNewUserMessage, UserMessagePayload{
		Message:      msg,
		Notification: res.Notification,
	})
	s.logger.Debug("direct message broadcast",
		zap.String("recipient_id", recipientID),
		zap.String("message_id", msg.MessageID),
		zap.Int("delivered", delivered),
	)
	res.Effects = append(res.Effects, Effect{Stage: stageBroadcast})

	return res, nil
}

// persistMessage relocates the attachment (if any), then appends the message.
// Attachment failure aborts before persistence so no message ever references
// a file that was not stored.
func (s *service) persistMessage(ctx context.Context, in SendInput, address func(*domain.Message)) (*domain.Message, error) {
	msg := &domain.Message{
		MessageID: id.New(),
		Content:   in.Content,
		CreatedAt: time.Now().UTC(), // server-assigned; client timestamps are ignored
	}
	address(msg)

	if in.Upload != nil {
		att, err := s.attachments.Relocate(ctx, *in.Upload)
		if err != nil {
			return nil, err
		}
		msg.Attachment = att
	}

	if err := s.messages.Put(ctx, msg); err != nil {
		if msg.Attachment != nil {
			// The stored file is now orphaned; leave it for the sweep but say so.
			s.logger.Error("message append failed after attachment store",
				zap.String("attachment", msg.Attachment.Filename),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *service) ListGroupMessages(ctx context.Context, caller domain.Identity, groupID string) (*domain.Group, []domain.Message, error) {
	group, err := s.resolver.LoadGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolver.Authorize(group, caller, membership.ActionReadMessages); err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	// Chronological ascending order is a hard contract for chat history; the
	// store already queries in that order but the result is re-sorted so the
	// contract does not depend on index behavior.
	sortAscending(messages)
	return group, messages, nil
}

func (s *service) ListUserMessages(ctx context.Context, caller domain.Identity, userID string) ([]domain.Message, error) {
	if caller.UserID != userID && !caller.IsAdmin() {
		return nil, fmt.Errorf("messages of user %s: %w", userID, domain.ErrForbidden)
	}
	messages, err := s.messages.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortAscending(messages)
	return messages, nil
}

func (s *service) GetMessage(ctx context.Context, caller domain.Identity, messageID string) (*domain.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, caller, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// authorizeRead applies the listing audience rules to a single message.
func (s *service) authorizeRead(ctx context.Context, caller domain.Identity, msg *domain.Message) error {
	if caller.IsAdmin() || caller.UserID == msg.SenderID {
		return nil
	}
	if msg.RecipientID != "" {
		if msg.RecipientID == caller.UserID {
			return nil
		}
		return fmt.Errorf("message %s: %w", msg.MessageID, domain.ErrForbidden)
	}
	if msg.GroupID != "" {
		group, err := s.resolver.LoadGroup(ctx, msg.GroupID)
		if err != nil {
			return err
		}
		return s.resolver.Authorize(group, caller, membership.ActionReadMessages)
	}
	return fmt.Errorf("message %s: %w", msg.MessageID, domain.ErrForbidden)
}

// validateInput rejects a send that carries neither content nor a file,
// before any other step runs.
func validateInput(in SendInput) error {
	if in.Content == "" && in.Upload == nil {
		return fmt.Errorf("either content or file attachment is required: %w", domain.ErrValidation)
	}
	return nil
}

func sortAscending(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].MessageID < messages[j].MessageID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
