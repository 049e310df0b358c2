package domain

import "time"

// NotificationType tags the event a notification record describes.
type NotificationType string

const (
	NotificationGroupMessage NotificationType = "group_message"
	NotificationUserMessage  NotificationType = "user_message"
	NotificationRiskFlag     NotificationType = "risk_flag"
)

// GroupSnapshot is the group's membership copied by value at notification time.
// Later membership changes must not rewrite notification history, so the
// snapshot is embedded rather than referenced.
type GroupSnapshot struct {
	GroupID    string    `json:"group_id" dynamodbav:"group_id"`
	Name       string    `json:"name" dynamodbav:"name"`
	Instructor *UserRef  `json:"instructor,omitempty" dynamodbav:"instructor"`
	Students   []UserRef `json:"students" dynamodbav:"students"`
}

// Includes reports whether userID was part of the snapshot audience.
func (s *GroupSnapshot) Includes(userID string) bool {
	if s == nil {
		return false
	}
	if s.Instructor != nil && s.Instructor.UserID == userID {
		return true
	}
	for _, st := range s.Students {
		if st.UserID == userID {
			return true
		}
	}
	return false
}

// Notification is a durable fan-out record. Type and sender are immutable once
// created; only Read may change.
type Notification struct {
	NotificationID   string           `json:"id" dynamodbav:"notification_id"`
	Type             NotificationType `json:"type" dynamodbav:"type"`
	Message          string           `json:"message" dynamodbav:"message"`
	SenderID         *string          `json:"sender_id,omitempty" dynamodbav:"sender_id"` // nil for system-generated
	ReceiverID       *string          `json:"receiver_id,omitempty" dynamodbav:"receiver_id"`
	RelatedMessageID *string          `json:"related_message_id,omitempty" dynamodbav:"related_message_id"`
	Group            *GroupSnapshot   `json:"group,omitempty" dynamodbav:"group_snapshot"`
	Read             bool             `json:"read" dynamodbav:"read"`
	CreatedAt        time.Time        `json:"created" dynamodbav:"created_at"`
}
