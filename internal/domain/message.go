package domain

import "time"

// Attachment describes a file stored alongside a message. It is owned by the
// message that references it and shares its lifetime.
type Attachment struct {
	Filename string `json:"filename" dynamodbav:"filename"` // collision-resistant stored name
	Path     string `json:"path" dynamodbav:"path"`
	MimeType string `json:"mime_type" dynamodbav:"mime_type"`
	Size     int64  `json:"size" dynamodbav:"size"`
}

// Message is an immutable chat record. Exactly one of GroupID / RecipientID is
// set, and at least one of Content / Attachment is present. Both invariants are
// enforced at dispatch time; the store appends blindly.
type Message struct {
	MessageID  string      `json:"id" dynamodbav:"message_id"`
	Content    string      `json:"content,omitempty" dynamodbav:"content,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty" dynamodbav:"attachment,omitempty"`
	// group_id / recipient_id carry omitempty so a direct message never
	// appears in the group GSI and vice versa.
	GroupID     string    `json:"group_id,omitempty" dynamodbav:"group_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty" dynamodbav:"recipient_id,omitempty"`
	SenderID    string    `json:"sender_id" dynamodbav:"sender_id"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}

// IsGroupMessage reports whether the message is addressed to a group channel.
func (m *Message) IsGroupMessage() bool { return m.GroupID != "" }
