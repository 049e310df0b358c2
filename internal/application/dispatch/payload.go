package dispatch

import "github.com/go-classroom-api/internal/domain"

// GroupMessagePayload is the wire payload for newGroupMessage events.
type GroupMessagePayload struct {
	Message *domain.Message `json:"message"`
}

// UserMessagePayload is the wire payload for newUserMessage events. The
// notification is omitted when its persistence failed.
type UserMessagePayload struct {
	Message      *domain.Message      `json:"message"`
	Notification *domain.Notification `json:"notification,omitempty"`
}
