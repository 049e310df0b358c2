package domain

import "time"

type Group struct {
	GroupID      string    `json:"id" dynamodbav:"group_id"`
	Name         string    `json:"name" dynamodbav:"name"` // unique
	InstructorID string    `json:"instructor_id,omitempty" dynamodbav:"instructor_id"`
	StudentIDs   []string  `json:"student_ids" dynamodbav:"student_ids"`
	MessageIDs   []string  `json:"message_ids" dynamodbav:"message_ids"` // append-only
	AtRisk       bool      `json:"at_risk" dynamodbav:"at_risk"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// HasStudent reports whether userID is enrolled in the group.
func (g *Group) HasStudent(userID string) bool {
	for _, id := range g.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type CreateGroupRequest struct {
	Name         string   `json:"name" validate:"required"`
	InstructorID string   `json:"instructor_id"`
	StudentIDs   []string `json:"student_ids"`
}

type UpdateGroupRequest struct {
	Name         *string   `json:"name"`
	InstructorID *string   `json:"instructor_id"`
	StudentIDs   *[]string `json:"student_ids"`
}
