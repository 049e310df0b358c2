package domain

import "time"

type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	FullName     string    `json:"full_name" dynamodbav:"full_name"`
	Email        string    `json:"email,omitempty" dynamodbav:"email"`
	Phone        *string   `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         Role      `json:"role" dynamodbav:"role"`
	StudentID    *int      `json:"student_id,omitempty" dynamodbav:"student_id"` // set only when Role == RoleStudent
	Enable       bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// UserRef is the denormalized user view embedded in notification snapshots.
type UserRef struct {
	UserID   string `json:"id" dynamodbav:"user_id"`
	Username string `json:"username" dynamodbav:"username"`
}

// Ref returns the snapshot view of the user.
func (u *User) Ref() UserRef {
	return UserRef{UserID: u.UserID, Username: u.Username}
}

type CreateUserRequest struct {
	Username  string  `json:"username" validate:"required"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	FullName  string  `json:"full_name" validate:"required"`
	Email     string  `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
	Role      string  `json:"role" validate:"required"`
	StudentID *int    `json:"student_id"`
}
