package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a wallet holder registered with the sandbox backend.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"` // Never expose
	PINHash      string    `json:"-"` // Never expose
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Info returns the public view of the user sent to clients.
func (u *User) Info() *UserInfo {
	return &UserInfo{
		ID:       u.ID.String(),
		Username: u.Username,
		Phone:    u.Phone,
		FullName: u.FullName,
	}
}

// UserInfo is the public user profile embedded in auth responses.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name,omitempty"`
}
