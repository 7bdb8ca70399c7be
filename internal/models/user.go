package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Buyers are scoped to a user's ID.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// Email is the user's login address (unique).
	Email string `gorm:"size:254;not null;uniqueIndex" json:"email"`

	// DisplayName is the name shown in the UI.
	DisplayName string `gorm:"size:80" json:"displayName"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `gorm:"not null" json:"-"`

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64 `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updatedAt"`
}

// NewUser builds a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
