package auth

import (
	"errors"
	"time"
)

// User represents an authenticated human account.
//
// Accounts are created by an out-of-band provisioning step; this service
// only reads them.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	PasswordHash string    `json:"-"` // never serialised
	AccessLevel  int       `json:"access_level"`
	Company      string    `json:"company"`
	CreatedAt    time.Time `json:"created_at"`
}

// Guest represents a pending invitation, keyed by a single-use token that
// an administrator hands to a new user to complete signup.
type Guest struct {
	ID          string    `json:"id"`
	Token       string    `json:"-"` // never serialised
	Email       string    `json:"email"`
	Company     string    `json:"company"`
	AccessLevel int       `json:"access_level"`
	Consumed    bool      `json:"consumed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrGuestNotFound      = errors.New("invitation not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrTokenInvalid       = errors.New("invalid token")
)
