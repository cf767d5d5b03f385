package auth

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrEmailTaken is returned by CreateUser when the email is already registered.
	ErrEmailTaken = errors.New("an account already exists with this email")
	ErrNotFound   = errors.New("not found")
)

type User struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
}

// PasswordReset is the outstanding reset link for an email. The token is the
// exact string that was mailed out.
type PasswordReset struct {
	ID        ulid.ULID
	Email     string
	Token     string
	CreatedAt time.Time
}
