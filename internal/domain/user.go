// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxFullNameLen = 72
	MaxEmailLen    = 254
)

var (
	ErrFullNameEmpty   = errors.New("full name empty")
	ErrFullNameTooLong = errors.New("full name too long")
	ErrEmailInvalid    = errors.New("email invalid")
)

type UserID string

type User struct {
	ID        UserID `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	// PasswordHash never leaves the server.
	PasswordHash string `json:"-"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(email, fullName string) (*User, error) {
	u := &User{ID: UserID(uuid.NewString())}
	if err := u.SetEmail(email); err != nil {
		return nil, err
	}
	if err := u.SetFullName(fullName); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetFullName(name string) error {
	if len(name) == 0 {
		return ErrFullNameEmpty
	}
	if len(name) > MaxFullNameLen {
		return ErrFullNameTooLong
	}
	u.FullName = name
	return nil
}

func (u *User) SetEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > MaxEmailLen || !strings.Contains(email, "@") {
		return ErrEmailInvalid
	}
	u.Email = email
	return nil
}
