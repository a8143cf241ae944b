// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameEmpty   = errors.New("empty user name")
	ErrUsernameTooLong = errors.New("username too long")
	ErrNameTaken       = errors.New("user already registered")
)

// ConnID is the stable identity of one signaling connection. It is assigned
// when the transport connection opens and never changes for its lifetime.
type ConnID string

// ValidateUsername checks a name before it may enter the registry.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
