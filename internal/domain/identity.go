// Package domain contains the session document and the small value types
// shared by the relay, the stores and the transport adapters.
package domain

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 254

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity is an opaque user name (usually an email) trusted as supplied.
type Identity string

// ParseIdentity trims surrounding whitespace and checks length bounds.
// It does not try to verify that the identity belongs to the caller.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(s), nil
}

func (i Identity) String() string { return string(i) }
