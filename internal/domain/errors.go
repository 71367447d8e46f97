package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no document exists for a session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable wraps any failure of the session store itself.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrHostTaken is returned by a store when a session for the host already exists.
	ErrHostTaken = errors.New("session for host already exists")

	// ErrMalformedMessage is returned when an inbound message misses required fields.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrIdentityMismatch is returned when a connection bound to a verified identity
	// speaks for somebody else.
	ErrIdentityMismatch = errors.New("identity does not match connection")

	// ErrNotHost is returned when a verified non-host tries a host-only action.
	ErrNotHost = errors.New("only the host can do this")

	ErrRateLimited = errors.New("too many requests")
)
