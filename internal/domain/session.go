package domain

import (
	"slices"
	"time"
)

const (
	DefaultCode     = "// Write your code here"
	DefaultLanguage = "javascript"

	// SessionLease is how long a session stays valid after creation.
	// Expiry is advisory only; nothing evicts expired sessions.
	SessionLease = 10 * 24 * time.Hour
)

type SessionID string

// Session is the shared document behind a coding room.
type Session struct {
	ID              SessionID  `json:"id" bson:"_id"`
	Host            Identity   `json:"host" bson:"host"`
	Code            string     `json:"code" bson:"code"`
	Language        string     `json:"language" bson:"language"`
	InvitedUsers    []Identity `json:"invitedUsers" bson:"invitedUsers"`
	PendingRequests []Identity `json:"pendingRequests" bson:"pendingRequests"`
	JoinedUsers     []Identity `json:"joinedUsers" bson:"joinedUsers"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt"`
	ExpiresAt       time.Time  `json:"expiresAt" bson:"expiresAt"`
}

// NewSession builds the default document for a host.
func NewSession(id SessionID, host Identity, now time.Time) *Session {
	return &Session{
		ID:              id,
		Host:            host,
		Code:            DefaultCode,
		Language:        DefaultLanguage,
		InvitedUsers:    []Identity{},
		PendingRequests: []Identity{},
		JoinedUsers:     []Identity{host},
		CreatedAt:       now,
		ExpiresAt:       now.Add(SessionLease),
	}
}

// Admits reports whether identity may enter the room without approval.
func (s *Session) Admits(identity Identity) bool {
	return identity == s.Host || slices.Contains(s.InvitedUsers, identity)
}

func (s *Session) IsPending(identity Identity) bool {
	return slices.Contains(s.PendingRequests, identity)
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Snapshot is the view sent to a connection that was admitted.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Code:        s.Code,
		Language:    s.Language,
		JoinedUsers: slices.Clone(s.JoinedUsers),
	}
}

// Clone returns a deep copy so callers can't alias store-owned slices.
func (s *Session) Clone() *Session {
	c := *s
	c.InvitedUsers = slices.Clone(s.InvitedUsers)
	c.PendingRequests = slices.Clone(s.PendingRequests)
	c.JoinedUsers = slices.Clone(s.JoinedUsers)
	return &c
}

type Snapshot struct {
	Code        string     `json:"code"`
	Language    string     `json:"language"`
	JoinedUsers []Identity `json:"joinedUsers"`
}

// SessionPatch lists the fields an Update replaces. Nil means untouched.
type SessionPatch struct {
	Code            *string
	Language        *string
	InvitedUsers    []Identity
	PendingRequests []Identity
	JoinedUsers     []Identity

	setInvited, setPending, setJoined bool
}

func (p SessionPatch) WithCode(code string) SessionPatch {
	p.Code = &code
	return p
}

func (p SessionPatch) WithLanguage(language string) SessionPatch {
	p.Language = &language
	return p
}

func (p SessionPatch) WithInvited(ids []Identity) SessionPatch {
	p.InvitedUsers, p.setInvited = nonNil(ids), true
	return p
}

func (p SessionPatch) WithPending(ids []Identity) SessionPatch {
	p.PendingRequests, p.setPending = nonNil(ids), true
	return p
}

func (p SessionPatch) WithJoined(ids []Identity) SessionPatch {
	p.JoinedUsers, p.setJoined = nonNil(ids), true
	return p
}

func (p SessionPatch) HasInvited() bool { return p.setInvited }
func (p SessionPatch) HasPending() bool { return p.setPending }
func (p SessionPatch) HasJoined() bool  { return p.setJoined }

func (p SessionPatch) Empty() bool {
	return p.Code == nil && p.Language == nil && !p.setInvited && !p.setPending && !p.setJoined
}

// Apply writes the patch onto s in place.
func (p SessionPatch) Apply(s *Session) {
	if p.Code != nil {
		s.Code = *p.Code
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.setInvited {
		s.InvitedUsers = slices.Clone(p.InvitedUsers)
	}
	if p.setPending {
		s.PendingRequests = slices.Clone(p.PendingRequests)
	}
	if p.setJoined {
		s.JoinedUsers = slices.Clone(p.JoinedUsers)
	}
}

func nonNil(ids []Identity) []Identity {
	if ids == nil {
		return []Identity{}
	}
	return ids
}

// Without returns ids with every occurrence of id removed.
func Without(ids []Identity, id Identity) []Identity {
	out := make([]Identity, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// WithUnique appends id unless it is already present.
func WithUnique(ids []Identity, id Identity) []Identity {
	if slices.Contains(ids, id) {
		return slices.Clone(ids)
	}
	return append(slices.Clone(ids), id)
}
