package core

//go:generate mockgen -destination=mocks/session_store.go -package=mocks github.com/dkeye/ucode/internal/core SessionStore

import (
	"context"

	"github.com/dkeye/ucode/internal/domain"
)

// ConnID is assigned by the transport to every live connection.
type ConnID string

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

// RoomService is the live set of connections subscribed to one session.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.SessionID
	MemberCount() int
	Has(cid ConnID) bool

	// AddMember reports false when cid was already subscribed.
	AddMember(cid ConnID, sig SignalConnection) bool
	RemoveMember(cid ConnID)

	// BindIdentity records cid as the most recent connection seen using id.
	BindIdentity(id domain.Identity, cid ConnID)
	IdentityOf(cid ConnID) (domain.Identity, bool)
	Resolve(id domain.Identity) (ConnID, SignalConnection, bool)

	Broadcast(from ConnID, data Frame, includeSender bool) PublishResult
}

type RoomInfo struct {
	ID          domain.SessionID `json:"id"`
	MemberCount int              `json:"member_count"`
}

type RoomManager interface {
	Get(id domain.SessionID) (RoomService, bool)
	// Attach subscribes cid, creating the room on first use.
	// It reports false when cid was already a member.
	Attach(id domain.SessionID, cid ConnID, sig SignalConnection) (RoomService, bool)
	// Detach unsubscribes cid and drops the room once it is empty.
	Detach(id domain.SessionID, cid ConnID)
	List() []RoomInfo
}

// SessionStore is the durable home of session documents.
// Implementations give read-after-write consistency per document.
type SessionStore interface {
	Get(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	// FindByHost returns domain.ErrSessionNotFound when the host has no session.
	FindByHost(ctx context.Context, host domain.Identity) (*domain.Session, error)
	// Create returns domain.ErrHostTaken when the host already owns a session.
	Create(ctx context.Context, s *domain.Session) error
	Update(ctx context.Context, id domain.SessionID, patch domain.SessionPatch) (*domain.Session, error)
}
