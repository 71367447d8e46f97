package app

import (
	"context"
	"sync"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Room     domain.SessionID
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
	Verified domain.Identity
}

// Registry is the table of live connections plus the global
// identity -> connections binding, most recent last.
type Registry struct {
	mu         sync.RWMutex
	conns      map[core.ConnID]*connEntry
	identities core.IdentityBindings
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[core.ConnID]*connEntry),
		identities: make(core.IdentityBindings),
	}
}

// BindSignal registers a fresh connection. verified is empty unless the
// handshake carried a trusted identity.
func (r *Registry) BindSignal(cid core.ConnID, sig core.SignalConnection, cancel context.CancelFunc, verified domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Signal: sig, Cancel: cancel, Verified: verified}
	if verified != "" {
		r.identities.Bind(verified, cid)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("verified", string(verified)).Msg("bound signal")
}

func (r *Registry) Signal(cid core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[cid]; ok {
		return e.Signal, true
	}
	return nil, false
}

// Verified returns the handshake identity of cid, if any.
func (r *Registry) Verified(cid core.ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Verified == "" {
		return "", false
	}
	return e.Verified, true
}

// Unbind forgets cid and every identity binding that points at it. An older
// live connection of the same identity takes the binding back.
// It returns the room cid was in, if any.
func (r *Registry) Unbind(cid core.ConnID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false
	}
	delete(r.conns, cid)
	r.identities.Forget(cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("unbind connection")
	return e.Room, e.Room != ""
}

func (r *Registry) RoomOf(cid core.ConnID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

func (r *Registry) HasRoom(cid core.ConnID, room domain.SessionID) bool {
	cur, ok := r.RoomOf(cid)
	return ok && cur == room
}

func (r *Registry) UpdateRoom(cid core.ConnID, room domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.Room = room
	log.Debug().Str("module", "app.registry").Str("conn", string(cid)).Str("session", string(room)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Room = ""
	}
}

// BindIdentity records cid as the most recent connection seen using id.
func (r *Registry) BindIdentity(id domain.Identity, cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[cid]; !ok {
		return
	}
	r.identities.Bind(id, cid)
}

func (r *Registry) Resolve(id domain.Identity) (core.ConnID, core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.identities.Latest(id)
	if !ok {
		return "", nil, false
	}
	e, ok := r.conns[cid]
	if !ok {
		return "", nil, false
	}
	return cid, e.Signal, true
}

// Cancel stops the pumps of cid. The adapter cleans up through OnDisconnect.
func (r *Registry) Cancel(cid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("canceled connection")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
