package core

import (
	"sync"

	"github.com/dkeye/ucode/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id     domain.SessionID
	mu     sync.RWMutex
	bySID  map[ConnID]SignalConnection
	byUser IdentityBindings
}

func NewRoomService(id domain.SessionID) RoomService {
	return &roomImpl{
		id:     id,
		bySID:  make(map[ConnID]SignalConnection),
		byUser: make(IdentityBindings),
	}
}

func (r *roomImpl) ID() domain.SessionID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(cid ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[cid]
	return ok
}

func (r *roomImpl) AddMember(cid ConnID, sig SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[cid]; ok {
		return false
	}
	r.bySID[cid] = sig
	log.Debug().Str("module", "core.room").Str("session", string(r.id)).Str("conn", string(cid)).Msg("member added")
	return true
}

func (r *roomImpl) RemoveMember(cid ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser.Forget(cid)
	delete(r.bySID, cid)
	log.Debug().Str("module", "core.room").Str("session", string(r.id)).Str("conn", string(cid)).Msg("member removed")
}

func (r *roomImpl) BindIdentity(id domain.Identity, cid ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[cid]; !ok {
		return
	}
	r.byUser.Bind(id, cid)
}

func (r *roomImpl) IdentityOf(cid ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser.IdentityOf(cid)
}

func (r *roomImpl) Resolve(id domain.Identity) (ConnID, SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byUser.Latest(id)
	if !ok {
		return "", nil, false
	}
	sig, ok := r.bySID[cid]
	return cid, sig, ok
}

func (r *roomImpl) Broadcast(from ConnID, data Frame, includeSender bool) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, sig := range r.bySID {
		if sid == from && !includeSender {
			continue
		}
		if err := sig.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("session", string(r.id)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
