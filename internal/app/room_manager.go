package app

import (
	"sync"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.SessionID]core.RoomService)}
}

func (f *RoomManagerImpl) Get(id domain.SessionID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// Attach and Detach hold the write lock so an empty room is never
// dropped while somebody is joining it.
func (f *RoomManagerImpl) Attach(id domain.SessionID, cid core.ConnID, sig core.SignalConnection) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		room = core.NewRoomService(id)
		f.rooms[id] = room
		log.Debug().Str("module", "app.rooms").Str("session", string(id)).Msg("room opened")
	}
	return room, room.AddMember(cid, sig)
}

func (f *RoomManagerImpl) Detach(id domain.SessionID, cid core.ConnID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return
	}
	room.RemoveMember(cid)
	if room.MemberCount() == 0 {
		delete(f.rooms, id)
		log.Debug().Str("module", "app.rooms").Str("session", string(id)).Msg("room closed")
	}
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}
