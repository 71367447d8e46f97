package orch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

// Subscribe moves cid into the room of id. It is a no-op for a member.
func (o *Orchestrator) Subscribe(cid core.ConnID, id domain.SessionID) (core.RoomService, bool) {
	sig, ok := o.Registry.Signal(cid)
	if !ok {
		return nil, false
	}
	if cur, ok := o.Registry.RoomOf(cid); ok && cur != id {
		o.leave(cid, cur)
		log.Info().Str("module", "orch").Str("conn", string(cid)).Str("from_session", string(cur)).Msg("left previous room")
	}
	room, added := o.Rooms.Attach(id, cid, sig)
	o.Registry.UpdateRoom(cid, id)
	if added {
		log.Info().Str("module", "orch").Str("conn", string(cid)).Str("session", string(id)).Msg("added to room")
	}
	return room, added
}

// OnDisconnect forgets cid. Session documents are never touched.
func (o *Orchestrator) OnDisconnect(cid core.ConnID) {
	if id, ok := o.Registry.RoomOf(cid); ok {
		o.leave(cid, id)
	}
	o.Registry.Unbind(cid)
}

// Kick drops cid from its room right away and stops its pumps.
func (o *Orchestrator) Kick(cid core.ConnID) {
	if id, ok := o.Registry.RoomOf(cid); ok {
		o.leave(cid, id)
	}
	o.Registry.Cancel(cid)
}

func (o *Orchestrator) leave(cid core.ConnID, id domain.SessionID) {
	var who domain.Identity
	if room, ok := o.Rooms.Get(id); ok {
		who, _ = room.IdentityOf(cid)
	}
	o.Rooms.Detach(id, cid)
	o.Registry.RemoveRoom(cid)
	if o.AnnounceDepartures && who != "" {
		o.Publish(id, cid, protocol.TypeUserLeft, who, false)
	}
}

// bind records cid as the latest connection of who, globally and inside
// room id when cid is subscribed there.
func (o *Orchestrator) bind(cid core.ConnID, who domain.Identity, id domain.SessionID) {
	o.Registry.BindIdentity(who, cid)
	if id == "" {
		return
	}
	if room, ok := o.Rooms.Get(id); ok && room.Has(cid) {
		room.BindIdentity(who, cid)
	}
}

// claim parses an identity the client speaks for. A connection with a
// verified identity may omit it but never name somebody else.
func (o *Orchestrator) claim(cid core.ConnID, raw string) (domain.Identity, error) {
	verified, hasVerified := o.Registry.Verified(cid)
	if raw == "" && hasVerified {
		return verified, nil
	}
	who, err := domain.ParseIdentity(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if hasVerified && who != verified {
		return "", fmt.Errorf("%w: %s", domain.ErrIdentityMismatch, who)
	}
	return who, nil
}

// sessionOf picks the session named by a message or the room cid is in.
func (o *Orchestrator) sessionOf(cid core.ConnID, id domain.SessionID) domain.SessionID {
	if id != "" {
		return id
	}
	cur, _ := o.Registry.RoomOf(cid)
	return cur
}
