// Package orch ties connections, rooms and the session store together.
// Every inbound protocol operation lands on an Orchestrator method.
package orch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/dkeye/ucode/internal/app"
	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/events"
	"github.com/dkeye/ucode/internal/protocol"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Store    core.SessionStore
	Calls    *app.CallTracker
	Policy   app.Policy
	Events   events.Publisher

	// SerializeSessions runs read-modify-write operations on one session
	// in arrival order. Off means last store write wins.
	SerializeSessions  bool
	AnnounceDepartures bool

	Clock func() time.Time
	NewID func() domain.SessionID

	creates singleflight.Group
	locks   app.KeyedMutex
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Calls       int `json:"calls"`
}

func (o *Orchestrator) Stats() Stats {
	st := Stats{
		Rooms:       len(o.Rooms.List()),
		Connections: o.Registry.Count(),
	}
	if o.Calls != nil {
		st.Calls = o.Calls.Active()
	}
	return st
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o *Orchestrator) newID() domain.SessionID {
	if o.NewID != nil {
		return o.NewID()
	}
	return domain.SessionID(uuid.NewString())
}

func (o *Orchestrator) lock(id domain.SessionID) func() {
	if !o.SerializeSessions {
		return func() {}
	}
	return o.locks.Lock(string(id))
}

func (o *Orchestrator) emit(ctx context.Context, typ string, id domain.SessionID, who domain.Identity, detail string) {
	if o.Events == nil {
		return
	}
	o.Events.Publish(ctx, events.Event{Type: typ, Session: id, Identity: who, Detail: detail, At: o.now()})
}

// Send delivers one event to cid alone.
func (o *Orchestrator) Send(cid core.ConnID, t protocol.MessageType, data any) error {
	sig, ok := o.Registry.Signal(cid)
	if !ok {
		return nil
	}
	frame, err := protocol.Encode(t, data)
	if err != nil {
		return err
	}
	if err := sig.TrySend(frame); err != nil {
		room, _ := o.Registry.RoomOf(cid)
		o.onDropped(room, []core.ConnID{cid})
	}
	return nil
}

// Publish fans an event out to the room of id.
func (o *Orchestrator) Publish(id domain.SessionID, from core.ConnID, t protocol.MessageType, data any, includeSender bool) core.PublishResult {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return core.PublishResult{}
	}
	frame, err := protocol.Encode(t, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("session", string(id)).Msg("encode broadcast")
		return core.PublishResult{}
	}
	res := room.Broadcast(from, frame, includeSender)
	o.onDropped(id, res.Dropped)
	return res
}

// Unicast sends to the most recent connection seen using who, first
// inside the room of id and then anywhere. It reports whether a
// connection took the frame.
func (o *Orchestrator) Unicast(id domain.SessionID, who domain.Identity, t protocol.MessageType, data any) bool {
	var (
		cid   core.ConnID
		sig   core.SignalConnection
		found bool
	)
	if id != "" {
		if room, ok := o.Rooms.Get(id); ok {
			cid, sig, found = room.Resolve(who)
		}
	}
	if !found {
		cid, sig, found = o.Registry.Resolve(who)
	}
	if !found {
		log.Debug().Str("module", "orch").Str("session", string(id)).Str("identity", string(who)).Str("type", string(t)).Msg("no connection bound, dropped")
		return false
	}
	frame, err := protocol.Encode(t, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(t)).Msg("encode unicast")
		return false
	}
	if err := sig.TrySend(frame); err != nil {
		o.onDropped(id, []core.ConnID{cid})
		return false
	}
	return true
}

func (o *Orchestrator) onDropped(id domain.SessionID, dropped []core.ConnID) {
	if o.Policy == nil || len(dropped) == 0 {
		return
	}
	room, _ := o.Rooms.Get(id)
	for _, cid := range dropped {
		switch o.Policy.OnBackPressure(room, cid) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(cid)).Str("session", string(id)).Msg("kicking slow connection")
			o.Kick(cid)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
