package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/events"
	"github.com/dkeye/ucode/internal/protocol"
)

// StartCall invites everybody else in the room.
func (o *Orchestrator) StartCall(ctx context.Context, cid core.ConnID, id domain.SessionID, rawCaller string) error {
	caller, err := o.claim(cid, rawCaller)
	if err != nil {
		return err
	}
	id = o.sessionOf(cid, id)
	if id == "" {
		return fmt.Errorf("%w: start-call outside a session", domain.ErrMalformedMessage)
	}
	o.bind(cid, caller, id)

	res := o.Publish(id, cid, protocol.TypeCallInvitation, protocol.CallInvitation{SessionID: id, Caller: caller}, false)
	if o.Calls != nil {
		o.Calls.Invite(id, caller)
	}
	log.Info().Str("module", "orch.call").Str("session", string(id)).Str("caller", string(caller)).Int("invited", res.SendTo).Msg("call started")
	o.emit(ctx, events.CallStarted, id, caller, "")
	return nil
}

// RelaySignal forwards an offer, answer or ICE candidate to its addressee.
// The payload is passed on untouched apart from "from". Nobody bound to
// the addressee means the message is dropped.
func (o *Orchestrator) RelaySignal(_ context.Context, cid core.ConnID, kind domain.SignalKind, raw json.RawMessage) error {
	var t protocol.MessageType
	switch kind {
	case domain.SignalOffer:
		t = protocol.TypeOffer
	case domain.SignalAnswer:
		t = protocol.TypeAnswer
	case domain.SignalCandidate:
		t = protocol.TypeICECandidate
	default:
		return fmt.Errorf("%w: unknown signal %q", domain.ErrMalformedMessage, kind)
	}
	r, err := o.route(cid, t, raw)
	if err != nil {
		return err
	}
	delivered := o.Unicast(r.session, r.to, t, r.payload)
	if o.Calls != nil && r.session != "" {
		o.Calls.Signal(r.session, kind, r.from, r.to)
	}
	log.Debug().Str("module", "orch.call").Str("session", string(r.session)).Str("kind", string(kind)).Str("from", string(r.from)).Str("to", string(r.to)).Bool("delivered", delivered).Msg("signal relayed")
	return nil
}

// AcceptCall tells the caller that from picked up.
func (o *Orchestrator) AcceptCall(_ context.Context, cid core.ConnID, raw json.RawMessage) error {
	r, err := o.route(cid, protocol.TypeCallAccepted, raw)
	if err != nil {
		return err
	}
	delivered := o.Unicast(r.session, r.to, protocol.TypeCallAccepted, r.payload)
	if o.Calls != nil && r.session != "" {
		o.Calls.Accept(r.session, r.from, r.to)
	}
	log.Info().Str("module", "orch.call").Str("session", string(r.session)).Str("from", string(r.from)).Str("to", string(r.to)).Bool("delivered", delivered).Msg("call accepted")
	return nil
}

// EndCall is informational: the room hears about it, nothing else is torn down.
func (o *Orchestrator) EndCall(ctx context.Context, cid core.ConnID, id domain.SessionID) error {
	id = o.sessionOf(cid, id)
	if id == "" {
		return fmt.Errorf("%w: end-call outside a session", domain.ErrMalformedMessage)
	}
	o.Publish(id, cid, protocol.TypeEndCall, protocol.EndCall{SessionID: id}, false)
	if o.Calls != nil {
		o.Calls.End(id)
	}
	o.emit(ctx, events.CallEnded, id, "", "")
	return nil
}

type routed struct {
	session  domain.SessionID
	from, to domain.Identity
	payload  json.RawMessage
}

func (o *Orchestrator) route(cid core.ConnID, t protocol.MessageType, raw json.RawMessage) (routed, error) {
	if len(raw) == 0 {
		return routed{}, fmt.Errorf("%w: %s without data", domain.ErrMalformedMessage, t)
	}
	var r protocol.Route
	if err := json.Unmarshal(raw, &r); err != nil {
		return routed{}, fmt.Errorf("%w: %s: %v", domain.ErrMalformedMessage, t, err)
	}
	to, err := domain.ParseIdentity(r.To)
	if err != nil {
		return routed{}, fmt.Errorf("%w: %s to: %v", domain.ErrMalformedMessage, t, err)
	}
	from, err := o.claim(cid, r.From)
	if err != nil {
		return routed{}, err
	}
	id := o.sessionOf(cid, r.SessionID)
	o.bind(cid, from, id)

	out, err := protocol.Retag(raw, from)
	if err != nil {
		return routed{}, err
	}
	return routed{session: id, from: from, to: to, payload: out}, nil
}
