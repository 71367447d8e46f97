package orch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/events"
	"github.com/dkeye/ucode/internal/protocol"
)

// Store calls outlive the connection that started them: a mutation
// accepted before a disconnect still completes and is still broadcast.

// CreateSession returns the host's session, creating it on first use,
// and subscribes cid to it.
func (o *Orchestrator) CreateSession(ctx context.Context, cid core.ConnID, rawHost string) (domain.SessionID, error) {
	host, err := o.claim(cid, rawHost)
	if err != nil {
		return "", err
	}
	ctx = context.WithoutCancel(ctx)

	v, err, shared := o.creates.Do(string(host), func() (any, error) {
		return o.createOrGet(ctx, host)
	})
	if err != nil {
		return "", err
	}
	s := v.(*domain.Session)

	o.Subscribe(cid, s.ID)
	o.bind(cid, host, s.ID)
	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("session", string(s.ID)).Str("host", string(host)).Bool("shared", shared).Msg("session ready")
	return s.ID, o.Send(cid, protocol.TypeSessionCreated, protocol.SessionCreated{SessionID: s.ID})
}

func (o *Orchestrator) createOrGet(ctx context.Context, host domain.Identity) (*domain.Session, error) {
	s, err := o.Store.FindByHost(ctx, host)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("find session of %s: %w", host, err)
	}

	s = domain.NewSession(o.newID(), host, o.now())
	if err := o.Store.Create(ctx, s); err != nil {
		if !errors.Is(err, domain.ErrHostTaken) {
			return nil, fmt.Errorf("create session: %w", err)
		}
		// another instance won the race
		s, err = o.Store.FindByHost(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("reload session of %s: %w", host, err)
		}
		return s, nil
	}
	log.Info().Str("module", "orch").Str("session", string(s.ID)).Str("host", string(host)).Msg("session created")
	o.emit(ctx, events.SessionCreated, s.ID, host, "")
	return s, nil
}

// JoinSession admits the host and invited identities and queues everybody
// else for approval.
func (o *Orchestrator) JoinSession(ctx context.Context, cid core.ConnID, id domain.SessionID, rawUser string) error {
	if id == "" {
		return fmt.Errorf("%w: join-session without sessionId", domain.ErrMalformedMessage)
	}
	who, err := o.claim(cid, rawUser)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	unlock := o.lock(id)
	defer unlock()

	s, err := o.Store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("join %s: %w", id, err)
	}
	if s.Expired(o.now()) {
		log.Warn().Str("module", "orch").Str("session", string(id)).Time("expires_at", s.ExpiresAt).Msg("joining expired session")
	}

	if !s.Admits(who) {
		return o.requestJoin(ctx, cid, s, who)
	}

	joined := append(slices.Clone(s.JoinedUsers), who)
	updated, err := o.Store.Update(ctx, id, domain.SessionPatch{}.WithJoined(joined))
	if err != nil {
		return fmt.Errorf("join %s: %w", id, err)
	}

	o.Subscribe(cid, id)
	o.bind(cid, who, id)
	if err := o.Send(cid, protocol.TypeLoadSession, updated.Snapshot()); err != nil {
		return err
	}
	o.Publish(id, cid, protocol.TypeUserJoined, who, false)

	log.Info().Str("module", "orch").Str("conn", string(cid)).Str("session", string(id)).Str("identity", string(who)).Msg("joined")
	o.emit(ctx, events.SessionJoined, id, who, "")
	return nil
}

func (o *Orchestrator) requestJoin(ctx context.Context, cid core.ConnID, s *domain.Session, who domain.Identity) error {
	o.bind(cid, who, "")
	if !s.IsPending(who) {
		patch := domain.SessionPatch{}.WithPending(domain.WithUnique(s.PendingRequests, who))
		if _, err := o.Store.Update(ctx, s.ID, patch); err != nil {
			return fmt.Errorf("request join %s: %w", s.ID, err)
		}
	}
	delivered := o.Unicast(s.ID, s.Host, protocol.TypePendingRequest, who)
	log.Info().Str("module", "orch").Str("session", string(s.ID)).Str("identity", string(who)).Bool("host_notified", delivered).Msg("join pending")
	o.emit(ctx, events.SessionJoinRequested, s.ID, who, "")
	return nil
}

// ApproveRequest moves who from pending to invited. An unknown session is
// ignored.
func (o *Orchestrator) ApproveRequest(ctx context.Context, cid core.ConnID, id domain.SessionID, rawUser string) error {
	if id == "" {
		return fmt.Errorf("%w: approve-request without sessionId", domain.ErrMalformedMessage)
	}
	who, err := domain.ParseIdentity(rawUser)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	ctx = context.WithoutCancel(ctx)

	unlock := o.lock(id)
	defer unlock()

	s, err := o.Store.Get(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		log.Debug().Str("module", "orch").Str("session", string(id)).Msg("approve for unknown session ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}
	if verified, ok := o.Registry.Verified(cid); ok && verified != s.Host {
		return fmt.Errorf("approve %s: %w", id, domain.ErrNotHost)
	}

	patch := domain.SessionPatch{}.
		WithPending(domain.Without(s.PendingRequests, who)).
		WithInvited(domain.WithUnique(s.InvitedUsers, who))
	if _, err := o.Store.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}

	o.Publish(id, cid, protocol.TypeRequestApproved, who, true)
	// the requester usually waits outside the room
	if rcid, _, ok := o.Registry.Resolve(who); ok && !o.Registry.HasRoom(rcid, id) {
		if err := o.Send(rcid, protocol.TypeRequestApproved, who); err != nil {
			return err
		}
	}

	log.Info().Str("module", "orch").Str("session", string(id)).Str("identity", string(who)).Msg("request approved")
	o.emit(ctx, events.SessionApproved, id, who, "")
	return nil
}

// ChangeCode overwrites the whole buffer and echoes it to the room.
func (o *Orchestrator) ChangeCode(ctx context.Context, cid core.ConnID, id domain.SessionID, code string) error {
	if id == "" {
		return fmt.Errorf("%w: code-change without sessionId", domain.ErrMalformedMessage)
	}
	ctx = context.WithoutCancel(ctx)

	unlock := o.lock(id)
	defer unlock()

	if _, err := o.Store.Update(ctx, id, domain.SessionPatch{}.WithCode(code)); err != nil {
		return fmt.Errorf("change code %s: %w", id, err)
	}
	res := o.Publish(id, cid, protocol.TypeReceiveCode, code, true)
	log.Debug().Str("module", "orch").Str("session", string(id)).Int("len", len(code)).Int("sent_to", res.SendTo).Msg("code changed")
	return nil
}

func (o *Orchestrator) ChangeLanguage(ctx context.Context, cid core.ConnID, id domain.SessionID, language string) error {
	if id == "" || language == "" {
		return fmt.Errorf("%w: language-change needs sessionId and language", domain.ErrMalformedMessage)
	}
	ctx = context.WithoutCancel(ctx)

	unlock := o.lock(id)
	defer unlock()

	if _, err := o.Store.Update(ctx, id, domain.SessionPatch{}.WithLanguage(language)); err != nil {
		return fmt.Errorf("change language %s: %w", id, err)
	}
	o.Publish(id, cid, protocol.TypeUpdateLanguage, language, true)
	log.Info().Str("module", "orch").Str("session", string(id)).Str("language", language).Msg("language changed")
	o.emit(ctx, events.SessionLanguageChanged, id, "", language)
	return nil
}
