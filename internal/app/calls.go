package app

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/ucode/internal/domain"
	"github.com/rs/zerolog/log"
)

// Call is the advisory view of one session's group call.
type Call struct {
	state atomic.Int32 // Zero by default (CallIdle)

	mu           sync.RWMutex
	participants map[domain.Identity]struct{}
}

func (c *Call) State() domain.CallState {
	return domain.CallState(c.state.Load())
}

// advance moves the call forward; it never moves it back.
func (c *Call) advance(to domain.CallState) {
	for {
		cur := c.state.Load()
		if cur >= int32(to) {
			return
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

func (c *Call) add(ids ...domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			c.participants[id] = struct{}{}
		}
	}
}

func (c *Call) Participants() []domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Identity, 0, len(c.participants))
	for id := range c.participants {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// CallTracker rebuilds call state from the signaling that passes through.
// Nothing here is used to reject a message.
type CallTracker struct {
	mu    sync.RWMutex
	calls map[domain.SessionID]*Call
}

func NewCallTracker() *CallTracker {
	return &CallTracker{calls: make(map[domain.SessionID]*Call)}
}

func (t *CallTracker) call(id domain.SessionID) *Call {
	t.mu.RLock()
	c, ok := t.calls[id]
	t.mu.RUnlock()
	if ok {
		return c
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.calls[id]; ok {
		return c
	}
	c = &Call{participants: make(map[domain.Identity]struct{})}
	t.calls[id] = c
	return c
}

func (t *CallTracker) Invite(id domain.SessionID, caller domain.Identity) {
	c := t.call(id)
	c.add(caller)
	c.advance(domain.CallInvited)
	t.logState(id, c)
}

func (t *CallTracker) Signal(id domain.SessionID, kind domain.SignalKind, from, to domain.Identity) {
	c := t.call(id)
	c.add(from, to)
	c.advance(domain.CallNegotiating)
	log.Debug().Str("module", "app.calls").Str("session", string(id)).Str("kind", string(kind)).Str("state", c.State().String()).Msg("signal observed")
}

func (t *CallTracker) Accept(id domain.SessionID, from, to domain.Identity) {
	c := t.call(id)
	c.add(from, to)
	c.advance(domain.CallActive)
	t.logState(id, c)
}

// End forgets the call; the session goes back to idle.
func (t *CallTracker) End(id domain.SessionID) {
	t.mu.Lock()
	_, ok := t.calls[id]
	delete(t.calls, id)
	t.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.calls").Str("session", string(id)).Msg("call ended")
	}
}

func (t *CallTracker) State(id domain.SessionID) domain.CallState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.calls[id]; ok {
		return c.State()
	}
	return domain.CallIdle
}

func (t *CallTracker) Participants(id domain.SessionID) []domain.Identity {
	t.mu.RLock()
	c, ok := t.calls[id]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.Participants()
}

// Active counts sessions whose call is past idle.
func (t *CallTracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, c := range t.calls {
		if c.State() != domain.CallIdle {
			n++
		}
	}
	return n
}

func (t *CallTracker) logState(id domain.SessionID, c *Call) {
	log.Info().Str("module", "app.calls").Str("session", string(id)).Str("state", c.State().String()).Msg("call state")
}
