package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/ucode/internal/app"
	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/events"
	"github.com/dkeye/ucode/internal/protocol"
	"github.com/dkeye/ucode/internal/store"
)

type testConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (c *testConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *testConn) Close() {}

func (c *testConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *testConn) ofType(t *testing.T, typ protocol.MessageType) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for _, env := range c.envelopes(t) {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (c *testConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func str(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	o      *Orchestrator
	store  *store.MemoryStore
	events *recorder
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newHarness() *harness {
	st := store.NewMemoryStore()
	rec := &recorder{}
	return &harness{
		o: &Orchestrator{
			Registry: app.NewRegistry(),
			Rooms:    app.NewRoomManager(),
			Store:    st,
			Calls:    app.NewCallTracker(),
			Policy:   app.SimplePolicy{},
			Events:   rec,
			Clock:    func() time.Time { return fixedNow },
		},
		store:  st,
		events: rec,
	}
}

func (h *harness) connect(cid string) *testConn {
	c := &testConn{}
	h.o.Registry.BindSignal(core.ConnID(cid), c, nil, "")
	return c
}

func (h *harness) session(t *testing.T, id domain.SessionID) *domain.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}
