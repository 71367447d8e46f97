package orch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

func TestSubscribeMovesBetweenRooms(t *testing.T) {
	h := newHarness()
	h.connect("c1")

	_, added := h.o.Subscribe("c1", "s1")
	assert.True(t, added)
	_, added = h.o.Subscribe("c1", "s1")
	assert.False(t, added)

	h.o.Subscribe("c1", "s2")
	_, ok := h.o.Rooms.Get("s1")
	assert.False(t, ok, "empty room is dropped")
	room, ok := h.o.Rooms.Get("s2")
	require.True(t, ok)
	assert.True(t, room.Has("c1"))

	room, added = h.o.Subscribe("ghost", "s1")
	assert.Nil(t, room)
	assert.False(t, added)
}

func TestDisconnectLeavesDocumentAlone(t *testing.T) {
	h, id, host, _ := callRoom(t)
	before := h.session(t, id)

	h.o.OnDisconnect("guest")

	room, ok := h.o.Rooms.Get(id)
	require.True(t, ok)
	assert.False(t, room.Has("guest"))
	_, _, ok = room.Resolve("b@x.com")
	assert.False(t, ok)
	_, _, ok = h.o.Registry.Resolve("b@x.com")
	assert.False(t, ok)

	assert.Equal(t, before, h.session(t, id))
	assert.Empty(t, host.ofType(t, protocol.TypeUserLeft))
	assert.Equal(t, 1, h.o.Stats().Connections)
}

func TestAnnounceDepartures(t *testing.T) {
	h, _, host, _ := callRoom(t)
	h.o.AnnounceDepartures = true

	h.o.OnDisconnect("guest")

	left := host.ofType(t, protocol.TypeUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "b@x.com", str(t, left[0]))
	assert.Equal(t, 1, h.o.Stats().Rooms)
}

func TestSlowConnectionIsKicked(t *testing.T) {
	h, id, host, guest := callRoom(t)
	guest.full = true

	require.NoError(t, h.o.ChangeCode(context.Background(), "host", id, "x"))

	room, ok := h.o.Rooms.Get(id)
	require.True(t, ok)
	assert.False(t, room.Has("guest"))
	assert.True(t, room.Has("host"))
	assert.Len(t, host.ofType(t, protocol.TypeReceiveCode), 1)
}

func TestPendingRequestFollowsLatestHostConnection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	old := h.connect("old")
	h.connect("guest")

	id, err := h.o.CreateSession(ctx, "old", "a@x.com")
	require.NoError(t, err)

	fresh := h.connect("fresh")
	require.NoError(t, h.o.JoinSession(ctx, "fresh", id, "a@x.com"))
	require.NoError(t, h.o.JoinSession(ctx, "guest", id, "b@x.com"))

	assert.Empty(t, old.ofType(t, protocol.TypePendingRequest))
	assert.Len(t, fresh.ofType(t, protocol.TypePendingRequest), 1)
}

func TestPendingRequestFallsBackToOlderHostConnection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	old := h.connect("old")
	h.connect("guest")

	id, err := h.o.CreateSession(ctx, "old", "a@x.com")
	require.NoError(t, err)

	h.connect("fresh")
	require.NoError(t, h.o.JoinSession(ctx, "fresh", id, "a@x.com"))
	h.o.OnDisconnect("fresh")

	require.NoError(t, h.o.JoinSession(ctx, "guest", id, "b@x.com"))

	pending := old.ofType(t, protocol.TypePendingRequest)
	require.Len(t, pending, 1)
	assert.Equal(t, "b@x.com", str(t, pending[0]))
}

func TestVerifiedIdentity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.o.Registry.BindSignal("host", &testConn{}, nil, "a@x.com")
	h.o.Registry.BindSignal("mallory", &testConn{}, nil, "m@x.com")

	id, err := h.o.CreateSession(ctx, "host", "")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("a@x.com"), h.session(t, id).Host)

	_, err = h.o.CreateSession(ctx, "mallory", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)

	err = h.o.JoinSession(ctx, "mallory", id, "b@x.com")
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)

	err = h.o.ApproveRequest(ctx, "mallory", id, "m@x.com")
	assert.ErrorIs(t, err, domain.ErrNotHost)
	assert.Empty(t, h.session(t, id).InvitedUsers)

	require.NoError(t, h.o.ApproveRequest(ctx, "host", id, "m@x.com"))
	assert.Equal(t, []domain.Identity{"m@x.com"}, h.session(t, id).InvitedUsers)
}

func TestSendToUnknownConnectionIsIgnored(t *testing.T) {
	h := newHarness()
	assert.NoError(t, h.o.Send(core.ConnID("ghost"), protocol.TypePong, nil))
	assert.False(t, h.o.Unicast("s1", "nobody", protocol.TypePong, nil))
}
