package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoomLifecycle(t *testing.T) {
	r := NewRegistry()
	r.BindSignal("c1", &fakeSignal{}, nil, "")

	_, ok := r.RoomOf("c1")
	assert.False(t, ok)

	require.True(t, r.UpdateRoom("c1", "s1"))
	room, ok := r.RoomOf("c1")
	require.True(t, ok)
	assert.EqualValues(t, "s1", room)

	r.RemoveRoom("c1")
	_, ok = r.RoomOf("c1")
	assert.False(t, ok)

	assert.False(t, r.UpdateRoom("missing", "s1"))
}

func TestRegistryIdentityFollowsMostRecentConnection(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeSignal{}, &fakeSignal{}
	r.BindSignal("c1", first, nil, "")
	r.BindSignal("c2", second, nil, "")

	r.BindIdentity("a@x.com", "c1")
	r.BindIdentity("a@x.com", "c2")

	cid, sig, ok := r.Resolve("a@x.com")
	require.True(t, ok)
	assert.EqualValues(t, "c2", cid)
	assert.Same(t, second, sig)

	r.Unbind("c2")
	cid, sig, ok = r.Resolve("a@x.com")
	require.True(t, ok)
	assert.EqualValues(t, "c1", cid)
	assert.Same(t, first, sig)

	r.Unbind("c1")
	_, _, ok = r.Resolve("a@x.com")
	assert.False(t, ok)
}

func TestRegistryIgnoresBindingForUnknownConnection(t *testing.T) {
	r := NewRegistry()
	r.BindIdentity("a@x.com", "ghost")
	_, _, ok := r.Resolve("a@x.com")
	assert.False(t, ok)
}

func TestRegistryVerifiedIdentity(t *testing.T) {
	r := NewRegistry()
	r.BindSignal("c1", &fakeSignal{}, nil, "a@x.com")
	r.BindSignal("c2", &fakeSignal{}, nil, "")

	id, ok := r.Verified("c1")
	require.True(t, ok)
	assert.EqualValues(t, "a@x.com", id)
	_, ok = r.Verified("c2")
	assert.False(t, ok)

	cid, _, ok := r.Resolve("a@x.com")
	require.True(t, ok)
	assert.EqualValues(t, "c1", cid)
}

func TestRegistryUnbindReportsRoomAndCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.BindSignal("c1", &fakeSignal{}, cancel, "")
	r.UpdateRoom("c1", "s1")

	assert.True(t, r.Cancel("c1"))
	assert.Error(t, ctx.Err())

	room, ok := r.Unbind("c1")
	assert.True(t, ok)
	assert.EqualValues(t, "s1", room)
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.Cancel("c1"))
}
