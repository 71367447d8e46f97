package orch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

// callRoom puts a@x.com (host) and b@x.com (guest) in one session.
func callRoom(t *testing.T) (*harness, domain.SessionID, *testConn, *testConn) {
	t.Helper()
	h := newHarness()
	ctx := context.Background()
	host, guest := h.connect("host"), h.connect("guest")
	id, err := h.o.CreateSession(ctx, "host", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, h.o.ApproveRequest(ctx, "host", id, "b@x.com"))
	require.NoError(t, h.o.JoinSession(ctx, "guest", id, "b@x.com"))
	host.reset()
	guest.reset()
	return h, id, host, guest
}

func TestStartCallInvitesEveryoneButCaller(t *testing.T) {
	h, id, host, guest := callRoom(t)

	require.NoError(t, h.o.StartCall(context.Background(), "host", id, "a@x.com"))

	assert.Empty(t, host.ofType(t, protocol.TypeCallInvitation))
	got := guest.ofType(t, protocol.TypeCallInvitation)
	require.Len(t, got, 1)
	var inv protocol.CallInvitation
	require.NoError(t, got[0].Bind(&inv))
	assert.Equal(t, protocol.CallInvitation{SessionID: id, Caller: "a@x.com"}, inv)
	assert.Equal(t, domain.CallInvited, h.o.Calls.State(id))
}

func TestRelaySignalForwardsPayloadAndTagsSender(t *testing.T) {
	h, id, host, guest := callRoom(t)
	ctx := context.Background()

	raw := json.RawMessage(`{"sessionId":"` + string(id) + `","from":"spoofed","to":"b@x.com","offer":{"type":"offer","sdp":"v=0"}}`)
	require.NoError(t, h.o.RelaySignal(ctx, "host", domain.SignalOffer, raw))

	got := guest.ofType(t, protocol.TypeOffer)
	require.Len(t, got, 1)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got[0].Data, &fields))
	assert.JSONEq(t, `"spoofed"`, string(fields["from"]))
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(fields["offer"]))
	assert.JSONEq(t, `"b@x.com"`, string(fields["to"]))
	assert.Empty(t, host.ofType(t, protocol.TypeOffer))
	assert.Equal(t, domain.CallNegotiating, h.o.Calls.State(id))
}

func TestRelaySignalToUnboundIdentityIsDropped(t *testing.T) {
	h, id, host, guest := callRoom(t)

	for _, kind := range []domain.SignalKind{domain.SignalOffer, domain.SignalAnswer, domain.SignalCandidate} {
		raw := json.RawMessage(`{"sessionId":"` + string(id) + `","from":"a@x.com","to":"nobody@x.com","candidate":{}}`)
		assert.NoError(t, h.o.RelaySignal(context.Background(), "host", kind, raw))
	}
	assert.Empty(t, host.envelopes(t))
	assert.Empty(t, guest.envelopes(t))
}

func TestRelaySignalWithoutSessionUsesCurrentRoom(t *testing.T) {
	h, id, _, guest := callRoom(t)

	raw := json.RawMessage(`{"from":"a@x.com","to":"b@x.com","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}}`)
	require.NoError(t, h.o.RelaySignal(context.Background(), "host", domain.SignalCandidate, raw))

	assert.Len(t, guest.ofType(t, protocol.TypeICECandidate), 1)
	assert.Equal(t, domain.CallNegotiating, h.o.Calls.State(id))
}

func TestRelaySignalRejectsBadRoutes(t *testing.T) {
	h, _, _, _ := callRoom(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.o.RelaySignal(ctx, "host", domain.SignalOffer, nil), domain.ErrMalformedMessage)
	assert.ErrorIs(t, h.o.RelaySignal(ctx, "host", domain.SignalOffer, json.RawMessage(`[1]`)), domain.ErrMalformedMessage)
	assert.ErrorIs(t, h.o.RelaySignal(ctx, "host", domain.SignalOffer, json.RawMessage(`{"from":"a@x.com"}`)), domain.ErrMalformedMessage)
	assert.ErrorIs(t, h.o.RelaySignal(ctx, "host", "bogus", json.RawMessage(`{}`)), domain.ErrMalformedMessage)
}

func TestAcceptAndEndCall(t *testing.T) {
	h, id, host, guest := callRoom(t)
	ctx := context.Background()

	require.NoError(t, h.o.StartCall(ctx, "host", id, "a@x.com"))
	require.NoError(t, h.o.AcceptCall(ctx, "guest", json.RawMessage(`{"from":"b@x.com","to":"a@x.com"}`)))

	acc := host.ofType(t, protocol.TypeCallAccepted)
	require.Len(t, acc, 1)
	var route protocol.Route
	require.NoError(t, acc[0].Bind(&route))
	assert.Equal(t, "b@x.com", route.From)
	assert.Equal(t, domain.CallActive, h.o.Calls.State(id))
	assert.Equal(t, []domain.Identity{"a@x.com", "b@x.com"}, h.o.Calls.Participants(id))
	assert.Equal(t, 1, h.o.Stats().Calls)

	require.NoError(t, h.o.EndCall(ctx, "guest", id))
	ends := host.ofType(t, protocol.TypeEndCall)
	require.Len(t, ends, 1)
	assert.Empty(t, guest.ofType(t, protocol.TypeEndCall))
	assert.Equal(t, domain.CallIdle, h.o.Calls.State(id))
}

func TestCallOutsideSessionIsMalformed(t *testing.T) {
	h := newHarness()
	h.connect("c1")
	ctx := context.Background()
	assert.ErrorIs(t, h.o.StartCall(ctx, "c1", "", "a@x.com"), domain.ErrMalformedMessage)
	assert.ErrorIs(t, h.o.EndCall(ctx, "c1", ""), domain.ErrMalformedMessage)
}
