package domain

// CallState is the lifecycle of a group call as seen from the relay.
// The relay only observes it; out-of-order signaling is still forwarded.
type CallState int32

const (
	CallIdle CallState = iota
	CallInvited
	CallNegotiating
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallInvited:
		return "invited"
	case CallNegotiating:
		return "negotiating"
	case CallActive:
		return "active"
	default:
		return "idle"
	}
}

// SignalKind names the point-to-point call messages.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice-candidate"
)
