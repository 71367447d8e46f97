// Package events streams session lifecycle notifications to the outside world.
package events

import (
	"context"
	"time"

	"github.com/dkeye/ucode/internal/domain"
)

// Event names double as AMQP routing keys.
const (
	SessionCreated         = "session.created"
	SessionJoinRequested   = "session.join_requested"
	SessionApproved        = "session.approved"
	SessionJoined          = "session.joined"
	SessionLanguageChanged = "session.language_changed"
	CallStarted            = "call.started"
	CallEnded              = "call.ended"
)

type Event struct {
	Type     string           `json:"type"`
	Session  domain.SessionID `json:"sessionId"`
	Identity domain.Identity  `json:"identity,omitempty"`
	Detail   string           `json:"detail,omitempty"`
	At       time.Time        `json:"at"`
}

// Publisher never blocks the caller on the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
