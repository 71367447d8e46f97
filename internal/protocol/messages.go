// Package protocol defines the websocket envelope and the payloads exchanged
// between clients and the relay.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
)

// MessageType is the event name carried in every envelope.
type MessageType string

const (
	// Client -> Server
	TypeCreateSession  MessageType = "create-session"
	TypeJoinSession    MessageType = "join-session"
	TypeApproveRequest MessageType = "approve-request"
	TypeCodeChange     MessageType = "code-change"
	TypeLanguageChange MessageType = "language-change"
	TypeStartCall      MessageType = "start-call"
	TypePing           MessageType = "ping"

	// Client -> Server -> Client
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeCallAccepted MessageType = "call-accepted"
	TypeEndCall      MessageType = "end-call"

	// Server -> Client
	TypeSessionCreated  MessageType = "session-created"
	TypeLoadSession     MessageType = "load-session"
	TypePendingRequest  MessageType = "pending-request"
	TypeUserJoined      MessageType = "user-joined"
	TypeUserLeft        MessageType = "user-left"
	TypeReceiveCode     MessageType = "receive-code"
	TypeUpdateLanguage  MessageType = "update-language"
	TypeRequestApproved MessageType = "request-approved"
	TypeCallInvitation  MessageType = "call-invitation"
	TypePong            MessageType = "pong"
	TypeError           MessageType = "error"
)

// Envelope is one websocket text frame.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SessionCreated struct {
	SessionID domain.SessionID `json:"sessionId"`
}

// SessionUser is the payload of join-session and approve-request.
type SessionUser struct {
	SessionID domain.SessionID `json:"sessionId"`
	UserEmail string           `json:"userEmail"`
}

type CodeChange struct {
	SessionID domain.SessionID `json:"sessionId"`
	Code      *string          `json:"code"`
}

type LanguageChange struct {
	SessionID domain.SessionID `json:"sessionId"`
	Language  string           `json:"language"`
}

type StartCall struct {
	SessionID domain.SessionID `json:"sessionId"`
	Caller    string           `json:"caller"`
}

type CallInvitation struct {
	SessionID domain.SessionID `json:"sessionId"`
	Caller    domain.Identity  `json:"caller"`
}

// Route is the addressing part shared by every point-to-point call message.
type Route struct {
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	From      string           `json:"from"`
	To        string           `json:"to"`
}

type EndCall struct {
	SessionID domain.SessionID `json:"sessionId"`
}

// Encode marshals a server event into a frame ready for TrySend.
func Encode(t MessageType, data any) (core.Frame, error) {
	env := struct {
		Type MessageType `json:"type"`
		Data any         `json:"data,omitempty"`
	}{Type: t, Data: data}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return b, nil
}

// Decode parses an inbound frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", domain.ErrMalformedMessage)
	}
	return env, nil
}

// Bind unmarshals the envelope data into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s without data", domain.ErrMalformedMessage, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedMessage, e.Type, err)
	}
	return nil
}

// Retag copies raw call payload fields and overwrites "from".
// Every other field is forwarded untouched.
func Retag(raw json.RawMessage, from domain.Identity) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	f, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	fields["from"] = f
	return json.Marshal(fields)
}
