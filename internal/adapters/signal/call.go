package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

// SignalValidator inspects offer, answer and candidate payloads.
type SignalValidator interface {
	Validate(kind domain.SignalKind, raw json.RawMessage) error
}

func (ctl *SignalWSController) handleStartCall(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.StartCall
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.StartCall(ctx, cid, p.SessionID, p.Caller)
}

func (ctl *SignalWSController) handleSignalling(ctx context.Context, cid core.ConnID, kind domain.SignalKind, env protocol.Envelope) error {
	if ctl.Validator != nil && len(env.Data) > 0 {
		if err := ctl.Validator.Validate(kind, env.Data); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrMalformedMessage, kind, err)
		}
	}
	return ctl.Orch.RelaySignal(ctx, cid, kind, env.Data)
}

// end-call may come without data; the current room is used then.
func (ctl *SignalWSController) handleEndCall(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.EndCall
	if len(env.Data) > 0 {
		if err := env.Bind(&p); err != nil {
			return err
		}
	}
	return ctl.Orch.EndCall(ctx, cid, p.SessionID)
}
