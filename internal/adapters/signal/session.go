package signal

import (
	"context"
	"fmt"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

// create-session carries the bare host identity as its data.
func (ctl *SignalWSController) handleCreateSession(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var host string
	if len(env.Data) > 0 {
		if err := env.Bind(&host); err != nil {
			return err
		}
	}
	_, err := ctl.Orch.CreateSession(ctx, cid, host)
	return err
}

func (ctl *SignalWSController) handleJoinSession(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.SessionUser
	if err := env.Bind(&p); err != nil {
		return err
	}
	if ctl.Limiter != nil {
		key, err := domain.ParseIdentity(p.UserEmail)
		if err != nil {
			key = domain.Identity(cid)
		}
		if !ctl.Limiter.Allow(key) {
			return fmt.Errorf("join %s as %s: %w", p.SessionID, p.UserEmail, domain.ErrRateLimited)
		}
	}
	return ctl.Orch.JoinSession(ctx, cid, p.SessionID, p.UserEmail)
}

func (ctl *SignalWSController) handleApproveRequest(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.SessionUser
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.ApproveRequest(ctx, cid, p.SessionID, p.UserEmail)
}

func (ctl *SignalWSController) handleCodeChange(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.CodeChange
	if err := env.Bind(&p); err != nil {
		return err
	}
	if p.Code == nil {
		return fmt.Errorf("%w: code-change without code", domain.ErrMalformedMessage)
	}
	return ctl.Orch.ChangeCode(ctx, cid, p.SessionID, *p.Code)
}

func (ctl *SignalWSController) handleLanguageChange(ctx context.Context, cid core.ConnID, env protocol.Envelope) error {
	var p protocol.LanguageChange
	if err := env.Bind(&p); err != nil {
		return err
	}
	return ctl.Orch.ChangeLanguage(ctx, cid, p.SessionID, p.Language)
}
