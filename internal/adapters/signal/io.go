package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/domain"
	"github.com/dkeye/ucode/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cid core.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// closing the socket unblocks readPump, which runs the disconnect
			log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cid core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		cancel()
		ctl.Orch.OnDisconnect(cid)
		c.Close()
	}()

	limit := ctl.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
			ctl.handleSignal(ctx, cid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cid core.ConnID, c core.SignalConnection, data []byte) {
	var typ protocol.MessageType
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(cid)).Str("type", string(typ)).Interface("panic", r).Msg("handler panic")
			ctl.replyError(cid, c, typ, fmt.Errorf("panic: %v", r))
		}
	}()

	env, err := protocol.Decode(data)
	if err != nil {
		ctl.replyError(cid, c, "", err)
		return
	}
	typ = env.Type

	switch env.Type {
	case protocol.TypeCreateSession:
		err = ctl.handleCreateSession(ctx, cid, env)
	case protocol.TypeJoinSession:
		err = ctl.handleJoinSession(ctx, cid, env)
	case protocol.TypeApproveRequest:
		err = ctl.handleApproveRequest(ctx, cid, env)
	case protocol.TypeCodeChange:
		err = ctl.handleCodeChange(ctx, cid, env)
	case protocol.TypeLanguageChange:
		err = ctl.handleLanguageChange(ctx, cid, env)
	case protocol.TypeStartCall:
		err = ctl.handleStartCall(ctx, cid, env)
	case protocol.TypeOffer:
		err = ctl.handleSignalling(ctx, cid, domain.SignalOffer, env)
	case protocol.TypeAnswer:
		err = ctl.handleSignalling(ctx, cid, domain.SignalAnswer, env)
	case protocol.TypeICECandidate:
		err = ctl.handleSignalling(ctx, cid, domain.SignalCandidate, env)
	case protocol.TypeCallAccepted:
		err = ctl.Orch.AcceptCall(ctx, cid, env.Data)
	case protocol.TypeEndCall:
		err = ctl.handleEndCall(ctx, cid, env)
	case protocol.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		err = fmt.Errorf("%w: unknown type %q", domain.ErrMalformedMessage, env.Type)
	}
	if err != nil {
		ctl.replyError(cid, c, env.Type, err)
	}
}

func (ctl *SignalWSController) replyError(cid core.ConnID, c core.SignalConnection, typ protocol.MessageType, err error) {
	ev := log.Warn()
	if errors.Is(err, domain.ErrStoreUnavailable) || !isKnown(err) {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "signal").Str("conn", string(cid)).Str("type", string(typ)).Msg("handler failed")
	ctl.sendJSON(c, protocol.TypeError, errorMessage(err))
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, t protocol.MessageType, v any) {
	frame, err := protocol.Encode(t, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}

var known = []error{
	domain.ErrSessionNotFound,
	domain.ErrStoreUnavailable,
	domain.ErrMalformedMessage,
	domain.ErrIdentityMismatch,
	domain.ErrNotHost,
	domain.ErrRateLimited,
}

func isKnown(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// errorMessage is what the client sees. Store details stay in the log.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "session store unavailable, try again"
	case errors.Is(err, domain.ErrMalformedMessage):
		return err.Error()
	case errors.Is(err, domain.ErrIdentityMismatch):
		return domain.ErrIdentityMismatch.Error()
	case errors.Is(err, domain.ErrNotHost):
		return domain.ErrNotHost.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return "too many join requests, slow down"
	default:
		return "internal error"
	}
}
