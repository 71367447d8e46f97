package signal

import (
	"github.com/dkeye/ucode/internal/core"
	"github.com/dkeye/ucode/internal/protocol"
)

func (ctl *SignalWSController) handlePing(c core.SignalConnection) {
	ctl.sendJSON(c, protocol.TypePong, nil)
}
