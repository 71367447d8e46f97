package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/ucode/internal/domain"
)

// Validator parses signaling payloads with the same types a pion peer
// would use. It does not keep any state.
type Validator struct{}

func (Validator) Validate(kind domain.SignalKind, raw json.RawMessage) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	switch kind {
	case domain.SignalOffer:
		return description(fields["offer"], webrtc.SDPTypeOffer)
	case domain.SignalAnswer:
		return description(fields["answer"], webrtc.SDPTypeAnswer)
	case domain.SignalCandidate:
		return candidate(fields["candidate"])
	default:
		return fmt.Errorf("unknown signal %q", kind)
	}
}

func description(raw json.RawMessage, want webrtc.SDPType) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing %s", want)
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return err
	}
	if sd.Type != want {
		return fmt.Errorf("got %s, want %s", sd.Type, want)
	}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("sdp: %w", err)
	}
	return nil
}

func candidate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("missing candidate")
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ci); err != nil {
		return err
	}
	// an empty candidate marks the end of gathering
	if ci.Candidate == "" {
		return nil
	}
	if _, err := ice.UnmarshalCandidate(strings.TrimPrefix(ci.Candidate, "candidate:")); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	return nil
}
