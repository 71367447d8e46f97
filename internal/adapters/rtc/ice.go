// Package rtc holds the WebRTC pieces the relay touches: the ICE
// configuration handed to browsers and the shape checks of relayed
// offers, answers and candidates. Media never passes through here.
package rtc

import (
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/config"
)

// Configuration turns the configured ICE servers into what peers expect.
func Configuration(servers []config.ICEServer) (webrtc.Configuration, error) {
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return webrtc.Configuration{}, fmt.Errorf("ice server %d: no urls", i)
		}
		for _, u := range s.URLs {
			if _, err := stun.ParseURI(u); err != nil {
				return webrtc.Configuration{}, fmt.Errorf("ice server %d: %q: %w", i, u, err)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	log.Info().Str("module", "rtc").Int("ice_servers", len(out.ICEServers)).Msg("ice configuration ready")
	return out, nil
}
