// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"
)

// ICEConfig holds the STUN and TURN servers used for candidate
// gathering. The zero value gathers host candidates only, which is
// enough on one machine or one LAN.
type ICEConfig struct {
	// Servers is tried in order.
	Servers []webrtc.ICEServer
}

// ICEConfigFromURLs builds an ICEConfig with one server entry. STUN
// URLs ignore the credentials. No URLs yields the host-only config.
func ICEConfigFromURLs(urls []string, username, credential string) ICEConfig {
	if len(urls) == 0 {
		return ICEConfig{}
	}
	return ICEConfig{
		Servers: []webrtc.ICEServer{
			{
				URLs:       urls,
				Username:   username,
				Credential: credential,
			},
		},
	}
}
