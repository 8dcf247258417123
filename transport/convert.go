// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/signaling"
)

func descriptionToPion(description signaling.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(description.Type),
		SDP:  description.SDP,
	}
}

func descriptionFromPion(description webrtc.SessionDescription) signaling.SessionDescription {
	return signaling.SessionDescription{
		Type: description.Type.String(),
		SDP:  description.SDP,
	}
}

func candidateToPion(candidate signaling.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	}
}

func candidateFromPion(candidate webrtc.ICECandidateInit) signaling.ICECandidate {
	return signaling.ICECandidate{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	}
}

// channelInit maps a channel configuration to a pre-negotiated pion
// data channel. Both sides create the same channels with the same ids,
// so no in-band open handshake is needed.
func channelInit(index int, configuration signaling.ChannelConfiguration) *webrtc.DataChannelInit {
	ordered := configuration.Ordered
	negotiated := true
	id := uint16(index)
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: configuration.MaxRetransmits,
		Negotiated:     &negotiated,
		ID:             &id,
	}
}
