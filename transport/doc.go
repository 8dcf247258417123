// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the peer-to-peer data transport the rendezvous
// peers negotiate through signaling.
//
// [Transport] creates a [Connection] as either the offering side
// (the client) or the answering side (the host). A connection exposes
// its local description and candidates for signaling, accepts the
// remote ones, and once connected yields one [Channel] per entry of the
// host's channel layout. Channels are message oriented: each Send is
// one Receive on the other side.
//
// [WebRTCTransport] is the production implementation on pion/webrtc.
// Its data channels are pre-negotiated with ids equal to their layout
// index and carry the layout's ordering and retransmit settings.
// Gathering is vanilla ICE, so descriptions are only returned after
// every local candidate is known. [ICEConfig] holds STUN and TURN
// servers.
//
// [MemoryTransport] pairs connections inside one process, for runtime
// tests that need no network.
package transport
