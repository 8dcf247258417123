// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"github.com/bureau-foundation/rendezvous/signaling"
)

// Event is one entry in a runtime's event stream. The concrete types
// are PeerConnected, PeerDisconnected, HostIDUpdated, Connected,
// Disconnected, ConnectionFailed, and PacketReceived.
type Event interface {
	event()
}

// PeerConnected reports a client that completed its handshake with
// the host. The id is valid until the matching PeerDisconnected.
type PeerConnected struct {
	PeerID uint64
}

// PeerDisconnected is emitted exactly once per PeerConnected.
type PeerDisconnected struct {
	PeerID uint64
}

// HostIDUpdated reports a new registration. Clients must use the new
// id; the previous one is no longer routable.
type HostIDUpdated struct {
	HostID signaling.HostID
}

// PacketReceived carries one message. On a host PeerID names the
// sender; on a client it is always zero.
type PacketReceived struct {
	PeerID  uint64
	Channel int
	Data    []byte
}

// Connected reports that a client's channels are open.
type Connected struct{}

// Disconnected is a client's terminal event after Connected, or after
// a local Disconnect.
type Disconnected struct{}

// ConnectionFailed is a client's terminal event when connecting fails.
type ConnectionFailed struct {
	Err error
}

func (PeerConnected) event()    {}
func (PeerDisconnected) event() {}
func (HostIDUpdated) event()    {}
func (PacketReceived) event()   {}
func (Connected) event()        {}
func (Disconnected) event()     {}
func (ConnectionFailed) event() {}
