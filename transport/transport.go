// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"

	"github.com/bureau-foundation/rendezvous/signaling"
)

// ErrChannelClosed is returned by Channel operations once the channel
// or its connection has closed.
var ErrChannelClosed = errors.New("transport: channel closed")

// ErrConnectionClosed is returned by Connection operations after the
// connection has closed or failed.
var ErrConnectionClosed = errors.New("transport: connection closed")

// Transport creates peer connections. The offering side calls Offer
// with the host's channel layout; the answering side calls Answer with
// the offer it received through signaling and its own layout.
type Transport interface {
	Offer(ctx context.Context, channels []signaling.ChannelConfiguration) (Connection, error)
	Answer(ctx context.Context, offer signaling.SessionDescription, channels []signaling.ChannelConfiguration) (Connection, error)
}

// Connection is one peer connection, from negotiation through to
// closure.
type Connection interface {
	// LocalDescription returns the local offer or answer once it is
	// complete enough to send through signaling.
	LocalDescription(ctx context.Context) (signaling.SessionDescription, error)

	// GatherCandidates waits for candidate gathering to finish and
	// returns every local candidate.
	GatherCandidates(ctx context.Context) ([]signaling.ICECandidate, error)

	// SetRemoteDescription applies the remote answer. Only the offering
	// side calls it; Answer already applied the remote offer.
	SetRemoteDescription(ctx context.Context, description signaling.SessionDescription) error

	// AddRemoteCandidates applies candidates received through signaling.
	AddRemoteCandidates(ctx context.Context, candidates []signaling.ICECandidate) error

	// AwaitConnected blocks until the connection is established.
	AwaitConnected(ctx context.Context) error

	// OpenChannels waits for every configured channel to open and
	// returns them indexed by their position in the layout.
	OpenChannels(ctx context.Context) ([]Channel, error)

	// Done is closed when the connection fails or closes.
	Done() <-chan struct{}

	Close() error
}

// Channel is one message-oriented data channel. Send is safe for
// concurrent use. Receive returns ErrChannelClosed once the channel has
// closed and every message received before closure has been returned.
type Channel interface {
	Send(data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
