// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "errors"

var (
	// ErrInvalidHostID is wrapped by every ParseHostID failure.
	ErrInvalidHostID = errors.New("invalid host id")

	// ErrUnknownTag reports an envelope whose role or variant tag is
	// not part of the protocol.
	ErrUnknownTag = errors.New("unknown message tag")

	// ErrEncodingMismatch reports a frame whose websocket frame kind
	// does not match the encoding fixed for the connection.
	ErrEncodingMismatch = errors.New("frame encoding does not match connection encoding")

	// ErrSocketClosed is returned by Socket.Recv and Socket.Send once
	// the connection has terminated.
	ErrSocketClosed = errors.New("signaling socket closed")

	// ErrUnexpectedMessage reports a well-formed message that is not
	// valid at this point of the exchange.
	ErrUnexpectedMessage = errors.New("unexpected signaling message")

	// ErrConnectionRejected is returned by PeerClient.OfferConnection
	// when the host declines the offer, or leaves before answering.
	ErrConnectionRejected = errors.New("connection rejected by host")

	// ErrLobbySpaceExhausted is returned when no free lobby id was found
	// within the configured number of random draws.
	ErrLobbySpaceExhausted = errors.New("no free lobby id")

	// ErrMailboxClosed is returned when delivering to a session that has
	// ended.
	ErrMailboxClosed = errors.New("mailbox closed")

	// ErrMailboxFull is returned when delivering to a session whose
	// mailbox has no free capacity.
	ErrMailboxFull = errors.New("mailbox full")
)
