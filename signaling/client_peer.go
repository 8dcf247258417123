// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"fmt"
	"log/slog"
)

// PeerClientConfig configures ConnectPeer.
type PeerClientConfig struct {
	// ServerURL is usually the ServerURL of the target HostID.
	ServerURL string

	GameID uint32

	Socket SocketOptions
	Logger *slog.Logger
}

// HostAnswer is the host's reply to an accepted offer.
type HostAnswer struct {
	Answer     SessionDescription
	Candidates []ICECandidate
}

// PeerClient is a client peer's signaling session. Its methods are
// request/response exchanges and must not be called concurrently.
type PeerClient struct {
	socket *ClientSocket
	gameID uint32
	logger *slog.Logger
}

// ConnectPeer dials the signaling server.
func ConnectPeer(ctx context.Context, config PeerClientConfig) (*PeerClient, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	options := config.Socket
	options.Logger = logger

	socket, err := Dial(ctx, config.ServerURL, options)
	if err != nil {
		return nil, err
	}
	return &PeerClient{socket: socket, gameID: config.GameID, logger: logger}, nil
}

// ChannelConfigurations asks the server for hostID's channel layout.
// An unknown host returns [UnknownHostId].
func (c *PeerClient) ChannelConfigurations(ctx context.Context, hostID HostID) ([]ChannelConfiguration, error) {
	request := RequestChannelConfigurations{HostID: hostID, GameID: c.gameID}
	if err := c.socket.Send(ctx, request); err != nil {
		return nil, fmt.Errorf("sending RequestChannelConfigurations: %w", err)
	}

	reply, err := c.socket.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("awaiting ChannelConfigurations: %w", err)
	}
	switch message := reply.(type) {
	case ChannelConfigurations:
		return message.Configurations, nil
	case ErrorCode:
		return nil, message
	default:
		return nil, fmt.Errorf("%w: %s while awaiting ChannelConfigurations", ErrUnexpectedMessage, reply.Variant())
	}
}

// OfferConnection sends the client's offer to hostID and waits for the
// host's decision. A rejection returns [ErrConnectionRejected]; a server
// error returns its [ErrorCode].
func (c *PeerClient) OfferConnection(ctx context.Context, hostID HostID, offer SessionDescription, candidates []ICECandidate) (HostAnswer, error) {
	request := RequestConnection{
		Offer:      offer,
		Candidates: candidates,
		HostID:     hostID,
		GameID:     c.gameID,
	}
	if err := c.socket.Send(ctx, request); err != nil {
		return HostAnswer{}, fmt.Errorf("sending RequestConnection: %w", err)
	}

	reply, err := c.socket.Recv(ctx)
	if err != nil {
		return HostAnswer{}, fmt.Errorf("awaiting host decision: %w", err)
	}
	switch message := reply.(type) {
	case ConnectionAccepted:
		c.logger.Debug("host accepted connection", "host_id", hostID.String(), "candidates", len(message.Candidates))
		return HostAnswer{Answer: message.Offer, Candidates: message.Candidates}, nil
	case ConnectionRejected:
		return HostAnswer{}, ErrConnectionRejected
	case ErrorCode:
		return HostAnswer{}, message
	default:
		return HostAnswer{}, fmt.Errorf("%w: %s while awaiting host decision", ErrUnexpectedMessage, reply.Variant())
	}
}

// IsOpen reports whether the signaling socket is still connected.
func (c *PeerClient) IsOpen() bool {
	return c.socket.IsOpen()
}

// Close ends the session.
func (c *PeerClient) Close() error {
	return c.socket.Close()
}
