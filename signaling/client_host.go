// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// HostClientConfig configures ConnectHost.
type HostClientConfig struct {
	// ServerURL is the ws:// or wss:// URL of the signaling server.
	ServerURL string

	GameID       uint32
	RequestProxy bool

	// Channels is the host's channel layout, handed to clients that ask
	// for it.
	Channels []ChannelConfiguration

	// Socket configures the websocket. Socket.Encoding picks the wire
	// encoding for the whole session.
	Socket SocketOptions

	Logger *slog.Logger
}

// ConnectionCandidate is a client's pending connection request as seen
// by the host.
type ConnectionCandidate struct {
	ClientID   uint64
	Offer      SessionDescription
	Candidates []ICECandidate
}

// HostClient is a host peer's registered signaling session.
type HostClient struct {
	socket *ClientSocket
	hostID HostID
	logger *slog.Logger
}

// ConnectHost dials the server, registers a lobby, and waits for the
// server to name it. Any failure closes the socket and is returned.
func ConnectHost(ctx context.Context, config HostClientConfig) (*HostClient, error) {
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

	register := Register{
		GameID:                config.GameID,
		RequestProxy:          config.RequestProxy,
		ChannelConfigurations: config.Channels,
	}
	if err := socket.Send(ctx, register); err != nil {
		socket.Close()
		return nil, fmt.Errorf("sending Register: %w", err)
	}

	reply, err := socket.Recv(ctx)
	if err != nil {
		socket.Close()
		return nil, fmt.Errorf("awaiting Registered: %w", err)
	}
	var hostID HostID
	switch message := reply.(type) {
	case Registered:
		hostID = message.HostID
	case ErrorCode:
		socket.Close()
		return nil, fmt.Errorf("registering game %d: %w", config.GameID, message)
	default:
		socket.Close()
		return nil, fmt.Errorf("%w: %s while awaiting Registered", ErrUnexpectedMessage, reply.Variant())
	}

	logger.Info("registered with signaling server",
		"server", config.ServerURL,
		"game_id", config.GameID,
		"host_id", hostID.String(),
	)
	return &HostClient{
		socket: socket,
		hostID: hostID,
		logger: logger,
	}, nil
}

// HostID returns the lobby name assigned at registration.
func (c *HostClient) HostID() HostID {
	return c.hostID
}

// NextCandidate waits for the next client connection request. Error
// envelopes from the server (for example UnknownClientId after a
// decision for a client that already left) are logged and skipped. A
// closed socket or an unexpected variant is returned as an error.
func (c *HostClient) NextCandidate(ctx context.Context) (ConnectionCandidate, error) {
	for {
		message, err := c.socket.Recv(ctx)
		if err != nil {
			if errors.Is(err, ErrSocketClosed) || ctx.Err() != nil {
				return ConnectionCandidate{}, err
			}
			c.logger.Warn("dropping undecodable signaling frame", "error", err)
			continue
		}
		switch message := message.(type) {
		case ConnectionRequested:
			return ConnectionCandidate{
				ClientID:   message.ClientID,
				Offer:      message.Offer,
				Candidates: message.Candidates,
			}, nil
		case ErrorCode:
			c.logger.Warn("signaling server reported an error", "code", string(message))
		default:
			return ConnectionCandidate{}, fmt.Errorf("%w: %s while awaiting ConnectionRequested", ErrUnexpectedMessage, message.Variant())
		}
	}
}

// AcceptCandidate sends the host's answer for clientID.
func (c *HostClient) AcceptCandidate(ctx context.Context, clientID uint64, answer SessionDescription, candidates []ICECandidate) error {
	return c.socket.Send(ctx, AcceptConnection{
		Offer:      answer,
		Candidates: candidates,
		ClientID:   clientID,
	})
}

// RejectCandidate declines clientID's request.
func (c *HostClient) RejectCandidate(ctx context.Context, clientID uint64) error {
	return c.socket.Send(ctx, RejectConnection{ClientID: clientID})
}

// IsOpen reports whether the signaling socket is still connected.
func (c *HostClient) IsOpen() bool {
	return c.socket.IsOpen()
}

// Done is closed when the signaling socket ends.
func (c *HostClient) Done() <-chan struct{} {
	return c.socket.Done()
}

// Close ends the session. The server releases the lobby.
func (c *HostClient) Close() error {
	return c.socket.Close()
}
