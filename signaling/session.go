// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"log/slog"
)

// runHostSession serves a connection whose first message was Register.
func (s *Server) runHostSession(ctx context.Context, socket *ServerSocket, register Register, logger *slog.Logger) {
	entry := newLobby(s.config.MailboxSize, register.ChannelConfigurations)
	lobbyID, err := s.acquireLobby(register.GameID, entry)
	if err != nil {
		logger.Error("allocating lobby", "game_id", register.GameID, "error", err)
		s.sendError(ctx, socket, logger, InternalError)
		return
	}
	key := lobbyKey{gameID: register.GameID, lobbyID: lobbyID}
	logger = logger.With("game_id", register.GameID, "lobby_id", lobbyID)
	defer s.closeLobby(key, entry, logger)

	hostID := HostID{ServerURL: s.config.PublicURL, LobbyID: lobbyID, ShardID: s.config.ShardID}
	if err := socket.Send(ctx, Registered{HostID: hostID}); err != nil {
		logger.Debug("sending Registered failed", "error", err)
		return
	}
	logger.Info("host registered",
		"host_id", hostID.String(),
		"channels", len(register.ChannelConfigurations),
		"request_proxy", register.RequestProxy,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	incoming := receive(ctx, socket)

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-incoming:
			if !ok {
				return
			}
			if item.err != nil {
				s.endOnReceiveError(ctx, socket, logger, item.err)
				return
			}
			if !s.handleHostMessage(ctx, socket, entry, item.message, logger) {
				return
			}
		case message := <-entry.mailbox.messages:
			if err := socket.Send(ctx, message); err != nil {
				logger.Debug("relaying to host failed", "variant", message.Variant(), "error", err)
				return
			}
		}
	}
}

// handleHostMessage reports whether the session continues.
func (s *Server) handleHostMessage(ctx context.Context, socket *ServerSocket, entry *lobby, message ServerBound, logger *slog.Logger) bool {
	switch message := message.(type) {
	case AcceptConnection:
		s.relayDecision(ctx, socket, entry, message.ClientID, ConnectionAccepted{
			Offer:      message.Offer,
			Candidates: message.Candidates,
		}, logger)
		return true
	case RejectConnection:
		s.relayDecision(ctx, socket, entry, message.ClientID, ConnectionRejected{}, logger)
		return true
	default:
		logger.Warn("unexpected message from host", "variant", message.Variant())
		s.sendError(ctx, socket, logger, InvalidExpectedMessage)
		return false
	}
}

// relayDecision forwards the host's decision to the client awaiting it.
// A client id that is not pending in this lobby, or whose session has
// ended, is answered with UnknownClientId.
func (s *Server) relayDecision(ctx context.Context, socket *ServerSocket, entry *lobby, clientID uint64, decision PeerBound, logger *slog.Logger) {
	waiting, pending := entry.resolvePending(clientID)
	if pending {
		current, ok := s.lookupClient(clientID)
		pending = ok && current == waiting
	}
	if !pending {
		logger.Debug("decision for unknown client", "client_id", clientID, "variant", decision.Variant())
		s.sendError(ctx, socket, logger, UnknownClientId)
		return
	}
	if err := s.relay(waiting, decision); err != nil {
		logger.Debug("client left before decision", "client_id", clientID, "error", err)
		s.sendError(ctx, socket, logger, UnknownClientId)
		return
	}
	logger.Debug("relayed host decision", "client_id", clientID, "variant", decision.Variant())
}

// closeLobby removes the lobby from the table and rejects every client
// still waiting on it.
func (s *Server) closeLobby(key lobbyKey, entry *lobby, logger *slog.Logger) {
	s.releaseLobby(key, entry)
	pending := entry.close()
	for clientID, waiting := range pending {
		if err := s.relay(waiting, ConnectionRejected{}); err != nil {
			logger.Debug("pending client already gone", "client_id", clientID, "error", err)
		}
	}
	logger.Info("host left", "rejected_pending", len(pending))
}

// clientSession is the state of one client connection. The client id
// is assigned at the first RequestConnection and kept until the
// session ends or the request fails.
type clientSession struct {
	server  *Server
	socket  *ServerSocket
	inbox   *mailbox
	base    *slog.Logger
	logger  *slog.Logger
	id      uint64
	hasSlot bool
}

// runClientSession serves a connection whose first message was a
// client request.
func (s *Server) runClientSession(ctx context.Context, socket *ServerSocket, first ServerBound, logger *slog.Logger) {
	session := &clientSession{
		server: s,
		socket: socket,
		inbox:  newMailbox(s.config.MailboxSize),
		base:   logger,
		logger: logger,
	}
	defer session.finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !session.handle(ctx, first) {
		return
	}
	incoming := receive(ctx, socket)

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-incoming:
			if !ok {
				return
			}
			if item.err != nil {
				s.endOnReceiveError(ctx, socket, session.logger, item.err)
				return
			}
			if !session.handle(ctx, item.message) {
				return
			}
		case message := <-session.inbox.messages:
			if err := socket.Send(ctx, message); err != nil {
				session.logger.Debug("relaying to client failed", "variant", message.Variant(), "error", err)
				return
			}
		}
	}
}

// handle reports whether the session continues.
func (c *clientSession) handle(ctx context.Context, message ServerBound) bool {
	switch message := message.(type) {
	case RequestChannelConfigurations:
		entry, ok := c.server.findLobby(message.GameID, message.HostID)
		if !ok {
			c.server.sendError(ctx, c.socket, c.logger, UnknownHostId)
			return true
		}
		if err := c.socket.Send(ctx, ChannelConfigurations{Configurations: entry.channels}); err != nil {
			c.logger.Debug("sending ChannelConfigurations failed", "error", err)
			return false
		}
		return true

	case RequestConnection:
		c.requestConnection(ctx, message)
		return true

	default:
		c.logger.Warn("unexpected message from client", "variant", message.Variant())
		c.server.sendError(ctx, c.socket, c.logger, InvalidExpectedMessage)
		return false
	}
}

func (c *clientSession) requestConnection(ctx context.Context, request RequestConnection) {
	if !c.hasSlot {
		c.id = c.server.acquireClient(c.inbox)
		c.hasSlot = true
		c.logger = c.base.With("client_id", c.id)
	}

	entry, ok := c.server.findLobby(request.GameID, request.HostID)
	if !ok || !entry.addPending(c.id, c.inbox) {
		c.logger.Debug("connection request for unknown host", "host_id", request.HostID.String(), "game_id", request.GameID)
		c.releaseSlot()
		c.server.sendError(ctx, c.socket, c.logger, UnknownHostId)
		return
	}

	replied, err := c.forward(entry, request)
	if err != nil {
		if replied {
			c.logger.Debug("host left while forwarding connection request", "host_id", request.HostID.String())
			return
		}
		c.logger.Warn("forwarding connection request to host failed", "host_id", request.HostID.String(), "error", err)
		c.releaseSlot()
		c.server.sendError(ctx, c.socket, c.logger, InternalError)
		return
	}
	c.logger.Debug("forwarded connection request", "host_id", request.HostID.String())
}

// forward hands request to the host's mailbox. When that fails, replied
// reports whether the client already has its answer: a host that closed
// after addPending has queued ConnectionRejected in the client's inbox.
func (c *clientSession) forward(entry *lobby, request RequestConnection) (replied bool, err error) {
	err = c.server.relay(entry.mailbox, ConnectionRequested{
		Offer:      request.Offer,
		Candidates: request.Candidates,
		ClientID:   c.id,
	})
	if err == nil {
		return false, nil
	}
	_, pending := entry.resolvePending(c.id)
	return !pending, err
}

func (c *clientSession) releaseSlot() {
	if !c.hasSlot {
		return
	}
	c.server.releaseClient(c.id, c.inbox)
	c.hasSlot = false
	c.logger = c.base
}

func (c *clientSession) finish() {
	c.inbox.close()
	c.releaseSlot()
}

// findLobby resolves a HostID on this shard.
func (s *Server) findLobby(gameID uint32, hostID HostID) (*lobby, bool) {
	if hostID.ShardID != s.config.ShardID {
		return nil, false
	}
	return s.lookupLobby(lobbyKey{gameID: gameID, lobbyID: hostID.LobbyID})
}
