// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

type lobbyKey struct {
	gameID  uint32
	lobbyID uint32
}

// lobby is the server-side record of one registered host.
type lobby struct {
	mailbox  *mailbox
	channels []ChannelConfiguration

	// mu guards pending and closed. pending maps client ids awaiting
	// this host's decision to the mailbox of the session that asked, so
	// a decision reaches that session even if the id is recycled.
	mu      sync.Mutex
	pending map[uint64]*mailbox
	closed  bool
}

func newLobby(mailboxSize int, channels []ChannelConfiguration) *lobby {
	return &lobby{
		mailbox:  newMailbox(mailboxSize),
		channels: channels,
		pending:  make(map[uint64]*mailbox),
	}
}

// addPending records clientID as awaiting a decision. It fails once the
// host session has ended.
func (l *lobby) addPending(clientID uint64, client *mailbox) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.pending[clientID] = client
	return true
}

// resolvePending removes clientID and returns the mailbox waiting on it.
func (l *lobby) resolvePending(clientID uint64) (*mailbox, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	client, ok := l.pending[clientID]
	delete(l.pending, clientID)
	return client, ok
}

// close marks the lobby closed and returns the clients still waiting.
func (l *lobby) close() map[uint64]*mailbox {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	pending := l.pending
	l.pending = make(map[uint64]*mailbox)
	l.mailbox.close()
	return pending
}

// acquireLobby registers entry under a fresh random lobby id for
// gameID. Ids are drawn uniformly until an unused one is found, at most
// maxAttempts times.
func (s *Server) acquireLobby(gameID uint32, entry *lobby) (uint32, error) {
	s.lobbiesMu.Lock()
	defer s.lobbiesMu.Unlock()

	var buffer [4]byte
	for range s.config.MaxLobbyAttempts {
		if _, err := io.ReadFull(s.random, buffer[:]); err != nil {
			return 0, fmt.Errorf("drawing lobby id: %w", err)
		}
		key := lobbyKey{gameID: gameID, lobbyID: binary.BigEndian.Uint32(buffer[:])}
		if _, taken := s.lobbies[key]; taken {
			continue
		}
		s.lobbies[key] = entry
		s.metrics.lobbies.Inc()
		return key.lobbyID, nil
	}
	return 0, fmt.Errorf("%w for game %d after %d attempts", ErrLobbySpaceExhausted, gameID, s.config.MaxLobbyAttempts)
}

// releaseLobby removes the lobby if it is still the registered entry.
func (s *Server) releaseLobby(key lobbyKey, entry *lobby) {
	s.lobbiesMu.Lock()
	defer s.lobbiesMu.Unlock()
	if current, ok := s.lobbies[key]; ok && current == entry {
		delete(s.lobbies, key)
		s.metrics.lobbies.Dec()
	}
}

func (s *Server) lookupLobby(key lobbyKey) (*lobby, bool) {
	s.lobbiesMu.RLock()
	defer s.lobbiesMu.RUnlock()
	entry, ok := s.lobbies[key]
	return entry, ok
}

// acquireClient assigns the lowest free client id to client.
func (s *Server) acquireClient(client *mailbox) uint64 {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.metrics.clients.Inc()
	return uint64(s.clients.Acquire(client))
}

// releaseClient frees clientID if it still belongs to client.
func (s *Server) releaseClient(clientID uint64, client *mailbox) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if current, ok := s.clients.Get(int(clientID)); ok && current == client {
		s.clients.Release(int(clientID))
		s.metrics.clients.Dec()
	}
}

func (s *Server) lookupClient(clientID uint64) (*mailbox, bool) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.clients.Get(int(clientID))
}

// randomReader is the default lobby id source.
var randomReader io.Reader = rand.Reader

// Lobbies returns the number of registered hosts.
func (s *Server) Lobbies() int {
	s.lobbiesMu.RLock()
	defer s.lobbiesMu.RUnlock()
	return len(s.lobbies)
}

// Clients returns the number of assigned client ids.
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.clients.Len()
}
