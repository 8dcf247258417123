// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/rendezvous/signaling"
)

var (
	_ Transport  = (*MemoryTransport)(nil)
	_ Connection = (*memoryConnection)(nil)
	_ Channel    = (*memoryChannel)(nil)
)

// memorySDPPrefix marks the session token carried in a memory offer or
// answer.
const memorySDPPrefix = "memory-session:"

// memoryChannelBuffer is the number of undelivered messages a memory
// channel holds before Send blocks.
const memoryChannelBuffer = 256

// MemoryTransport connects peers inside one process. Every peer that
// should reach another must share the same MemoryTransport. The offer's
// SDP carries a session token that Answer uses to pair the two sides;
// signaling relays it like any other description.
type MemoryTransport struct {
	mu       sync.Mutex
	sessions map[string]*memorySession

	// refuseAnswers makes Answer fail, for exercising handshake failure.
	refuseAnswers bool
}

// NewMemoryTransport creates an empty in-process transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{sessions: make(map[string]*memorySession)}
}

// RefuseAnswers makes every later Answer call fail when refuse is true.
func (mt *MemoryTransport) RefuseAnswers(refuse bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.refuseAnswers = refuse
}

// memorySession is the state shared by both ends of one connection.
type memorySession struct {
	token    string
	channels []signaling.ChannelConfiguration

	// links[i][side] carries messages toward side on channel i. Side 0 is
	// the offerer.
	links [][2]*memoryLink

	answered  bool
	connected chan struct{}
	connectMu sync.Mutex
	linked    bool

	done     chan struct{}
	doneOnce sync.Once
}

type memoryLink struct {
	messages  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMemoryLink() *memoryLink {
	return &memoryLink{
		messages: make(chan []byte, memoryChannelBuffer),
		closed:   make(chan struct{}),
	}
}

func (l *memoryLink) close() {
	l.closeOnce.Do(func() { close(l.closed) })
}

func (s *memorySession) close() {
	s.doneOnce.Do(func() {
		close(s.done)
		for _, pair := range s.links {
			pair[0].close()
			pair[1].close()
		}
	})
}

func (mt *MemoryTransport) Offer(ctx context.Context, channels []signaling.ChannelConfiguration) (Connection, error) {
	session := &memorySession{
		token:     uuid.NewString(),
		channels:  append([]signaling.ChannelConfiguration(nil), channels...),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for range channels {
		session.links = append(session.links, [2]*memoryLink{newMemoryLink(), newMemoryLink()})
	}

	mt.mu.Lock()
	mt.sessions[session.token] = session
	mt.mu.Unlock()

	return &memoryConnection{transport: mt, session: session, side: 0}, nil
}

func (mt *MemoryTransport) Answer(ctx context.Context, offer signaling.SessionDescription, channels []signaling.ChannelConfiguration) (Connection, error) {
	token, ok := strings.CutPrefix(offer.SDP, memorySDPPrefix)
	if !ok || offer.Type != "offer" {
		return nil, fmt.Errorf("memory transport: not a memory offer: %q", offer.SDP)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.refuseAnswers {
		return nil, errors.New("memory transport: answers refused")
	}
	session, ok := mt.sessions[token]
	if !ok {
		return nil, fmt.Errorf("memory transport: unknown session %s", token)
	}
	if session.answered {
		return nil, fmt.Errorf("memory transport: session %s already answered", token)
	}
	if len(channels) != len(session.channels) {
		return nil, fmt.Errorf("memory transport: offer has %d channels, answer has %d", len(session.channels), len(channels))
	}
	session.answered = true
	return &memoryConnection{transport: mt, session: session, side: 1}, nil
}

func (mt *MemoryTransport) forget(session *memorySession) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if current, ok := mt.sessions[session.token]; ok && current == session {
		delete(mt.sessions, session.token)
	}
}

// memoryConnection is one side of a memory session.
type memoryConnection struct {
	transport *MemoryTransport
	session   *memorySession
	side      int
}

func (c *memoryConnection) description() signaling.SessionDescription {
	kind := "offer"
	if c.side == 1 {
		kind = "answer"
	}
	return signaling.SessionDescription{Type: kind, SDP: memorySDPPrefix + c.session.token}
}

func (c *memoryConnection) LocalDescription(ctx context.Context) (signaling.SessionDescription, error) {
	select {
	case <-c.session.done:
		return signaling.SessionDescription{}, ErrConnectionClosed
	default:
	}
	return c.description(), nil
}

func (c *memoryConnection) GatherCandidates(ctx context.Context) ([]signaling.ICECandidate, error) {
	select {
	case <-c.session.done:
		return nil, ErrConnectionClosed
	default:
	}
	mid := "0"
	return []signaling.ICECandidate{{
		Candidate: fmt.Sprintf("candidate:memory %d %s", c.side, c.session.token),
		SDPMid:    &mid,
	}}, nil
}

// SetRemoteDescription completes the pairing on the offering side.
func (c *memoryConnection) SetRemoteDescription(ctx context.Context, description signaling.SessionDescription) error {
	if c.side != 0 {
		return errors.New("memory transport: remote description already set by Answer")
	}
	if description.Type != "answer" || description.SDP != memorySDPPrefix+c.session.token {
		return fmt.Errorf("memory transport: answer does not match session %s", c.session.token)
	}
	c.session.connectMu.Lock()
	defer c.session.connectMu.Unlock()
	select {
	case <-c.session.done:
		return ErrConnectionClosed
	default:
	}
	if !c.session.linked {
		c.session.linked = true
		close(c.session.connected)
	}
	return nil
}

func (c *memoryConnection) AddRemoteCandidates(ctx context.Context, candidates []signaling.ICECandidate) error {
	for _, candidate := range candidates {
		if !strings.HasPrefix(candidate.Candidate, "candidate:memory ") {
			return fmt.Errorf("memory transport: foreign candidate %q", candidate.Candidate)
		}
	}
	return nil
}

func (c *memoryConnection) AwaitConnected(ctx context.Context) error {
	select {
	case <-c.session.connected:
		return nil
	case <-c.session.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memoryConnection) OpenChannels(ctx context.Context) ([]Channel, error) {
	if err := c.AwaitConnected(ctx); err != nil {
		return nil, err
	}
	channels := make([]Channel, len(c.session.links))
	for index, pair := range c.session.links {
		channels[index] = &memoryChannel{
			outbound: pair[1-c.side],
			inbound:  pair[c.side],
		}
	}
	return channels, nil
}

func (c *memoryConnection) Done() <-chan struct{} {
	return c.session.done
}

// Close ends the session for both sides.
func (c *memoryConnection) Close() error {
	c.session.close()
	c.transport.forget(c.session)
	return nil
}

// memoryChannel delivers every message in order regardless of the
// channel configuration.
type memoryChannel struct {
	outbound *memoryLink
	inbound  *memoryLink
}

func (c *memoryChannel) Send(data []byte) error {
	message := append([]byte(nil), data...)
	select {
	case <-c.outbound.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.outbound.messages <- message:
		return nil
	case <-c.outbound.closed:
		return ErrChannelClosed
	}
}

func (c *memoryChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case message := <-c.inbound.messages:
		return message, nil
	default:
	}
	select {
	case message := <-c.inbound.messages:
		return message, nil
	case <-c.inbound.closed:
		select {
		case message := <-c.inbound.messages:
			return message, nil
		default:
		}
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes both directions of this channel. The connection stays
// open.
func (c *memoryChannel) Close() error {
	c.outbound.close()
	c.inbound.close()
	return nil
}
