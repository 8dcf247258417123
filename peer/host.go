// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/slottable"
	"github.com/bureau-foundation/rendezvous/signaling"
	"github.com/bureau-foundation/rendezvous/transport"
)

const (
	// DefaultReconnectDelay is the pause between failed registrations
	// when HostConfig.ReconnectDelay is zero.
	DefaultReconnectDelay = time.Second

	// DefaultHandshakeTimeout bounds one client handshake, and one
	// registration attempt, when HostConfig.HandshakeTimeout is zero.
	DefaultHandshakeTimeout = 30 * time.Second
)

// HostConfig configures NewHost.
type HostConfig struct {
	// ServerURL is the signaling server to register with.
	ServerURL string

	GameID       uint32
	RequestProxy bool

	// Channels is the channel layout every client connection gets.
	Channels []signaling.ChannelConfiguration

	Transport transport.Transport

	// Encoding is the signaling wire encoding.
	Encoding signaling.Encoding

	// TLSConfig is used to dial a wss:// signaling server. Nil uses the
	// system roots.
	TLSConfig *tls.Config

	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration

	// Clock times the pause between registration attempts. Nil means
	// clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Host accepts client peers through a signaling server. Its worker
// starts in NewHost and runs until Shutdown.
type Host struct {
	config HostConfig
	logger *slog.Logger
	events *Queue[Event]

	// sessionMu guards the active signaling session and the HostID it
	// was issued. The id stays readable while a new session is being
	// registered.
	sessionMu sync.RWMutex
	session   *signaling.HostClient
	hostID    signaling.HostID

	// peersMu guards peers. SendPacket takes it shared; admitting and
	// releasing peers take it exclusively.
	peersMu sync.RWMutex
	peers   *slottable.Table[*remotePeer]

	shutdown atomic.Bool
	wake     chan struct{}
	done     chan struct{}

	// Worker inputs. Helper goroutines report here and the worker
	// handles one at a time.
	registrations chan registration
	candidates    chan candidateArrival
	handshakes    chan handshakeResult
	packets       chan packet
	closures      chan closure
}

// remotePeer is one connected client.
type remotePeer struct {
	clientID   uint64
	connection transport.Connection
	channels   []transport.Channel
}

func (r *remotePeer) close() {
	for _, channel := range r.channels {
		channel.Close()
	}
	r.connection.Close()
}

type registration struct {
	session *signaling.HostClient
	err     error
}

type candidateArrival struct {
	session   *signaling.HostClient
	candidate signaling.ConnectionCandidate
	err       error
}

type handshakeResult struct {
	clientID uint64
	remote   *remotePeer
	err      error
}

type packet struct {
	peerID  int
	remote  *remotePeer
	channel int
	data    []byte
}

type closure struct {
	peerID int
	remote *remotePeer
}

// NewHost starts a host worker. It registers with the signaling server
// in the background; HostIDUpdated reports each registration.
func NewHost(config HostConfig) *Host {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	host := &Host{
		config:        config,
		logger:        logger.With("game_id", config.GameID),
		events:        NewQueue[Event](),
		peers:         slottable.New[*remotePeer](),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		registrations: make(chan registration),
		candidates:    make(chan candidateArrival),
		handshakes:    make(chan handshakeResult),
		packets:       make(chan packet),
		closures:      make(chan closure),
	}
	go host.run()
	return host
}

// HostID returns the id of the latest registration, or the zero HostID
// before the first one completes.
func (h *Host) HostID() signaling.HostID {
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return h.hostID
}

// SendPacket sends data to a peer on a channel. A stale peer id, an
// out-of-range channel, or a send failure is silently ignored. Peer ids
// are reused once released, so a send to a departed peer's id may reach
// its successor.
func (h *Host) SendPacket(peerID uint64, channel int, data []byte) {
	h.peersMu.RLock()
	remote, ok := h.peers.Get(int(peerID))
	h.peersMu.RUnlock()
	if !ok || channel < 0 || channel >= len(remote.channels) {
		return
	}
	if err := remote.channels[channel].Send(data); err != nil {
		h.logger.Debug("dropping packet", "peer_id", peerID, "channel", channel, "error", err)
	}
}

// NextEvent waits for the next event. It returns ErrQueueClosed after
// the worker has exited and every event has been read.
func (h *Host) NextEvent(ctx context.Context) (Event, error) {
	return h.events.Next(ctx)
}

// TryNextEvent returns the next event if one is queued.
func (h *Host) TryNextEvent() (Event, bool) {
	return h.events.TryNext()
}

// Peers returns the number of connected peers.
func (h *Host) Peers() int {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	return h.peers.Len()
}

// Shutdown asks the worker to stop. The worker finishes the step it is
// on, then closes the signaling session and every peer connection.
func (h *Host) Shutdown() {
	h.shutdown.Store(true)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the worker has exited.
func (h *Host) Wait() {
	<-h.done
}

func (h *Host) currentSession() *signaling.HostClient {
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return h.session
}

func (h *Host) run() {
	defer close(h.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registering := false
	var retry <-chan time.Time

	for !h.shutdown.Load() {
		if h.currentSession() == nil && !registering && retry == nil {
			registering = true
			go h.register(ctx)
		}

		select {
		case <-h.wake:
		case <-retry:
			retry = nil
		case result := <-h.registrations:
			registering = false
			if result.err != nil {
				h.logger.Warn("host registration failed", "server", h.config.ServerURL, "error", result.err)
				retry = h.config.Clock.After(h.config.ReconnectDelay)
				continue
			}
			h.adopt(ctx, result.session)
		case arrival := <-h.candidates:
			if arrival.err != nil {
				h.dropSession(arrival.session, arrival.err)
				continue
			}
			go h.handshake(ctx, arrival.session, arrival.candidate)
		case result := <-h.handshakes:
			h.admit(ctx, result)
		case item := <-h.packets:
			if h.holds(item.peerID, item.remote) {
				h.events.Push(PacketReceived{PeerID: uint64(item.peerID), Channel: item.channel, Data: item.data})
			}
		case item := <-h.closures:
			h.release(item.peerID, item.remote)
		}
	}

	h.stop()
}

func (h *Host) register(ctx context.Context) {
	attempt, cancel := context.WithTimeout(ctx, h.config.HandshakeTimeout)
	defer cancel()
	session, err := signaling.ConnectHost(attempt, signaling.HostClientConfig{
		ServerURL:    h.config.ServerURL,
		GameID:       h.config.GameID,
		RequestProxy: h.config.RequestProxy,
		Channels:     h.config.Channels,
		Socket:       signaling.SocketOptions{Encoding: h.config.Encoding, TLSConfig: h.config.TLSConfig},
		Logger:       h.logger,
	})
	select {
	case h.registrations <- registration{session: session, err: err}:
	case <-ctx.Done():
		if session != nil {
			session.Close()
		}
	}
}

func (h *Host) adopt(ctx context.Context, session *signaling.HostClient) {
	hostID := session.HostID()
	h.sessionMu.Lock()
	h.session = session
	h.hostID = hostID
	h.sessionMu.Unlock()

	h.logger.Info("host registered", "host_id", hostID.String())
	h.events.Push(HostIDUpdated{HostID: hostID})
	go h.pumpCandidates(ctx, session)
}

// pumpCandidates forwards a session's connection requests until the
// session ends.
func (h *Host) pumpCandidates(ctx context.Context, session *signaling.HostClient) {
	for {
		candidate, err := session.NextCandidate(ctx)
		select {
		case h.candidates <- candidateArrival{session: session, candidate: candidate, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (h *Host) dropSession(session *signaling.HostClient, err error) {
	h.sessionMu.Lock()
	current := h.session == session
	if current {
		h.session = nil
	}
	h.sessionMu.Unlock()
	session.Close()
	if current {
		h.logger.Warn("signaling session lost, re-registering", "error", err)
	}
}

func (h *Host) handshake(ctx context.Context, session *signaling.HostClient, candidate signaling.ConnectionCandidate) {
	remote, err := h.negotiate(ctx, session, candidate)
	result := handshakeResult{clientID: candidate.ClientID, remote: remote, err: err}
	select {
	case h.handshakes <- result:
	case <-ctx.Done():
		if remote != nil {
			remote.close()
		}
	}
}

// negotiate answers a client's offer and waits for the channels to
// open. A failure before the answer is sent rejects the client.
func (h *Host) negotiate(parent context.Context, session *signaling.HostClient, candidate signaling.ConnectionCandidate) (*remotePeer, error) {
	ctx, cancel := context.WithTimeout(parent, h.config.HandshakeTimeout)
	defer cancel()

	var connection transport.Connection
	answered := false
	fail := func(step string, err error) (*remotePeer, error) {
		if connection != nil {
			connection.Close()
		}
		if !answered {
			if rejectErr := session.RejectCandidate(parent, candidate.ClientID); rejectErr != nil {
				h.logger.Debug("rejecting client failed", "client_id", candidate.ClientID, "error", rejectErr)
			}
		}
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	connection, err := h.config.Transport.Answer(ctx, candidate.Offer, h.config.Channels)
	if err != nil {
		return fail("answering offer", err)
	}
	if err := connection.AddRemoteCandidates(ctx, candidate.Candidates); err != nil {
		return fail("adding client candidates", err)
	}
	answer, err := connection.LocalDescription(ctx)
	if err != nil {
		return fail("building answer", err)
	}
	candidates, err := connection.GatherCandidates(ctx)
	if err != nil {
		return fail("gathering candidates", err)
	}
	if err := session.AcceptCandidate(ctx, candidate.ClientID, answer, candidates); err != nil {
		return fail("sending answer", err)
	}
	answered = true

	if err := connection.AwaitConnected(ctx); err != nil {
		return fail("awaiting connection", err)
	}
	channels, err := connection.OpenChannels(ctx)
	if err != nil {
		return fail("opening channels", err)
	}
	return &remotePeer{clientID: candidate.ClientID, connection: connection, channels: channels}, nil
}

func (h *Host) admit(ctx context.Context, result handshakeResult) {
	if result.err != nil {
		h.logger.Info("client handshake failed", "client_id", result.clientID, "error", result.err)
		return
	}
	remote := result.remote

	h.peersMu.Lock()
	peerID := h.peers.Acquire(remote)
	h.peersMu.Unlock()

	h.logger.Info("peer connected", "peer_id", peerID, "client_id", remote.clientID)
	h.events.Push(PeerConnected{PeerID: uint64(peerID)})

	for index, channel := range remote.channels {
		go h.receive(ctx, peerID, remote, index, channel)
	}
	go func() {
		select {
		case <-remote.connection.Done():
			h.report(ctx, closure{peerID: peerID, remote: remote})
		case <-ctx.Done():
		}
	}()
}

// receive forwards one channel's messages until it closes.
func (h *Host) receive(ctx context.Context, peerID int, remote *remotePeer, index int, channel transport.Channel) {
	for {
		data, err := channel.Receive(ctx)
		if err != nil {
			h.report(ctx, closure{peerID: peerID, remote: remote})
			return
		}
		select {
		case h.packets <- packet{peerID: peerID, remote: remote, channel: index, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Host) report(ctx context.Context, item closure) {
	select {
	case h.closures <- item:
	case <-ctx.Done():
	}
}

func (h *Host) holds(peerID int, remote *remotePeer) bool {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	current, ok := h.peers.Get(peerID)
	return ok && current == remote
}

// release frees a peer's slot and emits PeerDisconnected, unless the
// slot no longer holds that connection.
func (h *Host) release(peerID int, remote *remotePeer) {
	h.peersMu.Lock()
	current, ok := h.peers.Get(peerID)
	if !ok || current != remote {
		h.peersMu.Unlock()
		return
	}
	h.peers.Release(peerID)
	h.peersMu.Unlock()

	remote.close()
	h.logger.Info("peer disconnected", "peer_id", peerID)
	h.events.Push(PeerDisconnected{PeerID: uint64(peerID)})
}

// stop closes everything the worker owns and ends the event stream.
func (h *Host) stop() {
	h.sessionMu.Lock()
	session := h.session
	h.session = nil
	h.sessionMu.Unlock()
	if session != nil {
		session.Close()
	}

	var remaining []closure
	h.peersMu.RLock()
	h.peers.Range(func(peerID int, remote *remotePeer) bool {
		remaining = append(remaining, closure{peerID: peerID, remote: remote})
		return true
	})
	h.peersMu.RUnlock()
	for _, item := range remaining {
		h.release(item.peerID, item.remote)
	}

	h.logger.Info("host stopped")
	h.events.Close()
}
