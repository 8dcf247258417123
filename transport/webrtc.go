// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/signaling"
)

// Compile-time interface checks.
var (
	_ Transport  = (*WebRTCTransport)(nil)
	_ Connection = (*webrtcConnection)(nil)
)

// DefaultGatherTimeout bounds ICE candidate gathering when
// WebRTCConfig.GatherTimeout is zero.
const DefaultGatherTimeout = 15 * time.Second

// WebRTCConfig configures NewWebRTCTransport.
type WebRTCConfig struct {
	ICE ICEConfig

	// GatherTimeout bounds candidate gathering for each connection.
	GatherTimeout time.Duration

	Logger *slog.Logger
}

// WebRTCTransport creates pion PeerConnections whose data channels
// follow the host's channel layout. Channels are pre-negotiated with
// id equal to their index, so both sides open them without an in-band
// handshake. Candidate gathering is vanilla ICE: LocalDescription and
// GatherCandidates wait for gathering to complete, so one signaling
// round-trip carries everything.
type WebRTCTransport struct {
	api           *webrtc.API
	gatherTimeout time.Duration
	logger        *slog.Logger
	iceConfig     ICEConfig
}

// NewWebRTCTransport creates a WebRTC transport.
func NewWebRTCTransport(config WebRTCConfig) *WebRTCTransport {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherTimeout := config.GatherTimeout
	if gatherTimeout <= 0 {
		gatherTimeout = DefaultGatherTimeout
	}

	// Detached data channels give a plain read/write interface per
	// channel. Loopback candidates are needed on hosts where loopback
	// is the only interface, including test environments.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)

	return &WebRTCTransport{
		api:           webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		gatherTimeout: gatherTimeout,
		logger:        logger,
		iceConfig:     config.ICE,
	}
}

// Offer creates a connection with the given channels and starts
// gathering for its offer.
func (wt *WebRTCTransport) Offer(ctx context.Context, channels []signaling.ChannelConfiguration) (Connection, error) {
	connection, err := wt.newConnection(channels, "offer")
	if err != nil {
		return nil, err
	}
	offer, err := connection.pc.CreateOffer(nil)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	if err := connection.setLocal(offer); err != nil {
		connection.Close()
		return nil, err
	}
	return connection, nil
}

// Answer creates a connection for a remote offer and starts gathering
// for its answer.
func (wt *WebRTCTransport) Answer(ctx context.Context, offer signaling.SessionDescription, channels []signaling.ChannelConfiguration) (Connection, error) {
	connection, err := wt.newConnection(channels, "answer")
	if err != nil {
		return nil, err
	}
	if err := connection.pc.SetRemoteDescription(descriptionToPion(offer)); err != nil {
		connection.Close()
		return nil, fmt.Errorf("setting remote offer: %w", err)
	}
	answer, err := connection.pc.CreateAnswer(nil)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating SDP answer: %w", err)
	}
	if err := connection.setLocal(answer); err != nil {
		connection.Close()
		return nil, err
	}
	return connection, nil
}

func (wt *WebRTCTransport) newConnection(channels []signaling.ChannelConfiguration, role string) (*webrtcConnection, error) {
	config := webrtc.Configuration{
		ICEServers: wt.iceConfig.Servers,
	}

	pc, err := wt.api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	connection := &webrtcConnection{
		pc:            pc,
		logger:        wt.logger.With("role", role),
		gatherTimeout: wt.gatherTimeout,
		connected:     make(chan struct{}),
		done:          make(chan struct{}),
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		connection.candidatesMu.Lock()
		connection.candidates = append(connection.candidates, candidateFromPion(candidate.ToJSON()))
		connection.candidatesMu.Unlock()
	})
	pc.OnConnectionStateChange(connection.handleStateChange)

	for index, configuration := range channels {
		label := fmt.Sprintf("channel-%d", index)
		dataChannel, err := pc.CreateDataChannel(label, channelInit(index, configuration))
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("creating data channel %d: %w", index, err)
		}
		opened := make(chan struct{})
		dataChannel.OnOpen(func() { close(opened) })
		connection.channels = append(connection.channels, dataChannel)
		connection.opened = append(connection.opened, opened)
	}
	return connection, nil
}

// webrtcConnection is one pion PeerConnection and its negotiated data
// channels.
type webrtcConnection struct {
	pc            *webrtc.PeerConnection
	logger        *slog.Logger
	gatherTimeout time.Duration

	channels []*webrtc.DataChannel
	opened   []chan struct{}

	// gathered is closed when ICE gathering completes. Set before the
	// connection is returned to the caller.
	gathered <-chan struct{}

	candidatesMu sync.Mutex
	candidates   []signaling.ICECandidate

	connected     chan struct{}
	connectedOnce sync.Once
	done          chan struct{}
	doneOnce      sync.Once
}

// setLocal applies the local description and starts gathering. The
// gathering promise must exist before SetLocalDescription.
func (c *webrtcConnection) setLocal(description webrtc.SessionDescription) error {
	c.gathered = webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(description); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	return nil
}

func (c *webrtcConnection) handleStateChange(state webrtc.PeerConnectionState) {
	c.logger.Debug("peer connection state change", "state", state.String())
	switch state {
	case webrtc.PeerConnectionStateConnected:
		c.connectedOnce.Do(func() { close(c.connected) })
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		c.doneOnce.Do(func() { close(c.done) })
	}
}

func (c *webrtcConnection) awaitGathered(ctx context.Context) error {
	timer := time.NewTimer(c.gatherTimeout)
	defer timer.Stop()
	select {
	case <-c.gathered:
		return nil
	case <-timer.C:
		return fmt.Errorf("ICE gathering timed out after %s", c.gatherTimeout)
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LocalDescription returns the local description once gathering has
// completed, so its SDP carries every local candidate.
func (c *webrtcConnection) LocalDescription(ctx context.Context) (signaling.SessionDescription, error) {
	if err := c.awaitGathered(ctx); err != nil {
		return signaling.SessionDescription{}, err
	}
	local := c.pc.LocalDescription()
	if local == nil {
		return signaling.SessionDescription{}, fmt.Errorf("no local description")
	}
	return descriptionFromPion(*local), nil
}

func (c *webrtcConnection) GatherCandidates(ctx context.Context) ([]signaling.ICECandidate, error) {
	if err := c.awaitGathered(ctx); err != nil {
		return nil, err
	}
	c.candidatesMu.Lock()
	defer c.candidatesMu.Unlock()
	candidates := make([]signaling.ICECandidate, len(c.candidates))
	copy(candidates, c.candidates)
	return candidates, nil
}

func (c *webrtcConnection) SetRemoteDescription(ctx context.Context, description signaling.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(descriptionToPion(description)); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

func (c *webrtcConnection) AddRemoteCandidates(ctx context.Context, candidates []signaling.ICECandidate) error {
	for _, candidate := range candidates {
		if err := c.pc.AddICECandidate(candidateToPion(candidate)); err != nil {
			return fmt.Errorf("adding remote candidate %q: %w", candidate.Candidate, err)
		}
	}
	return nil
}

func (c *webrtcConnection) AwaitConnected(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *webrtcConnection) OpenChannels(ctx context.Context) ([]Channel, error) {
	channels := make([]Channel, len(c.channels))
	for index, dataChannel := range c.channels {
		select {
		case <-c.opened[index]:
		case <-c.done:
			return nil, ErrConnectionClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		rawChannel, err := dataChannel.Detach()
		if err != nil {
			return nil, fmt.Errorf("detaching data channel %d: %w", index, err)
		}
		channels[index] = newStreamChannel(dataChannel.Label(), rawChannel)
	}
	return channels, nil
}

func (c *webrtcConnection) Done() <-chan struct{} {
	return c.done
}

func (c *webrtcConnection) Close() error {
	err := c.pc.Close()
	c.doneOnce.Do(func() { close(c.done) })
	return err
}
