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

	"github.com/bureau-foundation/rendezvous/signaling"
	"github.com/bureau-foundation/rendezvous/transport"
)

// DefaultConnectTimeout bounds connecting when
// ClientConfig.ConnectTimeout is zero.
const DefaultConnectTimeout = 30 * time.Second

// State is a client's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	// HostID names the host to connect to. Its server URL is the
	// signaling server dialed.
	HostID signaling.HostID

	GameID uint32

	Transport transport.Transport

	// Encoding is the signaling wire encoding.
	Encoding signaling.Encoding

	// TLSConfig is used to dial a wss:// signaling server. Nil uses the
	// system roots.
	TLSConfig *tls.Config

	// ConnectTimeout bounds everything from dialing the signaling
	// server to the channels opening.
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// Client connects to one host. Its worker starts in NewClient; it ends
// with exactly one terminal event, ConnectionFailed or Disconnected,
// and never reconnects.
type Client struct {
	config ClientConfig
	logger *slog.Logger
	events *Queue[Event]
	state  atomic.Int32

	// channelsMu guards channels, which are set while connected.
	channelsMu sync.RWMutex
	channels   []transport.Channel

	stopping atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewClient starts a client worker.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		config: config,
		logger: logger.With("host_id", config.HostID.String(), "game_id", config.GameID),
		events: NewQueue[Event](),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	client.state.Store(int32(StateConnecting))
	go client.run()
	return client
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// SendPacket sends data to the host on a channel. It is silently
// ignored unless the client is connected and the channel exists.
func (c *Client) SendPacket(channel int, data []byte) {
	c.channelsMu.RLock()
	defer c.channelsMu.RUnlock()
	if channel < 0 || channel >= len(c.channels) {
		return
	}
	if err := c.channels[channel].Send(data); err != nil {
		c.logger.Debug("dropping packet", "channel", channel, "error", err)
	}
}

// NextEvent waits for the next event. It returns ErrQueueClosed after
// the terminal event has been read.
func (c *Client) NextEvent(ctx context.Context) (Event, error) {
	return c.events.Next(ctx)
}

// TryNextEvent returns the next event if one is queued.
func (c *Client) TryNextEvent() (Event, bool) {
	return c.events.TryNext()
}

// Disconnect stops the client. A connection still being negotiated is
// abandoned. The worker emits Disconnected and exits.
func (c *Client) Disconnect() {
	c.stopping.Store(true)
	c.stopOnce.Do(func() { close(c.stop) })
}

// Wait blocks until the worker has exited.
func (c *Client) Wait() {
	<-c.done
}

func (c *Client) finish(state State, event Event) {
	c.state.Store(int32(state))
	c.events.Push(event)
	c.events.Close()
}

func (c *Client) run() {
	defer close(c.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	connection, channels, err := c.connect(ctx)
	if err != nil {
		if c.stopping.Load() {
			c.finish(StateDisconnected, Disconnected{})
			return
		}
		c.logger.Warn("connecting to host failed", "error", err)
		c.finish(StateFailed, ConnectionFailed{Err: err})
		return
	}

	c.channelsMu.Lock()
	c.channels = channels
	c.channelsMu.Unlock()
	c.state.Store(int32(StateConnected))
	c.logger.Info("connected to host", "channels", len(channels))
	c.events.Push(Connected{})

	c.serve(ctx, connection, channels)

	c.channelsMu.Lock()
	c.channels = nil
	c.channelsMu.Unlock()
	for _, channel := range channels {
		channel.Close()
	}
	connection.Close()

	c.logger.Info("disconnected from host")
	c.finish(StateDisconnected, Disconnected{})
}

// serve relays packets until a channel or the connection closes, or
// the client is stopped.
func (c *Client) serve(ctx context.Context, connection transport.Connection, channels []transport.Channel) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	packets := make(chan PacketReceived)
	closed := make(chan struct{}, len(channels))
	for index, channel := range channels {
		go func() {
			for {
				data, err := channel.Receive(ctx)
				if err != nil {
					closed <- struct{}{}
					return
				}
				select {
				case packets <- PacketReceived{Channel: index, Data: data}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for !c.stopping.Load() {
		select {
		case item := <-packets:
			c.events.Push(item)
		case <-closed:
			return
		case <-connection.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// connect runs signaling and the transport handshake. The signaling
// session is only needed until the channels are open.
func (c *Client) connect(parent context.Context) (transport.Connection, []transport.Channel, error) {
	ctx, cancel := context.WithTimeout(parent, c.config.ConnectTimeout)
	defer cancel()

	session, err := signaling.ConnectPeer(ctx, signaling.PeerClientConfig{
		ServerURL: c.config.HostID.ServerURL,
		GameID:    c.config.GameID,
		Socket:    signaling.SocketOptions{Encoding: c.config.Encoding, TLSConfig: c.config.TLSConfig},
		Logger:    c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to signaling server: %w", err)
	}
	defer session.Close()

	layout, err := session.ChannelConfigurations(ctx, c.config.HostID)
	if err != nil {
		return nil, nil, fmt.Errorf("requesting channel configurations: %w", err)
	}

	connection, err := c.config.Transport.Offer(ctx, layout)
	if err != nil {
		return nil, nil, fmt.Errorf("creating offer: %w", err)
	}
	fail := func(step string, err error) (transport.Connection, []transport.Channel, error) {
		connection.Close()
		return nil, nil, fmt.Errorf("%s: %w", step, err)
	}

	offer, err := connection.LocalDescription(ctx)
	if err != nil {
		return fail("building offer", err)
	}
	candidates, err := connection.GatherCandidates(ctx)
	if err != nil {
		return fail("gathering candidates", err)
	}
	answer, err := session.OfferConnection(ctx, c.config.HostID, offer, candidates)
	if err != nil {
		return fail("offering connection", err)
	}
	if err := connection.SetRemoteDescription(ctx, answer.Answer); err != nil {
		return fail("applying answer", err)
	}
	if err := connection.AddRemoteCandidates(ctx, answer.Candidates); err != nil {
		return fail("adding host candidates", err)
	}
	if err := connection.AwaitConnected(ctx); err != nil {
		return fail("awaiting connection", err)
	}
	channels, err := connection.OpenChannels(ctx)
	if err != nil {
		return fail("opening channels", err)
	}
	return connection, channels, nil
}
