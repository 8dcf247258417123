// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/rendezvous/lib/netutil"
	"github.com/bureau-foundation/rendezvous/lib/slottable"
)

const (
	// DefaultMaxLobbyAttempts is used when ServerConfig.MaxLobbyAttempts
	// is zero.
	DefaultMaxLobbyAttempts = 64

	// DefaultMailboxSize is used when ServerConfig.MailboxSize is zero.
	DefaultMailboxSize = 32
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	// PublicURL is the URL clients dial to reach this server. It is the
	// server half of every HostID issued.
	PublicURL string

	// ShardID is stamped into every HostID issued. Requests naming a
	// different shard are answered with UnknownHostId.
	ShardID uint8

	// MaxLobbyAttempts bounds the random draws made when allocating a
	// lobby id.
	MaxLobbyAttempts int

	// MailboxSize is the capacity of each session's inbound mailbox.
	MailboxSize int

	// Socket configures every accepted connection. Encoding is ignored:
	// server sockets adopt the peer's encoding.
	Socket SocketOptions

	// Registry receives the server metrics. Nil creates a private
	// registry.
	Registry *prometheus.Registry

	// MetricsPath, when set, serves Registry on that path from Handler.
	MetricsPath string

	// Random is the lobby id source. Nil uses crypto/rand.
	Random io.Reader

	Logger *slog.Logger
}

// Server pairs host and client peers. Each accepted websocket is one
// session; its first message decides whether it is a host or a client
// for its whole lifetime.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	random   io.Reader
	upgrader websocket.Upgrader

	lobbiesMu sync.RWMutex
	lobbies   map[lobbyKey]*lobby

	clientsMu sync.RWMutex
	clients   *slottable.Table[*mailbox]

	sessions sync.WaitGroup
}

// NewServer validates config and creates a server with empty tables.
func NewServer(config ServerConfig) (*Server, error) {
	if config.PublicURL == "" {
		return nil, errors.New("signaling server: PublicURL is required")
	}
	if parsed, err := url.Parse(config.PublicURL); err != nil {
		return nil, fmt.Errorf("signaling server: PublicURL: %w", err)
	} else if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("signaling server: PublicURL %q must be a ws:// or wss:// URL", config.PublicURL)
	}
	if config.MaxLobbyAttempts <= 0 {
		config.MaxLobbyAttempts = DefaultMaxLobbyAttempts
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultMailboxSize
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	random := config.Random
	if random == nil {
		random = randomReader
	}

	return &Server{
		config:   config,
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
		random:   random,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are game processes, not browser pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		lobbies: make(map[lobbyKey]*lobby),
		clients: slottable.New[*mailbox](),
	}, nil
}

// Handler returns the server's HTTP surface: websocket sessions on
// every path, plus prometheus metrics on MetricsPath when configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	if s.config.MetricsPath != "" {
		mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Serve accepts connections on listener until ctx is cancelled, then
// waits for every session to end. Wrap listener with tls.NewListener to
// serve wss://.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			httpServer.Close()
		case <-stopped:
		}
	}()

	s.logger.Info("signaling server listening",
		"address", listener.Addr().String(),
		"public_url", s.config.PublicURL,
		"shard_id", s.config.ShardID,
	)
	err := httpServer.Serve(listener)
	s.sessions.Wait()
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeHTTP upgrades the request to a websocket and runs its session to
// completion.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.sessions.Add(1)
	defer s.sessions.Done()

	logger := s.logger.With("connection", uuid.NewString(), "remote", r.RemoteAddr)
	options := s.config.Socket
	options.Logger = logger
	socket := NewServerSocket(conn, options)
	defer socket.Close()

	s.dispatch(r.Context(), socket, logger)
}

// dispatch routes a connection by its first message.
func (s *Server) dispatch(ctx context.Context, socket *ServerSocket, logger *slog.Logger) {
	first, err := socket.Recv(ctx)
	if err != nil {
		if errors.Is(err, ErrSocketClosed) || ctx.Err() != nil {
			logConnectionEnd(logger, err)
			return
		}
		logger.Debug("undecodable first message", "error", err)
		s.sendError(ctx, socket, logger, InvalidExpectedMessage)
		return
	}

	switch message := first.(type) {
	case Register:
		s.metrics.sessions.WithLabelValues(string(RoleHostPeer)).Inc()
		s.runHostSession(ctx, socket, message, logger.With("role", "host"))
	case RequestConnection, RequestChannelConfigurations:
		s.metrics.sessions.WithLabelValues(string(RoleClientPeer)).Inc()
		s.runClientSession(ctx, socket, first, logger.With("role", "client"))
	case ErrorCode:
		logger.Debug("peer opened with an error envelope", "code", string(message))
	default:
		logger.Debug("host message before Register", "variant", first.Variant())
		s.sendError(ctx, socket, logger, InvalidExpectedMessage)
	}
}

func (s *Server) sendError(ctx context.Context, socket *ServerSocket, logger *slog.Logger, code ErrorCode) {
	s.metrics.errors.WithLabelValues(string(code)).Inc()
	if err := socket.Send(ctx, code); err != nil {
		logger.Debug("sending error envelope failed", "code", string(code), "error", err)
	}
}

// relay forwards message to a session mailbox and counts it.
func (s *Server) relay(target *mailbox, message PeerBound) error {
	if err := target.deliver(message); err != nil {
		return err
	}
	s.metrics.relayed.WithLabelValues(message.Variant()).Inc()
	return nil
}

// receive pumps socket messages into a channel. The pump stops after
// forwarding the first error, or when ctx ends.
func receive(ctx context.Context, socket *ServerSocket) <-chan inbound[ServerBound] {
	out := make(chan inbound[ServerBound])
	go func() {
		defer close(out)
		for {
			message, err := socket.Recv(ctx)
			select {
			case out <- inbound[ServerBound]{message: message, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// endOnReceiveError logs why the session's socket stopped producing
// messages. A malformed frame is a protocol violation and is answered
// with InvalidExpectedMessage before the session ends.
func (s *Server) endOnReceiveError(ctx context.Context, socket *ServerSocket, logger *slog.Logger, err error) {
	if errors.Is(err, ErrSocketClosed) || ctx.Err() != nil {
		logConnectionEnd(logger, err)
		return
	}
	logger.Warn("malformed signaling frame", "error", err)
	s.sendError(ctx, socket, logger, InvalidExpectedMessage)
}

func logConnectionEnd(logger *slog.Logger, err error) {
	if err == nil || err == ErrSocketClosed || netutil.IsExpectedCloseError(err) || errors.Is(err, context.Canceled) {
		logger.Debug("signaling connection closed")
		return
	}
	logger.Info("signaling connection ended", "error", err)
}
