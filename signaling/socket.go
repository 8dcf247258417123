// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/lib/codec"
	"github.com/bureau-foundation/rendezvous/lib/netutil"
)

const (
	// DefaultPingInterval is used when SocketOptions.PingInterval is
	// zero.
	DefaultPingInterval = 30 * time.Second

	// DefaultWriteTimeout is used when SocketOptions.WriteTimeout is
	// zero.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultReadLimit is the largest frame accepted when
	// SocketOptions.ReadLimit is zero. Offers with many candidates are
	// the largest messages and stay well below it.
	DefaultReadLimit = 1 << 20

	// inboundBuffer is the number of decoded frames the reader may hold
	// ahead of Recv.
	inboundBuffer = 16
)

// SocketOptions configures a Socket.
type SocketOptions struct {
	// Encoding for outgoing frames. Server sockets ignore it and adopt
	// the encoding of the first frame they receive.
	Encoding Encoding

	// PingInterval is how often a ping is sent. A socket that receives
	// nothing, not even a pong, for two intervals is closed. Negative
	// disables keepalive.
	PingInterval time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// ReadLimit is the maximum frame size in bytes.
	ReadLimit int64

	// TLSConfig is used when dialing wss:// URLs, for example to trust
	// a private CA. Nil uses the system roots. Server sockets ignore it.
	TLSConfig *tls.Config

	Logger *slog.Logger
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.PingInterval == 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Socket is one signaling websocket connection sending Out messages and
// receiving In messages. Send is safe for concurrent use; frames from
// concurrent senders are never interleaved. A single background reader
// owns all reads, so Recv may also be called from any goroutine.
type Socket[Out, In Message] struct {
	conn         *websocket.Conn
	decode       func(Encoding, []byte) (In, error)
	logger       *slog.Logger
	writeTimeout time.Duration

	// writeMu serializes frame writes.
	writeMu sync.Mutex

	// stateMu guards encoding and adopt. The reader sets the encoding
	// once on a server socket, when the first frame arrives.
	stateMu  sync.Mutex
	encoding Encoding
	adopt    bool

	inbound   chan inbound[In]
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// cause is the read error that ended the connection. Written by the
	// reader before done is closed.
	cause error
}

type inbound[In Message] struct {
	message In
	err     error
}

// ServerSocket is the server's end of a signaling connection.
type ServerSocket = Socket[PeerBound, ServerBound]

// ClientSocket is a peer's end of a signaling connection.
type ClientSocket = Socket[ServerBound, PeerBound]

// NewServerSocket wraps an upgraded connection. The socket answers in
// whichever encoding the peer's first frame uses.
func NewServerSocket(conn *websocket.Conn, options SocketOptions) *ServerSocket {
	return newSocket[PeerBound](conn, Encoding.DecodeServerBound, options, true)
}

// NewClientSocket wraps a dialed connection that sends in
// options.Encoding.
func NewClientSocket(conn *websocket.Conn, options SocketOptions) *ClientSocket {
	return newSocket[ServerBound](conn, Encoding.DecodePeerBound, options, false)
}

// Dial opens a signaling connection to serverURL.
func Dial(ctx context.Context, serverURL string, options SocketOptions) (*ClientSocket, error) {
	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = options.TLSConfig
	conn, response, err := dialer.DialContext(ctx, serverURL, http.Header{})
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("dialing signaling server %s: %w (HTTP %d)", serverURL, err, response.StatusCode)
		}
		return nil, fmt.Errorf("dialing signaling server %s: %w", serverURL, err)
	}
	return NewClientSocket(conn, options), nil
}

func newSocket[Out, In Message](conn *websocket.Conn, decode func(Encoding, []byte) (In, error), options SocketOptions, adopt bool) *Socket[Out, In] {
	options = options.withDefaults()
	socket := &Socket[Out, In]{
		conn:         conn,
		decode:       decode,
		logger:       options.Logger,
		writeTimeout: options.WriteTimeout,
		encoding:     options.Encoding,
		adopt:        adopt,
		inbound:      make(chan inbound[In], inboundBuffer),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	conn.SetReadLimit(options.ReadLimit)
	if options.PingInterval > 0 {
		idle := 2 * options.PingInterval
		conn.SetReadDeadline(time.Now().Add(idle))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(idle))
		})
		go socket.keepalive(options.PingInterval)
	}

	go socket.readLoop(options.PingInterval)
	return socket
}

func (s *Socket[Out, In]) readLoop(pingInterval time.Duration) {
	defer close(s.done)
	for {
		frameType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.cause = err
			return
		}
		if pingInterval > 0 {
			s.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		}

		item := s.decodeFrame(frameType, data)
		select {
		case s.inbound <- item:
		case <-s.closing:
			s.cause = ErrSocketClosed
			return
		}
	}
}

func (s *Socket[Out, In]) decodeFrame(frameType int, data []byte) inbound[In] {
	frameEncoding, ok := encodingOfFrame(frameType)
	if !ok {
		return inbound[In]{err: fmt.Errorf("%w: websocket message type %d", ErrEncodingMismatch, frameType)}
	}

	s.stateMu.Lock()
	if s.adopt {
		s.encoding = frameEncoding
		s.adopt = false
	}
	encoding := s.encoding
	s.stateMu.Unlock()

	if frameEncoding != encoding {
		return inbound[In]{err: fmt.Errorf("%w: %s frame on a %s connection", ErrEncodingMismatch, frameEncoding, encoding)}
	}

	message, err := s.decode(encoding, data)
	if err != nil {
		s.logUndecodable(encoding, data, err)
		return inbound[In]{err: err}
	}
	return inbound[In]{message: message}
}

func (s *Socket[Out, In]) logUndecodable(encoding Encoding, data []byte, err error) {
	if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	var rendered string
	switch encoding {
	case EncodingCBOR:
		diagnostic, diagnoseErr := codec.Diagnose(data)
		if diagnoseErr != nil {
			rendered = fmt.Sprintf("%x", data)
		} else {
			rendered = diagnostic
		}
	default:
		rendered = string(data)
	}
	const maxRendered = 512
	if len(rendered) > maxRendered {
		rendered = rendered[:maxRendered] + "..."
	}
	s.logger.Debug("undecodable signaling frame",
		"encoding", encoding.String(),
		"frame", rendered,
		"error", err,
	)
}

func (s *Socket[Out, In]) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Recv returns the next message from the peer. A frame that fails to
// decode returns its decode error; the socket stays open and the caller
// decides what a malformed frame means. After the connection ends Recv
// returns an error wrapping [ErrSocketClosed] and the read error.
func (s *Socket[Out, In]) Recv(ctx context.Context) (In, error) {
	var zero In
	select {
	case item := <-s.inbound:
		return item.message, item.err
	case <-s.done:
		select {
		case item := <-s.inbound:
			return item.message, item.err
		default:
		}
		return zero, s.closedError()
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Send encodes message and writes it as one frame.
func (s *Socket[Out, In]) Send(ctx context.Context, message Out) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return s.closedError()
	default:
	}

	encoding := s.Encoding()
	data, err := encoding.Marshal(message)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(encoding.frameType(), data); err != nil {
		return fmt.Errorf("writing %s frame: %w", message.Variant(), err)
	}
	return nil
}

// Encoding returns the encoding used for outgoing frames.
func (s *Socket[Out, In]) Encoding() Encoding {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.encoding
}

// IsOpen reports whether the reader has not yet observed the end of the
// connection.
func (s *Socket[Out, In]) IsOpen() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Done is closed when the connection ends.
func (s *Socket[Out, In]) Done() <-chan struct{} {
	return s.done
}

// Close sends a normal close frame, closes the connection, and waits
// for the reader to exit. It is safe to call more than once.
func (s *Socket[Out, In]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		if closeErr := s.conn.Close(); closeErr != nil && !netutil.IsExpectedCloseError(closeErr) {
			err = closeErr
		}
	})
	<-s.done
	return err
}

func (s *Socket[Out, In]) closedError() error {
	if s.cause == nil || s.cause == ErrSocketClosed {
		return ErrSocketClosed
	}
	return fmt.Errorf("%w: %w", ErrSocketClosed, s.cause)
}
