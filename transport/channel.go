// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize is the largest data channel message read. Larger
// messages fail the read and close the channel.
const maxMessageSize = 64 * 1024

// streamChannel adapts a detached pion data channel to Channel. Each
// Read of a detached channel returns exactly one message, so a single
// reader goroutine turns the stream back into messages.
type streamChannel struct {
	label string
	rwc   io.ReadWriteCloser

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Channel = (*streamChannel)(nil)

func newStreamChannel(label string, rwc io.ReadWriteCloser) *streamChannel {
	channel := &streamChannel{
		label:   label,
		rwc:     rwc,
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
	go channel.readLoop()
	return channel
}

func (c *streamChannel) readLoop() {
	defer c.markClosed()
	buffer := make([]byte, maxMessageSize)
	for {
		n, err := c.rwc.Read(buffer)
		if err != nil {
			return
		}
		message := make([]byte, n)
		copy(message, buffer[:n])
		select {
		case c.inbound <- message:
		case <-c.closed:
			return
		}
	}
}

func (c *streamChannel) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *streamChannel) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	if _, err := c.rwc.Write(data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return ErrChannelClosed
		}
		return fmt.Errorf("sending on data channel %s: %w", c.label, err)
	}
	return nil
}

func (c *streamChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case message := <-c.inbound:
		return message, nil
	default:
	}
	select {
	case message := <-c.inbound:
		return message, nil
	case <-c.closed:
		select {
		case message := <-c.inbound:
			return message, nil
		default:
		}
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *streamChannel) Close() error {
	c.markClosed()
	return c.rwc.Close()
}
