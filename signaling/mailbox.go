// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "sync"

// mailbox is the inbound queue of one server session. Other sessions
// deliver to it; the owning session relays its contents to its socket.
// The messages channel is never closed, so a late delivery can never
// panic; done marks the end of the owning session.
type mailbox struct {
	messages  chan PeerBound
	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox(size int) *mailbox {
	return &mailbox{
		messages: make(chan PeerBound, size),
		done:     make(chan struct{}),
	}
}

// deliver queues message without blocking.
func (m *mailbox) deliver(message PeerBound) error {
	select {
	case <-m.done:
		return ErrMailboxClosed
	default:
	}
	select {
	case m.messages <- message:
		return nil
	default:
		return ErrMailboxFull
	}
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.done) })
}
