// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"github.com/bureau-foundation/rendezvous/signaling"
)

// SimpleHost is a Host driven by polling. Construct it with
// NewSimpleHost and call NextEvent once per tick.
type SimpleHost struct {
	host *Host
}

// NewSimpleHost starts a host.
func NewSimpleHost(config HostConfig) *SimpleHost {
	return &SimpleHost{host: NewHost(config)}
}

// NextEvent returns the next queued event without waiting.
func (s *SimpleHost) NextEvent() (Event, bool) {
	return s.host.TryNextEvent()
}

func (s *SimpleHost) SendPacket(peerID uint64, channel int, data []byte) {
	s.host.SendPacket(peerID, channel, data)
}

func (s *SimpleHost) HostID() signaling.HostID {
	return s.host.HostID()
}

// Close shuts the host down and waits for its worker.
func (s *SimpleHost) Close() {
	s.host.Shutdown()
	s.host.Wait()
}

// SimpleClient is a Client driven by polling.
type SimpleClient struct {
	client *Client
}

// NewSimpleClient starts a client.
func NewSimpleClient(config ClientConfig) *SimpleClient {
	return &SimpleClient{client: NewClient(config)}
}

// NextEvent returns the next queued event without waiting.
func (s *SimpleClient) NextEvent() (Event, bool) {
	return s.client.TryNextEvent()
}

func (s *SimpleClient) SendPacket(channel int, data []byte) {
	s.client.SendPacket(channel, data)
}

func (s *SimpleClient) State() State {
	return s.client.State()
}

// Close disconnects the client and waits for its worker.
func (s *SimpleClient) Close() {
	s.client.Disconnect()
	s.client.Wait()
}
