// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer runs the two ends of a rendezvous connection.
//
// A [Host] registers a lobby on a signaling server and accepts any
// number of clients. Each accepted client becomes a peer identified by
// a small integer that is reused after the peer disconnects. A [Client]
// connects to one host, named by its [signaling.HostID].
//
// Both runtimes own a single worker goroutine and report everything
// through an [Event] stream: connections, packets, and disconnections.
// Errors never reach the caller directly; a client that cannot connect
// emits one [ConnectionFailed] and stops. The host keeps its signaling
// session alive on its own, re-registering with a new HostID when the
// server connection drops.
//
// [SimpleHost] and [SimpleClient] wrap the runtimes for callers that
// poll once per frame and have no concurrency of their own.
package peer
