// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies errors that occur during normal connection
// teardown, so that signaling sockets and servers can tell a peer going
// away from a genuine failure. A websocket close handshake with a
// normal or going-away code is expected; so are EOF, a closed
// connection, a broken pipe, and a connection reset.
package netutil
