// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for rendezvous packages.
//
// [RequireReceive], [RequireClosed], [RequireNoReceive], and
// [RequireEventually] encapsulate
// the timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Runtime
// tests drive real goroutines, a real websocket server, and real peer
// transports, so every wait on a channel needs an upper bound.
//
// [EventSource] adapts a polling accessor (such as a runtime's
// TryNextEvent) into a channel usable with [RequireReceive].
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
