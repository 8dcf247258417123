// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler for rendezvous
// binaries. main() calls [Fatal] with the error returned by run(),
// where the structured logger may not have been initialized yet.
package process
