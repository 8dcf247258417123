// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// rendezvous signaling server.
//
// Configuration is loaded from a single optional file specified by
// either the RENDEZVOUS_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). Without a file the server runs on
// [Default] values. There is no automatic file search. Command-line
// flags override file values; no other environment variables do.
//
// Variable expansion is performed on public_url and listen after
// loading: ${VAR} and ${VAR:-default} patterns are expanded from the
// process environment, so one file can serve every region:
//
//	public_url: wss://${REGION:-eu}.signaling.example.com
//
// TLS material is deliberately not part of this file. The certificate
// bundle path and its passphrase come from RENDEZVOUS_TLS_CERT and
// RENDEZVOUS_TLS_PASSPHRASE so that secrets stay out of checked-in
// configuration.
//
// This package depends on no other rendezvous packages.
package config
