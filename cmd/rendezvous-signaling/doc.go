// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Rendezvous-signaling runs the signaling server that pairs host and
// client peers.
//
// Configuration comes from a YAML file (--config, or the file named by
// RENDEZVOUS_CONFIG) with flags overriding individual values. When
// RENDEZVOUS_TLS_CERT names a PKCS#12 bundle, decrypted with
// RENDEZVOUS_TLS_PASSPHRASE, the listener serves TLS and peers connect
// with wss://. Prometheus metrics are served on the configured metrics
// path of the same listener.
//
// Usage:
//
//	rendezvous-signaling [--config path] [--listen addr] [--public-url url]
//	                     [--shard-id n] [--log-level level] [--version]
package main
