// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every binary
// signaling frame.
//
// The signaling protocol carries each envelope in one of two encodings,
// fixed per connection: JSON in websocket text frames and CBOR in
// websocket binary frames. This package owns the CBOR half so the
// socket, the server and tests all encode identically. The encoder uses
// Core Deterministic Encoding (RFC 8949 §4.2).
//
//	data, err := codec.Marshal(envelope)
//	err = codec.Unmarshal(data, &envelope)
//
// # Struct Tag Rules
//
// Signaling message types use `json` tags only. fxamacker/cbor v2 reads
// `json` tags as a fallback when `cbor` tags are absent, so one tag
// controls field naming and omitempty for both encodings, and the two
// encodings of an envelope always carry the same keys. Never add a
// `cbor` tag beside a `json` tag on the same field.
package codec
