// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package crockford encodes unsigned integers in Douglas Crockford's
// base-32 alphabet.
//
// The alphabet is 0-9 followed by the letters A-Z without I, L, O and U,
// which keeps encoded values readable aloud and hard to mistype. Decoding
// is case-insensitive and folds the excluded look-alikes onto digits: O
// decodes as 0, I and L decode as 1. U has no meaning and is rejected.
//
// Values are big-endian digit strings, not byte-stream encodings: the
// lobby id 0x1F encodes as "Z" (or "000000Z" with 7 digits of padding).
// This is why encoding/base32 does not fit: it encodes byte sequences
// in 5-byte groups and has no notion of numeric padding or look-alike
// folding.
package crockford
