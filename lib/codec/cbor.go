// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. The same envelope always
// produces identical frame bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown map keys are ignored so that a
// peer running a newer protocol revision can add fields without
// breaking older servers.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// HostID implements encoding.TextMarshaler and must travel in its
	// "SS:LLLLLLL@server" string form in both encodings. Without this
	// it would encode as a CBOR map of its exported fields.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Envelopes are decoded in two passes: the tag first, then the
		// body into its concrete type. Any-typed targets in the first
		// pass need string-keyed maps to stay compatible with the JSON
		// encoding of the same envelope.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value. Envelope decoding uses it to
// hold a body until its tag has been read.
type RawMessage = cbor.RawMessage

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
// The signaling socket logs it when a binary frame fails to decode.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
