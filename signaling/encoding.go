// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/lib/codec"
)

// Encoding is the serialization of envelopes on one connection.
type Encoding int

const (
	// EncodingJSON sends UTF-8 JSON in websocket text frames.
	EncodingJSON Encoding = iota
	// EncodingCBOR sends Core Deterministic CBOR in websocket binary
	// frames.
	EncodingCBOR
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding accepts "json" or "cbor".
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "json":
		return EncodingJSON, nil
	case "cbor":
		return EncodingCBOR, nil
	default:
		return 0, fmt.Errorf("unknown signaling encoding %q (want json or cbor)", s)
	}
}

// frameType is the websocket message type that carries this encoding.
func (e Encoding) frameType() int {
	if e == EncodingCBOR {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// encodingOfFrame maps a websocket message type back to its encoding.
func encodingOfFrame(frameType int) (Encoding, bool) {
	switch frameType {
	case websocket.TextMessage:
		return EncodingJSON, true
	case websocket.BinaryMessage:
		return EncodingCBOR, true
	default:
		return 0, false
	}
}

// Marshal encodes message as one envelope.
func (e Encoding) Marshal(message Message) ([]byte, error) {
	switch e {
	case EncodingJSON:
		return jsonFormat.marshal(message)
	case EncodingCBOR:
		return cborFormat.marshal(message)
	default:
		return nil, fmt.Errorf("marshal %s: unsupported encoding %s", message.Variant(), e)
	}
}

// DecodeServerBound decodes one envelope sent by a peer.
func (e Encoding) DecodeServerBound(data []byte) (ServerBound, error) {
	message, err := e.decode(data, serverBoundVariants)
	if err != nil {
		return nil, err
	}
	return message.(ServerBound), nil
}

// DecodePeerBound decodes one envelope sent by the server.
func (e Encoding) DecodePeerBound(data []byte) (PeerBound, error) {
	message, err := e.decode(data, peerBoundVariants)
	if err != nil {
		return nil, err
	}
	return message.(PeerBound), nil
}

func (e Encoding) decode(data []byte, variants variantTable) (Message, error) {
	switch e {
	case EncodingJSON:
		return jsonFormat.unmarshal(data, variants)
	case EncodingCBOR:
		return cborFormat.unmarshal(data, variants)
	default:
		return nil, fmt.Errorf("decode: unsupported encoding %s", e)
	}
}

// format is one serialization. R is that serialization's raw-value type
// so envelopes can be taken apart one layer at a time.
type format[R ~[]byte] struct {
	name     string
	encode   func(any) ([]byte, error)
	decodeTo func([]byte, any) error
}

var (
	jsonFormat = format[json.RawMessage]{name: "json", encode: json.Marshal, decodeTo: json.Unmarshal}
	cborFormat = format[codec.RawMessage]{name: "cbor", encode: codec.Marshal, decodeTo: codec.Unmarshal}
)

type envelope[R ~[]byte] struct {
	Type  Role `json:"type"`
	Value R    `json:"value"`
}

type variantTag struct {
	Type string `json:"type"`
}

// marshal builds {"type": role, "value": body}. The body of an error is
// the code string; any other body is the message's own fields plus an
// inner "type" tag naming the variant.
func (f format[R]) marshal(message Message) ([]byte, error) {
	var value []byte
	var err error
	if code, ok := message.(ErrorCode); ok {
		value, err = f.encode(string(code))
	} else {
		value, err = f.taggedBody(message)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s body: %w", f.name, message.Variant(), err)
	}

	data, err := f.encode(envelope[R]{Type: message.Role(), Value: R(value)})
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s envelope: %w", f.name, message.Variant(), err)
	}
	return data, nil
}

func (f format[R]) taggedBody(message Message) ([]byte, error) {
	fields, err := f.encode(message)
	if err != nil {
		return nil, err
	}
	var body map[string]R
	if err := f.decodeTo(fields, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = make(map[string]R, 1)
	}
	tag, err := f.encode(message.Variant())
	if err != nil {
		return nil, err
	}
	body["type"] = R(tag)
	return f.encode(body)
}

func (f format[R]) unmarshal(data []byte, variants variantTable) (Message, error) {
	var outer envelope[R]
	if err := f.decodeTo(data, &outer); err != nil {
		return nil, fmt.Errorf("decoding %s envelope: %w", f.name, err)
	}
	if len(outer.Value) == 0 {
		return nil, fmt.Errorf("decoding %s envelope: missing value", f.name)
	}

	if outer.Type == RoleError {
		var code string
		if err := f.decodeTo(outer.Value, &code); err != nil {
			return nil, fmt.Errorf("decoding %s error code: %w", f.name, err)
		}
		if !ErrorCode(code).Known() {
			return nil, fmt.Errorf("%w: error code %q", ErrUnknownTag, code)
		}
		return ErrorCode(code), nil
	}

	roleVariants, ok := variants[outer.Type]
	if !ok {
		return nil, fmt.Errorf("%w: role %q", ErrUnknownTag, outer.Type)
	}

	var tag variantTag
	if err := f.decodeTo(outer.Value, &tag); err != nil {
		return nil, fmt.Errorf("decoding %s %s variant tag: %w", f.name, outer.Type, err)
	}
	decode, ok := roleVariants[tag.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s variant %q", ErrUnknownTag, outer.Type, tag.Type)
	}

	message, err := decode(f.decodeTo, outer.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding %s %s.%s: %w", f.name, outer.Type, tag.Type, err)
	}
	return message, nil
}

type variantDecoder func(decodeTo func([]byte, any) error, data []byte) (Message, error)

type variantTable map[Role]map[string]variantDecoder

func decodeAs[M Message](decodeTo func([]byte, any) error, data []byte) (Message, error) {
	var message M
	if err := decodeTo(data, &message); err != nil {
		return nil, err
	}
	return message, nil
}

var serverBoundVariants = variantTable{
	RoleHostPeer: {
		"Register":         decodeAs[Register],
		"AcceptConnection": decodeAs[AcceptConnection],
		"RejectConnection": decodeAs[RejectConnection],
	},
	RoleClientPeer: {
		"RequestConnection":            decodeAs[RequestConnection],
		"RequestChannelConfigurations": decodeAs[RequestChannelConfigurations],
	},
}

var peerBoundVariants = variantTable{
	RoleHostPeer: {
		"Registered":          decodeAs[Registered],
		"ConnectionRequested": decodeAs[ConnectionRequested],
	},
	RoleClientPeer: {
		"ConnectionAccepted":    decodeAs[ConnectionAccepted],
		"ChannelConfigurations": decodeAs[ChannelConfigurations],
		"ConnectionRejected":    decodeAs[ConnectionRejected],
	},
}
