// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/rendezvous/lib/crockford"
)

// RegionSuffix is the hostname suffix of the first-party signaling
// deployment. Servers under it are abbreviated to their region token in
// the text form of a HostID.
const RegionSuffix = ".signaling.example.com"

// lobbyDigits is the fixed width of the crockford lobby segment. Seven
// base-32 digits hold 35 bits, enough for any uint32.
const lobbyDigits = 7

// HostID names one lobby on one signaling server shard. Clients use it
// to find the host: it says which server to dial and which lobby to ask
// that server for.
//
// The text form is "SS:LLLLLLL@server": the shard as two hex digits,
// the lobby id as seven crockford base-32 digits, and the server either
// as a bare region token (for URLs under [RegionSuffix] whose region is
// a single label) or verbatim.
type HostID struct {
	ServerURL string
	LobbyID   uint32
	ShardID   uint8
}

// String returns the text form. For a first-party server:
//
//	HostID{ServerURL: "wss://abc.signaling.example.com"}.String() == "00:0000000@abc"
func (h HostID) String() string {
	server := h.ServerURL
	if region, ok := regionToken(h.ServerURL); ok {
		server = region
	}
	return fmt.Sprintf("%02X:%s@%s", h.ShardID, crockford.Encode(uint64(h.LobbyID), lobbyDigits), server)
}

func regionToken(serverURL string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(serverURL, "wss://"):
		rest = strings.TrimPrefix(serverURL, "wss://")
	case strings.HasPrefix(serverURL, "ws://"):
		rest = strings.TrimPrefix(serverURL, "ws://")
	default:
		return "", false
	}
	// A region token is read back as a URL if it carries '.' or ':'.
	region, ok := strings.CutSuffix(rest, RegionSuffix)
	if !ok || region == "" || strings.ContainsAny(region, ".:") {
		return "", false
	}
	return region, true
}

// ParseHostID parses the text form produced by [HostID.String]. The
// server segment is interpreted as a URL when it contains '.' or ':'
// (wss:// is assumed when it carries no ws:// or wss:// scheme) and as a
// first-party region token otherwise.
//
// Parsing is lenient about the lobby segment in the way crockford
// decoding is (lowercase, and O/I/L as 0/1/1) but requires the shard
// and lobby segments to have their fixed widths.
func ParseHostID(s string) (HostID, error) {
	left, server, ok := strings.Cut(s, "@")
	if !ok {
		return HostID{}, fmt.Errorf("%w %q: missing '@'", ErrInvalidHostID, s)
	}
	if strings.Contains(server, "@") {
		return HostID{}, fmt.Errorf("%w %q: more than one '@'", ErrInvalidHostID, s)
	}
	if server == "" {
		return HostID{}, fmt.Errorf("%w %q: empty server", ErrInvalidHostID, s)
	}

	segments := strings.Split(left, ":")
	if len(segments) != 2 {
		return HostID{}, fmt.Errorf("%w %q: want exactly one ':' before '@', got %d", ErrInvalidHostID, s, len(segments)-1)
	}
	shardText, lobbyText := segments[0], segments[1]

	if len(shardText) != 2 {
		return HostID{}, fmt.Errorf("%w %q: shard must be two hex digits", ErrInvalidHostID, s)
	}
	shard, err := strconv.ParseUint(shardText, 16, 8)
	if err != nil {
		return HostID{}, fmt.Errorf("%w %q: shard: %v", ErrInvalidHostID, s, err)
	}

	if len(lobbyText) != lobbyDigits {
		return HostID{}, fmt.Errorf("%w %q: lobby must be %d crockford digits", ErrInvalidHostID, s, lobbyDigits)
	}
	lobby, err := crockford.Decode(lobbyText, 32)
	if err != nil {
		return HostID{}, fmt.Errorf("%w %q: lobby: %v", ErrInvalidHostID, s, err)
	}

	return HostID{
		ServerURL: expandServer(server),
		LobbyID:   uint32(lobby),
		ShardID:   uint8(shard),
	}, nil
}

func expandServer(server string) string {
	if !strings.ContainsAny(server, ".:") {
		return "wss://" + server + RegionSuffix
	}
	if strings.HasPrefix(server, "ws://") || strings.HasPrefix(server, "wss://") {
		return server
	}
	return "wss://" + server
}

// MarshalText implements encoding.TextMarshaler. A HostID travels in
// its text form in both wire encodings.
func (h HostID) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HostID) UnmarshalText(text []byte) error {
	parsed, err := ParseHostID(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
