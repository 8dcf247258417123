// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "fmt"

// Role is the outer envelope tag: which side of the rendezvous a
// message belongs to.
type Role string

const (
	RoleHostPeer   Role = "HostPeer"
	RoleClientPeer Role = "ClientPeer"
	RoleError      Role = "Error"
)

// Message is implemented by every signaling message. Role and Variant
// are the two envelope tags.
type Message interface {
	Role() Role
	Variant() string
}

// ServerBound is a message a peer sends to the server. The set of
// implementations is closed: [Register], [AcceptConnection],
// [RejectConnection], [RequestConnection],
// [RequestChannelConfigurations], and [ErrorCode].
type ServerBound interface {
	Message
	serverBound()
}

// PeerBound is a message the server sends to a peer. The set of
// implementations is closed: [Registered], [ConnectionRequested],
// [ConnectionAccepted], [ChannelConfigurations], [ConnectionRejected],
// and [ErrorCode].
type PeerBound interface {
	Message
	peerBound()
}

// SessionDescription is an SDP offer or answer produced by the peer
// transport. Field names match the browser RTCSessionDescriptionInit.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is one transport candidate. Field names match the
// browser RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// ChannelConfiguration describes one data channel of a host. Channels
// are identified by their position in the host's list.
type ChannelConfiguration struct {
	// Ordered requests in-order delivery.
	Ordered bool `json:"ordered"`

	// MaxRetransmits bounds retransmission of a lost message. Nil means
	// fully reliable; zero means never retransmit.
	MaxRetransmits *uint16 `json:"max_retransmits,omitempty"`
}

// Reliable reports whether the channel retransmits without bound.
func (c ChannelConfiguration) Reliable() bool {
	return c.MaxRetransmits == nil
}

// --- Host peer to server ---

// Register opens a lobby for a game. It must be the first message of a
// host session.
type Register struct {
	GameID uint32 `json:"game_id"`

	// RequestProxy asks the server to relay the transport instead of
	// exposing the host's address. It is advisory; servers may ignore
	// it.
	RequestProxy bool `json:"request_proxy"`

	// ChannelConfigurations is the host's channel layout, returned to
	// clients that send RequestChannelConfigurations.
	ChannelConfigurations []ChannelConfiguration `json:"channel_configurations,omitempty"`
}

// AcceptConnection answers a ConnectionRequested with the host's
// transport answer.
type AcceptConnection struct {
	Offer      SessionDescription `json:"offer"`
	Candidates []ICECandidate     `json:"candidates"`
	ClientID   uint64             `json:"client_id"`
}

// RejectConnection declines a ConnectionRequested.
type RejectConnection struct {
	ClientID uint64 `json:"client_id"`
}

// --- Client peer to server ---

// RequestConnection carries a client's transport offer to a host.
type RequestConnection struct {
	Offer      SessionDescription `json:"offer"`
	Candidates []ICECandidate     `json:"candidates"`
	HostID     HostID             `json:"host_id"`
	GameID     uint32             `json:"game_id"`
}

// RequestChannelConfigurations asks for a host's channel layout so the
// client can build a matching offer.
type RequestChannelConfigurations struct {
	HostID HostID `json:"host_id"`
	GameID uint32 `json:"game_id"`
}

// --- Server to host peer ---

// Registered confirms a Register and names the lobby.
type Registered struct {
	HostID HostID `json:"host_id"`
}

// ConnectionRequested relays a client's offer to the host. ClientID is
// assigned by the server and is valid until the client leaves.
type ConnectionRequested struct {
	Offer      SessionDescription `json:"offer"`
	Candidates []ICECandidate     `json:"candidates"`
	ClientID   uint64             `json:"client_id"`
}

// --- Server to client peer ---

// ConnectionAccepted relays the host's answer to the client.
type ConnectionAccepted struct {
	Offer      SessionDescription `json:"offer"`
	Candidates []ICECandidate     `json:"candidates"`
}

// ChannelConfigurations answers RequestChannelConfigurations.
type ChannelConfigurations struct {
	Configurations []ChannelConfiguration `json:"configurations"`
}

// ConnectionRejected tells the client its request was declined, or
// that the host left before deciding.
type ConnectionRejected struct{}

// ErrorCode is the body of an Error envelope. It flows in both
// directions and is itself an error.
type ErrorCode string

const (
	// InvalidExpectedMessage reports a message that is not valid for
	// the sender's role or session state. The server ends the session
	// after sending it.
	InvalidExpectedMessage ErrorCode = "InvalidExpectedMessage"
	// UnknownClientId reports a host decision for a client id that is
	// not pending in the host's lobby.
	UnknownClientId ErrorCode = "UnknownClientId"
	// UnknownHostId reports a HostID that names no open lobby.
	UnknownHostId ErrorCode = "UnknownHostId"
	// InternalError reports a server-side failure.
	InternalError ErrorCode = "InternalError"
)

var errorCodes = map[ErrorCode]struct{}{
	InvalidExpectedMessage: {},
	UnknownClientId:        {},
	UnknownHostId:          {},
	InternalError:          {},
}

// Known reports whether c is one of the protocol's error codes.
func (c ErrorCode) Known() bool {
	_, ok := errorCodes[c]
	return ok
}

func (c ErrorCode) Error() string {
	return fmt.Sprintf("signaling error: %s", string(c))
}

func (Register) Role() Role                     { return RoleHostPeer }
func (AcceptConnection) Role() Role             { return RoleHostPeer }
func (RejectConnection) Role() Role             { return RoleHostPeer }
func (RequestConnection) Role() Role            { return RoleClientPeer }
func (RequestChannelConfigurations) Role() Role { return RoleClientPeer }
func (Registered) Role() Role                   { return RoleHostPeer }
func (ConnectionRequested) Role() Role          { return RoleHostPeer }
func (ConnectionAccepted) Role() Role           { return RoleClientPeer }
func (ChannelConfigurations) Role() Role        { return RoleClientPeer }
func (ConnectionRejected) Role() Role           { return RoleClientPeer }
func (ErrorCode) Role() Role                    { return RoleError }

func (Register) Variant() string                     { return "Register" }
func (AcceptConnection) Variant() string             { return "AcceptConnection" }
func (RejectConnection) Variant() string             { return "RejectConnection" }
func (RequestConnection) Variant() string            { return "RequestConnection" }
func (RequestChannelConfigurations) Variant() string { return "RequestChannelConfigurations" }
func (Registered) Variant() string                   { return "Registered" }
func (ConnectionRequested) Variant() string          { return "ConnectionRequested" }
func (ConnectionAccepted) Variant() string           { return "ConnectionAccepted" }
func (ChannelConfigurations) Variant() string        { return "ChannelConfigurations" }
func (ConnectionRejected) Variant() string           { return "ConnectionRejected" }
func (c ErrorCode) Variant() string                  { return string(c) }

func (Register) serverBound()                     {}
func (AcceptConnection) serverBound()             {}
func (RejectConnection) serverBound()             {}
func (RequestConnection) serverBound()            {}
func (RequestChannelConfigurations) serverBound() {}
func (ErrorCode) serverBound()                    {}

func (Registered) peerBound()            {}
func (ConnectionRequested) peerBound()   {}
func (ConnectionAccepted) peerBound()    {}
func (ChannelConfigurations) peerBound() {}
func (ConnectionRejected) peerBound()    {}
func (ErrorCode) peerBound()             {}
