// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling implements the rendezvous signaling protocol: the
// message model, its two wire encodings, the websocket socket that
// carries it, the host and client signaling clients, and the signaling
// server that pairs them.
//
// A host peer connects, sends [Register], and receives a [HostID] that
// names its lobby. A client peer that knows the HostID connects to the
// same server, asks for the host's channel layout with
// [RequestChannelConfigurations], and sends its transport offer with
// [RequestConnection]. The server relays the offer to the host as
// [ConnectionRequested], tagged with a server-assigned client id, and
// relays the host's [AcceptConnection] or [RejectConnection] back to the
// client. After that the two peers talk directly over their peer
// transport and the signaling sockets can close.
//
// # Wire format
//
// Every frame carries exactly one envelope:
//
//	{"type": "HostPeer", "value": {"type": "Register", "game_id": 7, "request_proxy": false}}
//	{"type": "Error", "value": "UnknownHostId"}
//
// The outer tag is the [Role]; the inner tag names the variant. Frames
// are JSON in websocket text frames or CBOR (Core Deterministic, see
// lib/codec) in websocket binary frames. The connecting party picks the
// encoding; the server answers in the encoding of the first frame it
// receives. Unknown roles or variants are decode errors.
//
// # Server state
//
// The [Server] holds two tables and nothing else: lobbies keyed by
// (game id, lobby id), each with the host session's mailbox, and a
// recyclable slot table of client mailboxes whose indices are the
// client ids. Nothing is persisted.
package signaling
