// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/lib/testutil"
)

const testTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer runs a signaling server behind httptest and returns it
// with its ws:// URL.
func startServer(t *testing.T, modify func(*ServerConfig)) (*Server, string) {
	t.Helper()
	config := ServerConfig{
		PublicURL:   "wss://test.signaling.example.com",
		ShardID:     2,
		MetricsPath: "/metrics",
		Logger:      testLogger(),
	}
	if modify != nil {
		modify(&config)
	}
	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return server, "ws" + strings.TrimPrefix(httpServer.URL, "http")
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func connectHost(t *testing.T, ctx context.Context, url string, gameID uint32, encoding Encoding) *HostClient {
	t.Helper()
	host, err := ConnectHost(ctx, HostClientConfig{
		ServerURL: url,
		GameID:    gameID,
		Channels:  testChannels,
		Socket:    SocketOptions{Encoding: encoding},
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("ConnectHost: %v", err)
	}
	t.Cleanup(func() { host.Close() })
	return host
}

func connectPeer(t *testing.T, ctx context.Context, url string, gameID uint32, encoding Encoding) *PeerClient {
	t.Helper()
	peer, err := ConnectPeer(ctx, PeerClientConfig{
		ServerURL: url,
		GameID:    gameID,
		Socket:    SocketOptions{Encoding: encoding},
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("ConnectPeer: %v", err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer
}

func dialRaw(t *testing.T, ctx context.Context, url string, encoding Encoding) *ClientSocket {
	t.Helper()
	socket, err := Dial(ctx, url, SocketOptions{Encoding: encoding, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { socket.Close() })
	return socket
}

func recvPeerBound(t *testing.T, ctx context.Context, socket *ClientSocket) PeerBound {
	t.Helper()
	message, err := socket.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	return message
}

func requireClosedSocket(t *testing.T, ctx context.Context, socket *ClientSocket) {
	t.Helper()
	_, err := socket.Recv(ctx)
	if !errors.Is(err, ErrSocketClosed) {
		t.Fatalf("Recv after session end = %v, want ErrSocketClosed", err)
	}
	if socket.IsOpen() {
		t.Error("IsOpen() = true after the server ended the session")
	}
}

// gaugeValue reads an unlabelled gauge from the server's registry.
func gaugeValue(t *testing.T, server *Server, name string) float64 {
	t.Helper()
	families, err := server.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) == 1 {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s not registered", name)
	return 0
}

func TestNewServerValidatesPublicURL(t *testing.T) {
	for _, publicURL := range []string{"", "https://example.com", "://bad"} {
		if _, err := NewServer(ServerConfig{PublicURL: publicURL}); err == nil {
			t.Errorf("NewServer accepted PublicURL %q", publicURL)
		}
	}
}

func TestHostRegistration(t *testing.T) {
	server, url := startServer(t, nil)
	ctx := testContext(t)

	host := connectHost(t, ctx, url, 7, EncodingJSON)
	hostID := host.HostID()

	if hostID.ServerURL != "wss://test.signaling.example.com" {
		t.Errorf("ServerURL = %q, want the configured public URL", hostID.ServerURL)
	}
	if hostID.ShardID != 2 {
		t.Errorf("ShardID = %d, want 2", hostID.ShardID)
	}
	if !strings.HasSuffix(hostID.String(), "@test") {
		t.Errorf("String() = %q, want the region token form", hostID.String())
	}
	if got := server.Lobbies(); got != 1 {
		t.Errorf("Lobbies() = %d, want 1", got)
	}
	if got := gaugeValue(t, server, "rendezvous_signaling_lobbies"); got != 1 {
		t.Errorf("lobbies gauge = %v, want 1", got)
	}

	host.Close()
	testutil.RequireEventually(t, func() bool { return server.Lobbies() == 0 }, testTimeout, "lobby released after host left")
}

func TestConnectionExchange(t *testing.T) {
	combinations := []struct {
		host, client Encoding
	}{
		{EncodingJSON, EncodingJSON},
		{EncodingCBOR, EncodingCBOR},
		{EncodingCBOR, EncodingJSON},
		{EncodingJSON, EncodingCBOR},
	}

	for _, combination := range combinations {
		t.Run(fmt.Sprintf("host=%s/client=%s", combination.host, combination.client), func(t *testing.T) {
			server, url := startServer(t, nil)
			ctx := testContext(t)

			host := connectHost(t, ctx, url, 7, combination.host)
			peer := connectPeer(t, ctx, url, 7, combination.client)

			channels, err := peer.ChannelConfigurations(ctx, host.HostID())
			if err != nil {
				t.Fatalf("ChannelConfigurations: %v", err)
			}
			if !reflect.DeepEqual(channels, testChannels) {
				t.Errorf("channels = %+v, want %+v", channels, testChannels)
			}

			type result struct {
				answer HostAnswer
				err    error
			}
			results := make(chan result, 1)
			go func() {
				answer, err := peer.OfferConnection(ctx, host.HostID(), testOffer, testCandidates)
				results <- result{answer, err}
			}()

			candidate, err := host.NextCandidate(ctx)
			if err != nil {
				t.Fatalf("NextCandidate: %v", err)
			}
			if candidate.Offer != testOffer {
				t.Errorf("candidate offer = %+v, want %+v", candidate.Offer, testOffer)
			}
			if !reflect.DeepEqual(candidate.Candidates, testCandidates) {
				t.Errorf("candidate candidates = %+v", candidate.Candidates)
			}
			if got := server.Clients(); got != 1 {
				t.Errorf("Clients() = %d while a request is pending, want 1", got)
			}

			if err := host.AcceptCandidate(ctx, candidate.ClientID, testAnswer, testCandidates[:1]); err != nil {
				t.Fatalf("AcceptCandidate: %v", err)
			}

			outcome := testutil.RequireReceive(t, results, testTimeout, "client awaiting answer")
			if outcome.err != nil {
				t.Fatalf("OfferConnection: %v", outcome.err)
			}
			if outcome.answer.Answer != testAnswer {
				t.Errorf("answer = %+v, want %+v", outcome.answer.Answer, testAnswer)
			}
			if !reflect.DeepEqual(outcome.answer.Candidates, testCandidates[:1]) {
				t.Errorf("answer candidates = %+v", outcome.answer.Candidates)
			}

			peer.Close()
			testutil.RequireEventually(t, func() bool { return server.Clients() == 0 }, testTimeout, "client slot released")
		})
	}
}

func TestRejectConnection(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	host := connectHost(t, ctx, url, 3, EncodingJSON)
	peer := connectPeer(t, ctx, url, 3, EncodingJSON)

	errs := make(chan error, 1)
	go func() {
		_, err := peer.OfferConnection(ctx, host.HostID(), testOffer, nil)
		errs <- err
	}()

	candidate, err := host.NextCandidate(ctx)
	if err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	if err := host.RejectCandidate(ctx, candidate.ClientID); err != nil {
		t.Fatalf("RejectCandidate: %v", err)
	}

	if err := testutil.RequireReceive(t, errs, testTimeout, "client awaiting decision"); !errors.Is(err, ErrConnectionRejected) {
		t.Errorf("OfferConnection error = %v, want ErrConnectionRejected", err)
	}
}

func TestUnknownHostReleasesSlot(t *testing.T) {
	server, url := startServer(t, nil)
	ctx := testContext(t)

	peer := connectPeer(t, ctx, url, 1, EncodingJSON)
	missing := HostID{ServerURL: "wss://test.signaling.example.com", LobbyID: 99, ShardID: 2}

	if _, err := peer.OfferConnection(ctx, missing, testOffer, nil); !errors.Is(err, UnknownHostId) {
		t.Fatalf("OfferConnection error = %v, want UnknownHostId", err)
	}
	if got := server.Clients(); got != 0 {
		t.Errorf("Clients() = %d after UnknownHostId, want 0", got)
	}

	if _, err := peer.ChannelConfigurations(ctx, missing); !errors.Is(err, UnknownHostId) {
		t.Errorf("ChannelConfigurations error = %v, want UnknownHostId", err)
	}

	// The session survives both failures and can still reach a real host.
	host := connectHost(t, ctx, url, 1, EncodingJSON)
	if _, err := peer.ChannelConfigurations(ctx, host.HostID()); err != nil {
		t.Errorf("ChannelConfigurations after failures: %v", err)
	}
}

func TestWrongGameOrShardIsUnknownHost(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	host := connectHost(t, ctx, url, 5, EncodingJSON)

	otherGame := connectPeer(t, ctx, url, 6, EncodingJSON)
	if _, err := otherGame.ChannelConfigurations(ctx, host.HostID()); !errors.Is(err, UnknownHostId) {
		t.Errorf("other game: error = %v, want UnknownHostId", err)
	}

	otherShard := host.HostID()
	otherShard.ShardID++
	peer := connectPeer(t, ctx, url, 5, EncodingJSON)
	if _, err := peer.ChannelConfigurations(ctx, otherShard); !errors.Is(err, UnknownHostId) {
		t.Errorf("other shard: error = %v, want UnknownHostId", err)
	}
}

func TestUnknownClientIDKeepsHostSession(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	socket := dialRaw(t, ctx, url, EncodingJSON)
	if err := socket.Send(ctx, Register{GameID: 1}); err != nil {
		t.Fatalf("Send Register: %v", err)
	}
	if _, ok := recvPeerBound(t, ctx, socket).(Registered); !ok {
		t.Fatal("expected Registered")
	}

	if err := socket.Send(ctx, AcceptConnection{Offer: testAnswer, ClientID: 41}); err != nil {
		t.Fatalf("Send AcceptConnection: %v", err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != UnknownClientId {
		t.Fatalf("reply = %#v, want UnknownClientId", reply)
	}

	if err := socket.Send(ctx, RejectConnection{ClientID: 42}); err != nil {
		t.Fatalf("Send RejectConnection: %v", err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != UnknownClientId {
		t.Fatalf("reply = %#v, want UnknownClientId", reply)
	}
	if !socket.IsOpen() {
		t.Error("host session ended after UnknownClientId")
	}
}

func TestHostCannotDecideForAnotherLobby(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	owner := connectHost(t, ctx, url, 1, EncodingJSON)
	intruder := dialRaw(t, ctx, url, EncodingJSON)
	if err := intruder.Send(ctx, Register{GameID: 1}); err != nil {
		t.Fatal(err)
	}
	recvPeerBound(t, ctx, intruder)

	peer := connectPeer(t, ctx, url, 1, EncodingJSON)
	go peer.OfferConnection(ctx, owner.HostID(), testOffer, nil)

	candidate, err := owner.NextCandidate(ctx)
	if err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	if err := intruder.Send(ctx, AcceptConnection{Offer: testAnswer, ClientID: candidate.ClientID}); err != nil {
		t.Fatal(err)
	}
	if reply := recvPeerBound(t, ctx, intruder); reply != UnknownClientId {
		t.Errorf("intruder reply = %#v, want UnknownClientId", reply)
	}
}

func TestHostRoleExclusivity(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	socket := dialRaw(t, ctx, url, EncodingJSON)
	if err := socket.Send(ctx, Register{GameID: 1}); err != nil {
		t.Fatal(err)
	}
	hostID := recvPeerBound(t, ctx, socket).(Registered).HostID

	if err := socket.Send(ctx, RequestChannelConfigurations{HostID: hostID, GameID: 1}); err != nil {
		t.Fatal(err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != InvalidExpectedMessage {
		t.Fatalf("reply = %#v, want InvalidExpectedMessage", reply)
	}
	requireClosedSocket(t, ctx, socket)
}

func TestClientRoleExclusivity(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	socket := dialRaw(t, ctx, url, EncodingCBOR)
	missing := HostID{ServerURL: "wss://test.signaling.example.com", ShardID: 2}
	if err := socket.Send(ctx, RequestChannelConfigurations{HostID: missing, GameID: 1}); err != nil {
		t.Fatal(err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != UnknownHostId {
		t.Fatalf("reply = %#v, want UnknownHostId", reply)
	}

	if err := socket.Send(ctx, Register{GameID: 1}); err != nil {
		t.Fatal(err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != InvalidExpectedMessage {
		t.Fatalf("reply = %#v, want InvalidExpectedMessage", reply)
	}
	requireClosedSocket(t, ctx, socket)
}

func TestDecisionBeforeRegister(t *testing.T) {
	server, url := startServer(t, nil)
	ctx := testContext(t)

	socket := dialRaw(t, ctx, url, EncodingJSON)
	if err := socket.Send(ctx, AcceptConnection{ClientID: 0}); err != nil {
		t.Fatal(err)
	}
	if reply := recvPeerBound(t, ctx, socket); reply != InvalidExpectedMessage {
		t.Fatalf("reply = %#v, want InvalidExpectedMessage", reply)
	}
	requireClosedSocket(t, ctx, socket)
	if got := server.Lobbies(); got != 0 {
		t.Errorf("Lobbies() = %d, want 0", got)
	}
}

func TestErrorAsFirstMessageEndsConnection(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	socket := dialRaw(t, ctx, url, EncodingJSON)
	if err := socket.Send(ctx, InternalError); err != nil {
		t.Fatal(err)
	}
	requireClosedSocket(t, ctx, socket)
}

func TestPendingClientsRejectedWhenHostLeaves(t *testing.T) {
	server, url := startServer(t, nil)
	ctx := testContext(t)

	host := connectHost(t, ctx, url, 9, EncodingJSON)
	peer := connectPeer(t, ctx, url, 9, EncodingCBOR)

	errs := make(chan error, 1)
	go func() {
		_, err := peer.OfferConnection(ctx, host.HostID(), testOffer, nil)
		errs <- err
	}()

	if _, err := host.NextCandidate(ctx); err != nil {
		t.Fatalf("NextCandidate: %v", err)
	}
	host.Close()

	if err := testutil.RequireReceive(t, errs, testTimeout, "client awaiting departed host"); !errors.Is(err, ErrConnectionRejected) {
		t.Errorf("OfferConnection error = %v, want ErrConnectionRejected", err)
	}
	testutil.RequireEventually(t, func() bool { return server.Lobbies() == 0 }, testTimeout, "lobby released")
}

func TestForwardToDepartedHostRepliesOnce(t *testing.T) {
	server, _ := startServer(t, nil)
	session := &clientSession{server: server, inbox: newMailbox(4), id: 3, logger: testLogger()}
	entry := newLobby(4, nil)

	// The host leaves between addPending and the relay.
	if !entry.addPending(session.id, session.inbox) {
		t.Fatal("addPending on open lobby returned false")
	}
	server.closeLobby(lobbyKey{gameID: 1, lobbyID: 2}, entry, testLogger())

	replied, err := session.forward(entry, RequestConnection{Offer: testOffer})
	if !errors.Is(err, ErrMailboxClosed) {
		t.Fatalf("forward error = %v, want ErrMailboxClosed", err)
	}
	if !replied {
		t.Error("forward reported no reply although ConnectionRejected was queued")
	}
	if got := <-session.inbox.messages; got != (ConnectionRejected{}) {
		t.Errorf("queued reply = %#v, want ConnectionRejected", got)
	}
	if extra := len(session.inbox.messages); extra != 0 {
		t.Errorf("%d extra replies queued for the client", extra)
	}
}

func TestForwardFailureWhileHostPending(t *testing.T) {
	server, _ := startServer(t, nil)
	session := &clientSession{server: server, inbox: newMailbox(4), id: 5, logger: testLogger()}
	entry := newLobby(1, nil)

	if !entry.addPending(session.id, session.inbox) {
		t.Fatal("addPending on open lobby returned false")
	}
	if err := entry.mailbox.deliver(ConnectionRejected{}); err != nil {
		t.Fatalf("filling host mailbox: %v", err)
	}

	replied, err := session.forward(entry, RequestConnection{Offer: testOffer})
	if !errors.Is(err, ErrMailboxFull) {
		t.Fatalf("forward error = %v, want ErrMailboxFull", err)
	}
	if replied {
		t.Error("forward reported a reply for a client still awaiting one")
	}
	if _, ok := entry.resolvePending(session.id); ok {
		t.Error("client still pending after a failed forward")
	}
}

func TestEncodingAdoptedFromFirstFrame(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	register, err := EncodingCBOR.Marshal(Register{GameID: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, register); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(testTimeout))
	frameType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frameType != websocket.BinaryMessage {
		t.Fatalf("reply frame type = %d, want binary", frameType)
	}
	reply, err := EncodingCBOR.DecodePeerBound(data)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if _, ok := reply.(Registered); !ok {
		t.Fatalf("reply = %#v, want Registered", reply)
	}

	// A text frame on a CBOR connection is a protocol violation.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HostPeer","value":{"type":"RejectConnection","client_id":1}}`)); err != nil {
		t.Fatal(err)
	}
	frameType, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frameType != websocket.BinaryMessage {
		t.Fatalf("error frame type = %d, want binary", frameType)
	}
	if reply, err := EncodingCBOR.DecodePeerBound(data); err != nil || reply != InvalidExpectedMessage {
		t.Fatalf("reply = %#v, %v; want InvalidExpectedMessage", reply, err)
	}
}

func TestMalformedFirstFrame(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Spectator","value":{}}`)); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"Error","value":"InvalidExpectedMessage"}` {
		t.Errorf("reply = %s", data)
	}
}

type constantReader struct{}

func (constantReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestLobbyAttemptCap(t *testing.T) {
	_, url := startServer(t, func(config *ServerConfig) {
		config.Random = constantReader{}
		config.MaxLobbyAttempts = 4
	})
	ctx := testContext(t)

	first := connectHost(t, ctx, url, 1, EncodingJSON)
	if first.HostID().LobbyID != 0 {
		t.Fatalf("first lobby = %d, want 0 from the constant source", first.HostID().LobbyID)
	}

	_, err := ConnectHost(ctx, HostClientConfig{ServerURL: url, GameID: 1, Logger: testLogger()})
	if !errors.Is(err, InternalError) {
		t.Fatalf("second ConnectHost error = %v, want InternalError", err)
	}

	// Lobby ids are scoped per game, so another game still gets lobby 0.
	other := connectHost(t, ctx, url, 2, EncodingJSON)
	if other.HostID().LobbyID != 0 {
		t.Errorf("other game lobby = %d, want 0", other.HostID().LobbyID)
	}
}

func TestAcquireLobbyUniqueUnderConcurrency(t *testing.T) {
	server, err := NewServer(ServerConfig{PublicURL: "ws://localhost", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}

	const hosts = 200
	ids := make(chan uint32, hosts)
	var wg sync.WaitGroup
	for range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := server.acquireLobby(11, newLobby(1, nil))
			if err != nil {
				t.Errorf("acquireLobby: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("lobby id %d issued twice", id)
		}
		seen[id] = true
	}
	if server.Lobbies() != hosts {
		t.Errorf("Lobbies() = %d, want %d", server.Lobbies(), hosts)
	}
}

func TestConcurrentHostsGetDistinctLobbies(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)

	const hosts = 20
	hostIDs := make(chan HostID, hosts)
	var wg sync.WaitGroup
	for range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			host, err := ConnectHost(ctx, HostClientConfig{ServerURL: url, GameID: 1, Logger: testLogger()})
			if err != nil {
				t.Errorf("ConnectHost: %v", err)
				return
			}
			t.Cleanup(func() { host.Close() })
			hostIDs <- host.HostID()
		}()
	}
	wg.Wait()
	close(hostIDs)

	seen := make(map[uint32]bool)
	for id := range hostIDs {
		if seen[id.LobbyID] {
			t.Fatalf("lobby %d issued to two live hosts", id.LobbyID)
		}
		seen[id.LobbyID] = true
	}
}

func TestClientIDsReuseLowestFree(t *testing.T) {
	server, err := NewServer(ServerConfig{PublicURL: "ws://localhost", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}

	a, b, c := newMailbox(1), newMailbox(1), newMailbox(1)
	if id := server.acquireClient(a); id != 0 {
		t.Fatalf("first id = %d", id)
	}
	if id := server.acquireClient(b); id != 1 {
		t.Fatalf("second id = %d", id)
	}
	server.releaseClient(0, a)
	if id := server.acquireClient(c); id != 0 {
		t.Errorf("id after release = %d, want 0", id)
	}

	// Releasing with a stale owner must not free the new occupant.
	server.releaseClient(0, a)
	if current, ok := server.lookupClient(0); !ok || current != c {
		t.Error("stale release freed a recycled client id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, url := startServer(t, nil)
	ctx := testContext(t)
	connectHost(t, ctx, url, 1, EncodingJSON)

	response, err := http.Get("http" + strings.TrimPrefix(url, "ws") + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"rendezvous_signaling_lobbies 1",
		`rendezvous_signaling_sessions_total{role="HostPeer"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	server, err := NewServer(ServerConfig{PublicURL: "ws://localhost", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx, listener) }()

	dialCtx := testContext(t)
	host, err := ConnectHost(dialCtx, HostClientConfig{
		ServerURL: "ws://" + listener.Addr().String(),
		GameID:    1,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("ConnectHost: %v", err)
	}
	defer host.Close()

	cancel()
	if err := testutil.RequireReceive(t, served, testTimeout, "Serve returning"); err != nil {
		t.Errorf("Serve() = %v, want nil after cancel", err)
	}
	testutil.RequireClosed(t, host.Done(), testTimeout, "host socket closed by shutdown")
}
