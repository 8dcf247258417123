// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/testutil"
	"github.com/bureau-foundation/rendezvous/signaling"
)

const testTimeout = 20 * time.Second

func uint16Pointer(value uint16) *uint16 { return &value }

var testChannels = []signaling.ChannelConfiguration{
	{Ordered: true},
	{Ordered: false, MaxRetransmits: uint16Pointer(0)},
}

// transports lists every implementation so the behavioral tests run
// against each.
func transports(t *testing.T) map[string]func() Transport {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return map[string]func() Transport{
		"memory": func() Transport { return NewMemoryTransport() },
		"webrtc": func() Transport {
			return NewWebRTCTransport(WebRTCConfig{Logger: logger})
		},
	}
}

// handshake runs the offer/answer exchange the peer runtimes perform,
// passing descriptions and candidates directly instead of through a
// signaling server.
func handshake(t *testing.T, ctx context.Context, transport Transport) (offerer, answerer Connection, offerChannels, answerChannels []Channel) {
	t.Helper()

	offerer, err := transport.Offer(ctx, testChannels)
	if err != nil {
		t.Fatalf("Offer: %v", err)
	}
	t.Cleanup(func() { offerer.Close() })
	offer, err := offerer.LocalDescription(ctx)
	if err != nil {
		t.Fatalf("offer LocalDescription: %v", err)
	}
	if offer.Type != "offer" {
		t.Errorf("offer type = %q, want \"offer\"", offer.Type)
	}
	offerCandidates, err := offerer.GatherCandidates(ctx)
	if err != nil {
		t.Fatalf("offer GatherCandidates: %v", err)
	}

	answerer, err = transport.Answer(ctx, offer, testChannels)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	t.Cleanup(func() { answerer.Close() })
	if err := answerer.AddRemoteCandidates(ctx, offerCandidates); err != nil {
		t.Fatalf("answer AddRemoteCandidates: %v", err)
	}
	answer, err := answerer.LocalDescription(ctx)
	if err != nil {
		t.Fatalf("answer LocalDescription: %v", err)
	}
	if answer.Type != "answer" {
		t.Errorf("answer type = %q, want \"answer\"", answer.Type)
	}
	answerCandidates, err := answerer.GatherCandidates(ctx)
	if err != nil {
		t.Fatalf("answer GatherCandidates: %v", err)
	}

	if err := offerer.SetRemoteDescription(ctx, answer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
	if err := offerer.AddRemoteCandidates(ctx, answerCandidates); err != nil {
		t.Fatalf("offer AddRemoteCandidates: %v", err)
	}

	for name, connection := range map[string]Connection{"offerer": offerer, "answerer": answerer} {
		if err := connection.AwaitConnected(ctx); err != nil {
			t.Fatalf("%s AwaitConnected: %v", name, err)
		}
	}
	offerChannels, err = offerer.OpenChannels(ctx)
	if err != nil {
		t.Fatalf("offerer OpenChannels: %v", err)
	}
	answerChannels, err = answerer.OpenChannels(ctx)
	if err != nil {
		t.Fatalf("answerer OpenChannels: %v", err)
	}
	if len(offerChannels) != len(testChannels) || len(answerChannels) != len(testChannels) {
		t.Fatalf("channel counts = %d/%d, want %d", len(offerChannels), len(answerChannels), len(testChannels))
	}
	return offerer, answerer, offerChannels, answerChannels
}

func TestTransportExchange(t *testing.T) {
	for name, create := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			_, _, offerChannels, answerChannels := handshake(t, ctx, create())

			if err := offerChannels[0].Send([]byte("hi")); err != nil {
				t.Fatalf("Send: %v", err)
			}
			received, err := answerChannels[0].Receive(ctx)
			if err != nil {
				t.Fatalf("Receive: %v", err)
			}
			if string(received) != "hi" {
				t.Errorf("received %q, want \"hi\"", received)
			}

			if err := answerChannels[0].Send([]byte("hello back")); err != nil {
				t.Fatalf("Send: %v", err)
			}
			received, err = offerChannels[0].Receive(ctx)
			if err != nil {
				t.Fatalf("Receive: %v", err)
			}
			if string(received) != "hello back" {
				t.Errorf("received %q, want \"hello back\"", received)
			}
		})
	}
}

func TestTransportOrderedChannelPreservesOrder(t *testing.T) {
	for name, create := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			_, _, offerChannels, answerChannels := handshake(t, ctx, create())

			const count = 50
			for index := range count {
				if err := offerChannels[0].Send([]byte{byte(index)}); err != nil {
					t.Fatalf("Send %d: %v", index, err)
				}
			}
			for index := range count {
				received, err := answerChannels[0].Receive(ctx)
				if err != nil {
					t.Fatalf("Receive %d: %v", index, err)
				}
				if len(received) != 1 || received[0] != byte(index) {
					t.Fatalf("message %d = %v", index, received)
				}
			}
		})
	}
}

func TestTransportCloseEndsChannels(t *testing.T) {
	for name, create := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			offerer, answerer, offerChannels, answerChannels := handshake(t, ctx, create())

			if err := offerer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			testutil.RequireClosed(t, offerer.Done(), testTimeout, "offerer done after Close")

			if _, err := answerChannels[0].Receive(ctx); !errors.Is(err, ErrChannelClosed) {
				t.Errorf("answerer Receive after close = %v, want ErrChannelClosed", err)
			}
			testutil.RequireEventually(t, func() bool {
				return offerChannels[1].Send([]byte("late")) != nil
			}, testTimeout, "send failing after close")

			if name == "memory" {
				testutil.RequireClosed(t, answerer.Done(), testTimeout, "answerer done after peer close")
			}
		})
	}
}

func TestTransportReceiveHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, _, _, answerChannels := handshake(t, ctx, NewMemoryTransport())

	short, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	if _, err := answerChannels[0].Receive(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive = %v, want context.DeadlineExceeded", err)
	}
}
