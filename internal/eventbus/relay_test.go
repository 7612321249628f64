/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/events"
)

// loopback is an in-memory hub shared by several transports.
type loopback struct {
	mu        sync.Mutex
	handlers  map[string]map[int]func([]byte)
	next      int
	published int
}

func newLoopback() *loopback {
	return &loopback{handlers: make(map[string]map[int]func([]byte))}
}

func (l *loopback) transport() *loopbackTransport { return &loopbackTransport{hub: l} }

func (l *loopback) publishedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.published
}

type loopbackTransport struct {
	hub    *loopback
	closed bool
}

func (t *loopbackTransport) Publish(_ context.Context, subject string, data []byte) error {
	t.hub.mu.Lock()
	t.hub.published++
	var hs []func([]byte)
	for _, h := range t.hub.handlers[subject] {
		hs = append(hs, h)
	}
	t.hub.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
	return nil
}

func (t *loopbackTransport) Subscribe(subject string, handler func([]byte)) (func() error, error) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if t.hub.handlers[subject] == nil {
		t.hub.handlers[subject] = make(map[int]func([]byte))
	}
	id := t.hub.next
	t.hub.next++
	t.hub.handlers[subject][id] = handler
	return func() error {
		t.hub.mu.Lock()
		defer t.hub.mu.Unlock()
		delete(t.hub.handlers[subject], id)
		return nil
	}, nil
}

func (t *loopbackTransport) Close() error {
	t.closed = true
	return nil
}

func receive(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRelayForwardsBetweenNodes(t *testing.T) {
	hub := newLoopback()
	busA, busB := events.NewBus(), events.NewBus()
	relayA := NewRelay(busA, hub.transport(), "node-a", zerolog.Nop())
	relayB := NewRelay(busB, hub.transport(), "node-b", zerolog.Nop())
	if err := relayA.Start(); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := relayB.Start(); err != nil {
		t.Fatalf("start b: %v", err)
	}
	defer relayB.Stop()
	defer relayA.Stop()

	localA := busA.Subscribe(events.EventPlanStored)
	remoteB := busB.Subscribe(events.EventPlanStored)

	busA.Publish(events.EventPlanStored, events.Payload{"document": "tonight"})

	got := receive(t, remoteB)
	if got["document"] != "tonight" || got[events.OriginKey] != "node-a" {
		t.Fatalf("remote payload = %v", got)
	}
	own := receive(t, localA)
	if _, ok := own[events.OriginKey]; ok {
		t.Fatalf("local payload tagged as relayed: %v", own)
	}

	// Give any echo a chance to arrive.
	time.Sleep(50 * time.Millisecond)
	select {
	case p := <-localA:
		t.Fatalf("echo delivered to origin node: %v", p)
	case p := <-remoteB:
		t.Fatalf("relayed event delivered twice: %v", p)
	default:
	}
	if n := hub.publishedCount(); n != 1 {
		t.Fatalf("published %d messages, want 1", n)
	}
}

func TestRelayIgnoresOtherKinds(t *testing.T) {
	hub := newLoopback()
	bus := events.NewBus()
	relay := NewRelay(bus, hub.transport(), "node-a", zerolog.Nop())
	if err := relay.Start(events.EventPlanStored); err != nil {
		t.Fatalf("start: %v", err)
	}
	bus.Publish(events.EventFlagsRefreshed, events.Payload{"variant_id": "v"})
	if err := relay.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if n := hub.publishedCount(); n != 0 {
		t.Fatalf("published %d messages, want 0", n)
	}
}

func TestRelayStopFlushesPendingEvents(t *testing.T) {
	hub := newLoopback()
	bus := events.NewBus()
	tr := hub.transport()
	relay := NewRelay(bus, tr, "cli", zerolog.Nop())
	if err := relay.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := relay.Start(); err == nil {
		t.Fatal("second start should fail")
	}

	bus.Publish(events.EventPlanStored, events.Payload{"document": "a"})
	bus.Publish(events.EventPlanStored, events.Payload{"document": "b"})
	if err := relay.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if n := hub.publishedCount(); n != 2 {
		t.Fatalf("published %d messages, want 2", n)
	}
	if !tr.closed {
		t.Fatal("transport not closed")
	}
	if err := relay.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRelayDropsUndecodableMessages(t *testing.T) {
	bus := events.NewBus()
	relay := NewRelay(bus, newLoopback().transport(), "node-a", zerolog.Nop())
	sub := bus.Subscribe(events.EventPlanStored)

	relay.deliver(events.EventPlanStored, []byte("not json"))
	relay.deliver(events.EventPlanStored, []byte(`{"event_type":"plan.stored","node_id":"node-a","payload":{}}`))

	select {
	case p := <-sub:
		t.Fatalf("unexpected delivery %v", p)
	default:
	}
}

func TestOpenTransport(t *testing.T) {
	tr, err := Open(context.Background(), &config.Config{}, zerolog.Nop())
	if err != nil || tr != nil {
		t.Fatalf("disabled relay = %v, %v", tr, err)
	}

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"redis unreachable", config.Config{EventRelay: config.RelayRedis, RedisAddr: "127.0.0.1:1"}},
		{"nats unreachable", config.Config{EventRelay: config.RelayNATS, NATSURL: "nats://127.0.0.1:1", NodeID: "test"}},
		{"unknown", config.Config{EventRelay: "kafka"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), &tt.cfg, zerolog.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
