/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventAllocAdded        EventType = "plan.alloc_added"
	EventAllocRemoved      EventType = "plan.alloc_removed"
	EventAllocMoved        EventType = "plan.alloc_moved"
	EventVariantChanged    EventType = "plan.variant_changed"
	EventBlocksChanged     EventType = "plan.blocks_changed"
	EventFacilitiesChanged EventType = "plan.facilities_changed"
	EventModelChanged      EventType = "plan.model_changed"
	EventFlagsRefreshed    EventType = "plan.flags_refreshed"

	// Document lifecycle
	EventPlanLoaded EventType = "plan.loaded"
	EventPlanSaved  EventType = "plan.saved"
	EventPlanStored EventType = "plan.stored"
)

// OriginKey marks payloads relayed from another node; its value is the
// sender's node ID.
const OriginKey = "origin_node"

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. A nil bus drops the event.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
