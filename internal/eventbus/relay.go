/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus relays selected plan events between planner processes
// over Redis pub/sub or NATS.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

const (
	subjectPrefix  = "queueplanner.events."
	publishTimeout = 2 * time.Second
)

// DefaultKinds are the event types relayed unless others are given.
var DefaultKinds = []events.EventType{events.EventPlanStored}

// Transport moves opaque messages between nodes.
type Transport interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func() error, err error)
	Close() error
}

// Open connects the transport selected by cfg.EventRelay. It returns a nil
// transport when relaying is disabled.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Transport, error) {
	switch cfg.EventRelay {
	case "":
		return nil, nil
	case config.RelayRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return NewRedisTransport(ctx, rc, logger)
	case config.RelayNATS:
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nc.Name = "queueplanner-" + cfg.NodeID
		return NewNATSTransport(nc, logger)
	default:
		return nil, fmt.Errorf("unsupported event relay %q", cfg.EventRelay)
	}
}

// message is the wire form of one relayed event.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// Relay forwards local bus events to the transport and publishes remote
// events on the local bus tagged with events.OriginKey. Relayed payloads
// are never forwarded again and a node ignores its own messages.
type Relay struct {
	bus       *events.Bus
	transport Transport
	nodeID    string
	logger    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	local   map[events.EventType]events.Subscriber
	remotes []func() error
}

// NewRelay creates a relay for nodeID. Call Start to begin relaying.
func NewRelay(bus *events.Bus, transport Transport, nodeID string, logger zerolog.Logger) *Relay {
	return &Relay{
		bus:       bus,
		transport: transport,
		nodeID:    nodeID,
		logger:    logger.With().Str("component", "event_relay").Str("node_id", nodeID).Logger(),
		local:     make(map[events.EventType]events.Subscriber),
	}
}

// Start relays kinds, or DefaultKinds when none are given.
func (r *Relay) Start(kinds ...events.EventType) error {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("relay already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for _, kind := range kinds {
		unsub, err := r.transport.Subscribe(subjectPrefix+string(kind), func(data []byte) {
			r.deliver(kind, data)
		})
		if err != nil {
			r.teardown()
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		r.remotes = append(r.remotes, unsub)

		sub := r.bus.Subscribe(kind)
		r.local[kind] = sub
		r.wg.Add(1)
		go r.forward(ctx, kind, sub)
	}
	r.logger.Info().Int("kinds", len(kinds)).Msg("event relay started")
	return nil
}

// Stop flushes pending local events, then detaches from the bus and
// closes the transport.
func (r *Relay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return nil
	}
	r.teardown()
	return r.transport.Close()
}

// teardown runs with mu held.
func (r *Relay) teardown() {
	for _, unsub := range r.remotes {
		if err := unsub(); err != nil {
			r.logger.Debug().Err(err).Msg("remote unsubscribe failed")
		}
	}
	r.remotes = nil
	r.cancel()
	r.cancel = nil
	r.wg.Wait()
	for kind, sub := range r.local {
		r.bus.Unsubscribe(kind, sub)
	}
	r.local = make(map[events.EventType]events.Subscriber)
}

func (r *Relay) forward(ctx context.Context, kind events.EventType, sub events.Subscriber) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case p := <-sub:
					r.send(kind, p)
				default:
					return
				}
			}
		case p := <-sub:
			r.send(kind, p)
		}
	}
}

func (r *Relay) send(kind events.EventType, p events.Payload) {
	if _, relayed := p[events.OriginKey]; relayed {
		return
	}
	data, err := json.Marshal(message{
		EventType: kind,
		Payload:   p,
		Timestamp: time.Now().UTC(),
		NodeID:    r.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		telemetry.EventRelayTotal.WithLabelValues("out", "error").Inc()
		r.logger.Error().Err(err).Str("event_type", string(kind)).Msg("encode relayed event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.transport.Publish(ctx, subjectPrefix+string(kind), data); err != nil {
		telemetry.EventRelayTotal.WithLabelValues("out", "error").Inc()
		r.logger.Warn().Err(err).Str("event_type", string(kind)).Msg("relay publish failed")
		return
	}
	telemetry.EventRelayTotal.WithLabelValues("out", "ok").Inc()
}

func (r *Relay) deliver(kind events.EventType, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		telemetry.EventRelayTotal.WithLabelValues("in", "error").Inc()
		r.logger.Warn().Err(err).Str("event_type", string(kind)).Msg("undecodable relayed event")
		return
	}
	if msg.NodeID == r.nodeID {
		return
	}

	payload := make(events.Payload, len(msg.Payload)+1)
	for k, v := range msg.Payload {
		payload[k] = v
	}
	payload[events.OriginKey] = msg.NodeID
	r.bus.Publish(kind, payload)
	telemetry.EventRelayTotal.WithLabelValues("in", "ok").Inc()
	r.logger.Debug().Str("event_type", string(kind)).Str("source_node", msg.NodeID).Str("message_id", msg.MessageID).Msg("relayed event delivered")
}
