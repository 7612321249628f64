/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// Trigger names a plan property whose change invalidates caches.
type Trigger string

const (
	TriggerBlocks     Trigger = "blocks"
	TriggerFacilities Trigger = "facilities"
	TriggerICTD       Trigger = "ictd"
	TriggerConditions Trigger = "conditions"
	TriggerLGS        Trigger = "lgs"
	TriggerMiniModel  Trigger = "mini_model"
)

// Clearer is anything the registry can empty.
type Clearer interface {
	Name() string
	Clear()
}

// Table is a cache keyed by observation ID.
type Table[V any] struct {
	name    string
	mu      sync.Mutex
	entries map[string]V
}

// NewTable creates an empty table.
func NewTable[V any](name string) *Table[V] {
	return &Table[V]{name: name, entries: make(map[string]V)}
}

// Name returns the table name.
func (t *Table[V]) Name() string { return t.name }

// Get looks up a cached value.
func (t *Table[V]) Get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[key]
	return v, ok
}

// Put stores a value.
func (t *Table[V]) Put(key string, v V) {
	t.mu.Lock()
	t.entries[key] = v
	t.mu.Unlock()
}

// Len returns the number of entries.
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops every entry.
func (t *Table[V]) Clear() {
	t.mu.Lock()
	clear(t.entries)
	t.mu.Unlock()
}

// Registry maps triggers to the caches that depend on them. Invalidation
// is eager and coarse: a trigger empties every dependent cache.
type Registry struct {
	mu        sync.Mutex
	all       []Clearer
	byTrigger map[Trigger][]Clearer
	scope     string
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. scope labels metrics, e.g.
// "schedule" or "variant".
func NewRegistry(scope string, logger zerolog.Logger) *Registry {
	return &Registry{
		byTrigger: make(map[Trigger][]Clearer),
		scope:     scope,
		logger:    logger.With().Str("component", "cache_registry").Str("scope", scope).Logger(),
	}
}

// Register adds c under every trigger. A cache with no triggers is
// only cleared by InvalidateAll.
func (r *Registry) Register(c Clearer, triggers ...Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, c)
	for _, t := range triggers {
		r.byTrigger[t] = append(r.byTrigger[t], c)
	}
}

// Invalidate clears every cache registered under t.
func (r *Registry) Invalidate(t Trigger) {
	r.mu.Lock()
	deps := append([]Clearer(nil), r.byTrigger[t]...)
	r.mu.Unlock()

	for _, c := range deps {
		c.Clear()
	}
	telemetry.CacheInvalidationsTotal.WithLabelValues(r.scope, string(t)).Inc()
	if len(deps) > 0 {
		r.logger.Debug().Str("trigger", string(t)).Int("caches", len(deps)).Msg("caches invalidated")
	}
}

// InvalidateAll clears every registered cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	deps := append([]Clearer(nil), r.all...)
	r.mu.Unlock()

	for _, c := range deps {
		c.Clear()
	}
	telemetry.CacheInvalidationsTotal.WithLabelValues(r.scope, "all").Inc()
}

// Dependents lists the cache names registered under t, sorted.
func (r *Registry) Dependents(t Trigger) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byTrigger[t]))
	for _, c := range r.byTrigger[t] {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}
