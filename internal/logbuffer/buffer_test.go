/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferWrapsOldestFirst(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		b.Add(LogEntry{Message: msg, Level: "info"})
	}
	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"c", "d", "e"} {
		if all[i].Message != want {
			t.Fatalf("entry %d = %q, want %q", i, all[i].Message, want)
		}
	}
	b.Clear()
	if got := len(b.GetAll()); got != 0 {
		t.Fatalf("after clear len = %d", got)
	}
}

func TestQueryFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b := New(10)
	b.Add(LogEntry{Timestamp: base, Level: "info", Component: "solver", Message: "union computed", Fields: map[string]any{"plan": "tonight"}})
	b.Add(LogEntry{Timestamp: base.Add(time.Minute), Level: "warn", Component: "scheduleio", Message: "digest mismatch", Fields: map[string]any{"plan": "tonight"}})
	b.Add(LogEntry{Timestamp: base.Add(2 * time.Minute), Level: "info", Component: "api", Message: "request", Fields: map[string]any{"plan": "tomorrow", "path": "/api/v1/plan/variants"}})
	b.Add(LogEntry{Timestamp: base.Add(3 * time.Minute), Level: "error", Component: "solver", Message: "ltts unavailable"})

	tests := []struct {
		name   string
		params QueryParams
		want   []string
	}{
		{"all", QueryParams{}, []string{"union computed", "digest mismatch", "request", "ltts unavailable"}},
		{"level", QueryParams{Level: "info"}, []string{"union computed", "request"}},
		{"component", QueryParams{Component: "solver"}, []string{"union computed", "ltts unavailable"}},
		{"plan", QueryParams{Plan: "tonight"}, []string{"union computed", "digest mismatch"}},
		{"search message", QueryParams{Search: "DIGEST"}, []string{"digest mismatch"}},
		{"search field", QueryParams{Search: "variants"}, []string{"request"}},
		{"since", QueryParams{Since: base.Add(2 * time.Minute)}, []string{"request", "ltts unavailable"}},
		{"descending limit", QueryParams{Descending: true, Limit: 2}, []string{"ltts unavailable", "request"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Query(tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Message != tt.want[i] {
					t.Fatalf("entry %d = %q, want %q", i, got[i].Message, tt.want[i])
				}
			}
		})
	}

	if comps := b.Components(); len(comps) != 3 || comps[0] != "api" || comps[2] != "solver" {
		t.Fatalf("components = %v", comps)
	}
	stats := b.Stats()
	if stats.Count != 4 || stats.Capacity != 10 || stats.LevelCount["info"] != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestWriterCapturesZerologEvents(t *testing.T) {
	b := New(10)
	var out bytes.Buffer
	logger := zerolog.New(NewWriter(b, &out)).With().Timestamp().Str("component", "planner").Logger()

	logger.Warn().Str("plan", "tonight").Int("issues", 2).Msg("plan loaded with issues")

	entries := b.GetAll()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Level != "warn" || e.Component != "planner" || e.Message != "plan loaded with issues" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Fields["plan"] != "tonight" || e.Fields["issues"] != float64(2) {
		t.Fatalf("fields = %v", e.Fields)
	}
	if _, ok := e.Fields["time"]; ok {
		t.Fatal("time should be lifted out of fields")
	}
	if e.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
	if out.Len() == 0 {
		t.Fatal("fallback writer not written")
	}
}

func TestWriterIgnoresNonJSON(t *testing.T) {
	b := New(4)
	n, err := NewWriter(b, nil).Write([]byte("plain text\n"))
	if err != nil || n != len("plain text\n") {
		t.Fatalf("write = %d, %v", n, err)
	}
	if len(b.GetAll()) != 0 {
		t.Fatal("non-JSON line should not be buffered")
	}
}
