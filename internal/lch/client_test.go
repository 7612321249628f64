/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

var base = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func ms(min int) int64 { return at(min).UnixMilli() }

func TestOverlapRecursesIntoNewlyReachedWindows(t *testing.T) {
	c := NewClient("", time.Second, zerolog.Nop())
	c.SetNight(Night{Observations: []Observation{{
		ID: "GS-2026A-Q-1-1",
		Targets: []Target{{Type: "science", ShutteringWindows: []Window{
			{Start: at(50), End: at(60)},
			{Start: at(70), End: at(75)},
			{Start: at(200), End: at(210)},
		}}},
	}}})

	obs := &models.Obs{ID: "GS-2026A-Q-1-1"}
	// [0,60) hits the first window: +10+3 extends to 73, which hits the
	// second: +5+3 extends to 81. The third window stays clear.
	got := c.Overlap(obs, interval.New(ms(0), ms(60)))
	want := (ms(81) - ms(60))
	if got != want {
		t.Fatalf("Overlap = %d, want %d", got, want)
	}
}

func TestOverlapUnknownObservation(t *testing.T) {
	c := NewClient("", time.Second, zerolog.Nop())
	if got := c.Overlap(&models.Obs{ID: "x"}, interval.New(0, 100)); got != 0 {
		t.Fatalf("Overlap = %d", got)
	}
	var nilClient *Client
	if got := nilClient.Overlap(&models.Obs{ID: "x"}, interval.New(0, 100)); got != 0 {
		t.Fatalf("nil client Overlap = %d", got)
	}
}

func TestLoad(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nights" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(Night{Observations: []Observation{{
			ID:      "o",
			Targets: []Target{{Type: "science", ShutteringWindows: []Window{{Start: at(10), End: at(20)}}}},
		}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	if err := c.Load(context.Background(), base); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotQuery != "date=20260402&full=true&laserLimit=40" {
		t.Errorf("query = %q", gotQuery)
	}
	if !c.Loaded() {
		t.Fatal("expected loaded client")
	}
	if got := c.Overlap(&models.Obs{ID: "o"}, interval.New(ms(0), ms(15))); got != (13 * time.Minute).Milliseconds() {
		t.Fatalf("Overlap = %d", got)
	}
}

func TestLoadStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "not found is empty", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second, zerolog.Nop())
			err := c.Load(context.Background(), base)
			if tt.wantErr {
				if !errors.Is(err, ErrUnexpectedStatus) {
					t.Fatalf("err = %v", err)
				}
				if c.Loaded() {
					t.Fatal("failed load must not report loaded")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !c.Loaded() {
				t.Fatal("404 should still count as reaching the service")
			}
		})
	}
}
