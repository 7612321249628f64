/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lch talks to the laser target tracking service that publishes
// the shutter closure windows laser guide star observations must pause for.
package lch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// ClosurePadding is added to every overlapping shutter window to cover
// the time lost stopping and restarting the exposure.
const ClosurePadding = 3 * time.Minute

// LaserLimit is the elevation limit in degrees passed to the service.
const LaserLimit = 40

// ErrUnexpectedStatus is returned when the service answers with anything
// other than 200 or 404.
var ErrUnexpectedStatus = errors.New("unexpected LTTS response status")

// Window is one shutter closure.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Target is a laser target of an observation.
type Target struct {
	Type              string   `json:"type"`
	ShutteringWindows []Window `json:"shutteringWindows"`
}

// Observation is one observation known to the service.
type Observation struct {
	ID      string   `json:"id"`
	Targets []Target `json:"targets"`
}

// Night is the service's answer for one night.
type Night struct {
	Date         string        `json:"date"`
	Observations []Observation `json:"observations"`
}

// Client fetches a night from the service and answers shutter overlap
// queries against it. The zero value answers every query with no overlap.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu      sync.RWMutex
	windows map[string][]interval.Interval
	loaded  bool
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "lch").Logger(),
		windows:    make(map[string][]interval.Interval),
	}
}

// Load fetches the closure windows for the night starting at night. A
// 404 means the service knows nothing about that night and leaves the
// client empty.
func (c *Client) Load(ctx context.Context, night time.Time) error {
	q := url.Values{}
	q.Set("date", night.UTC().Format("20060102"))
	q.Set("laserLimit", fmt.Sprint(LaserLimit))
	q.Set("full", "true")
	endpoint := c.baseURL + "/nights?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info().Str("url", endpoint).Msg("fetching laser clearance windows")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reset()
		return fmt.Errorf("fetch night: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		c.reset()
		c.markLoaded()
		return nil
	case http.StatusOK:
	default:
		c.reset()
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload Night
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.reset()
		return fmt.Errorf("decode night: %w", err)
	}
	c.SetNight(payload)
	return nil
}

// SetNight replaces the known closure windows with those of n.
func (c *Client) SetNight(n Night) {
	windows := make(map[string][]interval.Interval, len(n.Observations))
	for _, o := range n.Observations {
		if o.ID == "" {
			continue
		}
		var ivs []interval.Interval
		for _, t := range targetsByType(o.Targets) {
			for _, w := range t.ShutteringWindows {
				if w.End.Before(w.Start) {
					continue
				}
				ivs = append(ivs, interval.FromTimes(w.Start, w.End))
			}
		}
		windows[o.ID] = ivs
	}

	c.mu.Lock()
	c.windows = windows
	c.loaded = true
	c.mu.Unlock()
}

// Loaded reports whether the last Load reached the service.
func (c *Client) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Overlap implements solver.ShutterOverlap. Every closure window touching
// the interval adds its length plus ClosurePadding; the extended interval
// is checked again until no new window is hit. Each window counts once.
func (c *Client) Overlap(obs *models.Obs, iv interval.Interval) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	windows, ok := c.windows[obs.ID]
	c.mu.RUnlock()
	if !ok {
		telemetry.ShutterQueriesTotal.WithLabelValues("unknown").Inc()
		return 0
	}

	seen := make(map[interval.Interval]bool)
	end := iv.End()
	for {
		span := interval.New(iv.Start(), end)
		var added int64
		for _, w := range windows {
			if seen[w] || !span.Overlaps(w, interval.OverlapEither) {
				continue
			}
			seen[w] = true
			added += w.Length() + ClosurePadding.Milliseconds()
		}
		if added == 0 {
			break
		}
		end += added
	}

	if len(seen) == 0 {
		telemetry.ShutterQueriesTotal.WithLabelValues("clear").Inc()
	} else {
		telemetry.ShutterQueriesTotal.WithLabelValues("overlap").Inc()
	}
	return end - iv.End()
}

func (c *Client) reset() {
	c.mu.Lock()
	c.windows = make(map[string][]interval.Interval)
	c.loaded = false
	c.mu.Unlock()
}

func (c *Client) markLoaded() {
	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
}

// targetsByType orders targets so the science target comes first.
func targetsByType(ts []Target) []Target {
	out := append([]Target(nil), ts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == "science" && out[j].Type != "science"
	})
	return out
}
