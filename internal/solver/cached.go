/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/friendsincode/queueplanner/internal/cache"
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

const cacheTimeout = 500 * time.Millisecond

// Cached memoises a solver in the shared Redis cache. The key covers the
// observation's constraint-relevant fields, so an edited observation
// never hits a stale entry.
type Cached struct {
	Kind   Kind
	Site   models.Site
	Inner  Solver
	Cache  *cache.Cache
	Logger zerolog.Logger
}

// Solve implements Solver.
func (c Cached) Solve(obs *models.Obs, start, end int64) *interval.Union {
	if c.Cache == nil || !c.Cache.IsAvailable() {
		telemetry.SolverCallsTotal.WithLabelValues(string(c.Kind), "uncached").Inc()
		return c.Inner.Solve(obs, start, end)
	}

	key := cache.UnionKey(string(c.Kind), string(c.Site), obs.ID, Fingerprint(obs), start, end)
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if u, ok := c.Cache.GetUnion(ctx, key); ok {
		telemetry.SolverCallsTotal.WithLabelValues(string(c.Kind), "hit").Inc()
		return u
	}

	telemetry.SolverCallsTotal.WithLabelValues(string(c.Kind), "miss").Inc()
	u := c.Inner.Solve(obs, start, end)
	if err := c.Cache.SetUnion(ctx, key, u); err != nil {
		c.Logger.Debug().Err(err).Str("kind", string(c.Kind)).Str("obs", obs.ID).Msg("solver cache write failed")
	}
	return u
}

// Fingerprint hashes the observation fields that solvers read.
func Fingerprint(obs *models.Obs) string {
	h := blake3.New()
	fmt.Fprintf(h, "%.9f|%.9f|%d|%d|%d|%d", obs.RA, obs.Dec, obs.Conditions.SB, obs.Conditions.CC, obs.Conditions.IQ, obs.Conditions.WV)
	for _, tw := range obs.TimingWindows {
		fmt.Fprintf(h, "|%d,%d,%d,%d", tw.Start, tw.Duration, tw.Repeat, tw.Period)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// WithCache wraps the three solvers of s in Cached decorators.
func WithCache(s Suite, site models.Site, c *cache.Cache, logger zerolog.Logger) Suite {
	s = s.Complete()
	logger = logger.With().Str("component", "solver_cache").Logger()
	s.Elevation = Cached{Kind: KindElevation, Site: site, Inner: s.Elevation, Cache: c, Logger: logger}
	s.Background = Cached{Kind: KindBackground, Site: site, Inner: s.Background, Cache: c, Logger: logger}
	s.Timing = Cached{Kind: KindTiming, Site: site, Inner: s.Timing, Cache: c, Logger: logger}
	return s
}
