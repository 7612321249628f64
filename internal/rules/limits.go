/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rules raises plan markers for allocs that break observing
// limits: elevation and airmass bounds, laser elevation limits, timing
// windows, shutter closures and lone scheduling-group members.
package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/solver"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// Source tags every marker this package raises.
const Source = "limits"

// Limits in degrees and airmass.
const (
	MinElevationError   = 17.5
	MinElevationWarning = 20.0
	MaxElevationWarning = 88.0
	LGSElevationError   = 40.0
	LGSElevationWarning = 42.0
	MaxAirmassError     = 2.0
	MaxAirmassWarning   = 1.75
)

// Checker evaluates the limit rules against a schedule's variants.
type Checker struct {
	sched  *schedule.Schedule
	logger zerolog.Logger
}

// NewChecker creates a checker writing markers to s's marker manager.
func NewChecker(s *schedule.Schedule, logger zerolog.Logger) *Checker {
	return &Checker{
		sched:  s,
		logger: logger.With().Str("component", "limits").Logger(),
	}
}

// CheckAll re-evaluates every variant.
func (c *Checker) CheckAll() int {
	n := 0
	for _, v := range c.sched.Variants() {
		n += c.CheckVariant(v)
	}
	return n
}

// CheckVariant replaces the variant's limit markers and returns how many
// were raised.
func (c *Checker) CheckVariant(v *schedule.Variant) int {
	mm := c.sched.Markers()
	mm.Clear(Source, schedule.VariantTarget(v.ID()))

	lgs := v.LGS()
	n := 0
	for _, a := range v.Allocs() {
		for _, m := range Evaluate(a, v.Grouping(a), lgs) {
			mm.Add(m)
			telemetry.MarkersRaisedTotal.WithLabelValues(Source, m.Severity.String()).Inc()
			n++
		}
	}
	c.logger.Debug().Str("variant", v.Name()).Int("markers", n).Msg("limits checked")
	return n
}

// Watch re-checks affected variants whenever the plan changes, until ctx
// is cancelled.
func (c *Checker) Watch(ctx context.Context, bus *events.Bus) {
	kinds := []events.EventType{
		events.EventFlagsRefreshed,
		events.EventModelChanged,
		events.EventPlanLoaded,
	}
	subs := make([]events.Subscriber, len(kinds))
	for i, k := range kinds {
		subs[i] = bus.Subscribe(k)
	}
	defer func() {
		for i, k := range kinds {
			bus.Unsubscribe(k, subs[i])
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-subs[0]:
			c.checkPayload(p)
		case <-subs[1]:
			c.CheckAll()
		case <-subs[2]:
			c.CheckAll()
		}
	}
}

func (c *Checker) checkPayload(p events.Payload) {
	id, _ := p["variant_id"].(string)
	if v := c.sched.Variant(schedule.VariantID(id)); v != nil {
		c.CheckVariant(v)
	}
}

// Evaluate returns the markers one alloc earns. Samples taken during
// setup are ignored.
func Evaluate(a *schedule.Alloc, grouping schedule.Grouping, lgs bool) []schedule.Marker {
	var out []schedule.Marker
	add := func(sev schedule.Severity, format string, args ...any) {
		out = append(out, schedule.Marker{
			Severity: sev,
			Source:   Source,
			Text:     fmt.Sprintf(format, args...),
			Target:   schedule.AllocTarget(a),
		})
	}

	obs := a.Obs()
	if grouping == schedule.GroupingSolo {
		add(schedule.SeverityWarning, "Scheduling group member is not adjacent to the rest of its group.")
	}

	if am, ok := a.Min(solver.Airmass, false); ok && am == 0 {
		add(schedule.SeverityError, "Observation is below the horizon.")
	}

	if minEl, ok := a.Min(solver.Elevation, false); ok {
		switch {
		case minEl < MinElevationError:
			add(schedule.SeverityError, "Elevation %.1f° is below the %.1f° limit.", minEl, MinElevationError)
		case minEl < MinElevationWarning:
			add(schedule.SeverityWarning, "Elevation %.1f° is close to the %.1f° limit.", minEl, MinElevationError)
		}
	}
	if maxEl, ok := a.Max(solver.Elevation, false); ok && maxEl > MaxElevationWarning {
		add(schedule.SeverityWarning, "Elevation %.1f° is near zenith.", maxEl)
	}

	if len(obs.TimingWindows) > 0 {
		if open, ok := a.Mean(solver.TimingWindowOpen, false); ok {
			switch {
			case open == 1:
				add(schedule.SeverityInfo, "Timing constraint is met.")
			case open == 0:
				add(schedule.SeverityError, "Timing constraint is not met.")
			default:
				add(schedule.SeverityError, "Timing constraint is violated %d%% of the time.", int(math.Round((1-open)*100)))
			}
		}
	}

	if obs.LGS {
		if minEl, ok := a.Min(solver.Elevation, false); ok {
			switch {
			case minEl < LGSElevationError:
				add(schedule.SeverityError, "LGS elevation %.1f° is below the %.0f° limit.", minEl, LGSElevationError)
			case minEl < LGSElevationWarning:
				add(schedule.SeverityWarning, "LGS elevation %.1f° is close to the %.0f° limit.", minEl, LGSElevationError)
			}
		}
		if !lgs {
			add(schedule.SeverityError, "Laser guide star is not available in this variant.")
		}
	} else if maxAm, ok := a.Max(solver.Airmass, false); ok {
		switch {
		case maxAm > MaxAirmassError:
			add(schedule.SeverityError, "Airmass %.2f exceeds %.2f.", maxAm, MaxAirmassError)
		case maxAm > MaxAirmassWarning:
			add(schedule.SeverityWarning, "Airmass %.2f exceeds %.2f.", maxAm, MaxAirmassWarning)
		}
	}

	if st := a.ShutterTime(); st > 0 {
		add(schedule.SeverityWarning, "Laser shutter closures add %d min to this visit.", st/60000)
	}
	return out
}
