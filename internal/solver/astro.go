/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"math"

	"github.com/friendsincode/queueplanner/internal/astro"
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// DefaultStep is the sampling resolution of the astro-backed solvers.
const DefaultStep int64 = 60 * 1000

// ElevationSolver is satisfied while the target airmass is at most MaxAirmass.
type ElevationSolver struct {
	Site       models.Site
	MaxAirmass float64
	Step       int64
}

// NewElevationSolver returns the airmass-2 solver for site.
func NewElevationSolver(site models.Site) ElevationSolver {
	return ElevationSolver{Site: site, MaxAirmass: 2, Step: DefaultStep}
}

// Solve implements Solver.
func (s ElevationSolver) Solve(obs *models.Obs, start, end int64) *interval.Union {
	loc := s.Site.Location()
	target := astro.Equatorial{RA: obs.RA, Dec: obs.Dec}
	return sampleUnion(start, end, s.Step, func(t int64) bool {
		am := astro.ToHorizon(target, loc, t).Airmass
		return !math.IsNaN(am) && am <= s.MaxAirmass
	})
}

// BackgroundSolver is satisfied while the sky is dark enough for the
// observation's sky-background requirement: sun below nautical twilight,
// or astronomical twilight with the moon down for SB50 and better.
type BackgroundSolver struct {
	Site models.Site
	Step int64
}

// NewBackgroundSolver returns the background solver for site.
func NewBackgroundSolver(site models.Site) BackgroundSolver {
	return BackgroundSolver{Site: site, Step: DefaultStep}
}

// Solve implements Solver.
func (s BackgroundSolver) Solve(obs *models.Obs, start, end int64) *interval.Union {
	loc := s.Site.Location()
	sb := obs.Conditions.SB
	return sampleUnion(start, end, s.Step, func(t int64) bool {
		if sb >= models.PercentileAny {
			return true
		}
		if sb > 50 {
			return astro.SunAltitude(loc, t) < -float64(astro.Nautical)
		}
		return astro.SunAltitude(loc, t) < -float64(astro.Astronomical) && astro.MoonAltitude(loc, t) < 0
	})
}

// SkyCalc computes circumstances with package astro. Sky brightness is
// not modelled and is reported missing.
type SkyCalc struct {
	Site models.Site
}

// Sample implements Sky.
func (c SkyCalc) Sample(obs *models.Obs, t int64) Sample {
	loc := c.Site.Location()
	target := astro.Equatorial{RA: obs.RA, Dec: obs.Dec}
	h := astro.ToHorizon(target, loc, t)

	s := EmptySample()
	s[Azimuth] = h.Azimuth
	s[Elevation] = h.Altitude
	s[Airmass] = h.Airmass
	s[LunarDistance] = astro.Separation(target, astro.Moon(t))
	s[ParallacticAngle] = h.ParallacticAngle
	s[HourAngle] = h.HourAngle
	s[TimingWindowOpen] = boolValue(TimingWindowSolver{}.Includes(obs, t))
	return s
}

// sampleUnion evaluates ok every step across [start, end) and returns the
// union of the sampled slots where it held.
func sampleUnion(start, end, step int64, ok func(int64) bool) *interval.Union {
	u := &interval.Union{}
	if end <= start {
		return u
	}
	if step <= 0 {
		step = DefaultStep
	}
	var slots []interval.Interval
	for t := start; t < end; t += step {
		if ok(t) {
			slots = append(slots, interval.New(t, min(t+step, end)))
		}
	}
	u.AddAll(slots)
	return u
}

// AstroSuite returns a Suite backed entirely by package astro, with the
// given shutter collaborator (nil for none).
func AstroSuite(site models.Site, shutter ShutterOverlap) Suite {
	return Suite{
		Elevation:  NewElevationSolver(site),
		Background: NewBackgroundSolver(site),
		Timing:     TimingWindowSolver{},
		Shutter:    shutter,
		Sky:        SkyCalc{Site: site},
	}.Complete()
}
