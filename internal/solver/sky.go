/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"fmt"
	"math"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// Circumstance is one sampled property of an observation's sky position.
type Circumstance int

const (
	Azimuth Circumstance = iota
	Elevation
	Airmass
	LunarDistance
	ParallacticAngle
	TotalSkyBrightness
	HourAngle
	TimingWindowOpen
	circumstanceCount
)

// Circumstances lists every circumstance in declaration order.
func Circumstances() []Circumstance {
	out := make([]Circumstance, circumstanceCount)
	for i := range out {
		out[i] = Circumstance(i)
	}
	return out
}

func (c Circumstance) String() string {
	switch c {
	case Azimuth:
		return "azimuth"
	case Elevation:
		return "elevation"
	case Airmass:
		return "airmass"
	case LunarDistance:
		return "lunar_distance"
	case ParallacticAngle:
		return "parallactic_angle"
	case TotalSkyBrightness:
		return "total_sky_brightness"
	case HourAngle:
		return "hour_angle"
	case TimingWindowOpen:
		return "timing_window_open"
	default:
		return fmt.Sprintf("circumstance(%d)", int(c))
	}
}

// Sample holds every circumstance at one instant. NaN marks a value the
// calculator could not provide.
type Sample [circumstanceCount]float64

// Value returns one circumstance. An unknown circumstance is a pipeline
// invariant violation and panics.
func (s Sample) Value(c Circumstance) float64 {
	if c < 0 || c >= circumstanceCount {
		panic(fmt.Sprintf("solver: unknown circumstance %d", int(c)))
	}
	return s[c]
}

// EmptySample has every value missing.
func EmptySample() Sample {
	var s Sample
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Sky computes circumstances for an observation at an instant.
type Sky interface {
	Sample(obs *models.Obs, t int64) Sample
}

// NoSky reports every circumstance as missing except timing-window
// openness, which it derives from the observation itself.
type NoSky struct{}

// Sample implements Sky.
func (NoSky) Sample(obs *models.Obs, t int64) Sample {
	s := EmptySample()
	s[TimingWindowOpen] = boolValue(TimingWindowSolver{}.Includes(obs, t))
	return s
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ShutterOverlap reports how far an interval must be extended to absorb
// laser shutter closures.
type ShutterOverlap interface {
	Overlap(obs *models.Obs, iv interval.Interval) int64
}

// NoShutter never extends intervals.
type NoShutter struct{}

// Overlap implements ShutterOverlap.
func (NoShutter) Overlap(*models.Obs, interval.Interval) int64 { return 0 }
