/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package astro

import (
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// TwilightKind selects the solar depression that bounds a night.
type TwilightKind int

const (
	Civil        TwilightKind = 6
	Nautical     TwilightKind = 12
	Astronomical TwilightKind = 18
)

func (k TwilightKind) String() string {
	switch k {
	case Civil:
		return "civil"
	case Nautical:
		return "nautical"
	case Astronomical:
		return "astronomical"
	default:
		return "custom"
	}
}

const (
	msPerHour  = 3600000
	scanStep   = 5 * 60 * 1000
	resolution = 1000
	halfDayMs  = 12 * msPerHour
	fullDayMs  = 24 * msPerHour
	noCrossing = -1
)

// Night is the dark span between evening and morning twilight.
type Night struct {
	Kind  TwilightKind
	Start int64
	End   int64
}

// Interval returns [Start, End).
func (n Night) Interval() interval.Interval { return interval.New(n.Start, n.End) }

// Twilight computes twilight-bounded nights for one site.
type Twilight struct {
	site models.Site
	loc  models.Location
}

// NewTwilight returns a calculator for site.
func NewTwilight(site models.Site) *Twilight {
	return &Twilight{site: site, loc: site.Location()}
}

// Site returns the site the calculator was built for.
func (tw *Twilight) Site() models.Site { return tw.site }

// NightFor returns the night whose local noon-to-noon day contains t.
// Boundaries are rounded to the second so repeated calls agree exactly.
func (tw *Twilight) NightFor(kind TwilightKind, t int64) Night {
	offset := int64(tw.loc.Longitude / 15 * msPerHour)
	local := t + offset - halfDayMs
	day := local / fullDayMs
	if local < 0 && local%fullDayMs != 0 {
		day--
	}
	noon := day*fullDayMs + halfDayMs - offset
	midnight := noon + halfDayMs

	depression := -float64(kind)
	start := tw.crossing(depression, noon, midnight, true)
	if start == noCrossing {
		start = noon
	}
	end := tw.crossing(depression, midnight, noon+fullDayMs, false)
	if end == noCrossing {
		end = noon + fullDayMs
	}
	return Night{Kind: kind, Start: start, End: end}
}

// crossing finds the first instant in [a, b) at which the sun passes
// altitude alt, setting when descending is true and rising otherwise.
func (tw *Twilight) crossing(alt float64, a, b int64, descending bool) int64 {
	above := func(t int64) bool { return SunAltitude(tw.loc, t) > alt }
	prev := above(a)
	for t := a + scanStep; t <= b; t += scanStep {
		cur := above(t)
		if descending && prev && !cur || !descending && !prev && cur {
			lo, hi := t-scanStep, t
			for hi-lo > resolution {
				mid := lo + (hi-lo)/2
				if above(mid) == prev {
					lo = mid
				} else {
					hi = mid
				}
			}
			return (hi + resolution/2) / resolution * resolution
		}
		prev = cur
	}
	return noCrossing
}
