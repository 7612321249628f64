/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// TimingWindowSolver turns an observation's timing windows into a union.
// Repeating windows are expanded with an RFC 5545 recurrence rule whose
// interval is the window period. Observations without timing windows are
// unconstrained.
type TimingWindowSolver struct{}

// Solve implements Solver.
func (TimingWindowSolver) Solve(obs *models.Obs, start, end int64) *interval.Union {
	u := &interval.Union{}
	if end <= start {
		return u
	}
	span := interval.New(start, end)
	if len(obs.TimingWindows) == 0 {
		u.Add(span)
		return u
	}
	for _, tw := range obs.TimingWindows {
		for _, iv := range windowOccurrences(tw, start, end) {
			if x, ok := iv.Intersection(span); ok {
				u.Add(x)
			}
		}
	}
	return u
}

// Includes reports whether t lies in one of the observation's windows.
func (s TimingWindowSolver) Includes(obs *models.Obs, t int64) bool {
	if len(obs.TimingWindows) == 0 {
		return true
	}
	return s.Solve(obs, t, t+1).Contains(t)
}

// windowOccurrences returns the openings of tw that may touch [start, end).
func windowOccurrences(tw models.TimingWindow, start, end int64) []interval.Interval {
	open := func(from int64) interval.Interval {
		if tw.Duration < 0 {
			return interval.New(from, max(end, from))
		}
		return interval.New(from, from+tw.Duration)
	}

	if tw.Repeat == 0 || tw.Period <= 0 || tw.Duration < 0 {
		return []interval.Interval{open(tw.Start)}
	}
	// Recurrence rules run at whole-second resolution.
	if tw.Period%1000 != 0 || tw.Start%1000 != 0 {
		return stepOccurrences(tw, start, end, open)
	}

	opt := rrule.ROption{
		Freq:     rrule.SECONDLY,
		Interval: int(tw.Period / 1000),
		Dtstart:  time.UnixMilli(tw.Start).UTC(),
	}
	if tw.Repeat > 0 {
		opt.Count = tw.Repeat + 1
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return []interval.Interval{open(tw.Start)}
	}

	from := time.UnixMilli(start - tw.Duration).UTC()
	to := time.UnixMilli(end).UTC()
	var out []interval.Interval
	for _, occ := range rule.Between(from, to, true) {
		out = append(out, open(occ.UnixMilli()))
	}
	return out
}

// stepOccurrences walks the openings of tw by adding the period, for
// windows that do not fall on whole seconds.
func stepOccurrences(tw models.TimingWindow, start, end int64, open func(int64) interval.Interval) []interval.Interval {
	var k int64
	if from := start - tw.Duration; from > tw.Start {
		k = (from - tw.Start + tw.Period - 1) / tw.Period
	}
	var out []interval.Interval
	for ; tw.Repeat < 0 || k <= int64(tw.Repeat); k++ {
		occ := tw.Start + k*tw.Period
		if occ > end {
			break
		}
		out = append(out, open(occ))
	}
	return out
}
