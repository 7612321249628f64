/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package solver defines the constraint-solver boundary of the planner:
// functions that report when an observation's hard constraints can be
// met over a span, the laser shutter collaborator and the sky
// circumstance calculator. Default implementations backed by package
// astro are provided for standalone use.
package solver

import (
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// Kind names a solver role.
type Kind string

const (
	KindElevation  Kind = "elevation"
	KindBackground Kind = "background"
	KindTiming     Kind = "timing"
)

// Solver reports when an observation's constraints of one kind are
// satisfiable within [start, end]. Implementations must be pure and
// deterministic for a given observation and span.
type Solver interface {
	Solve(obs *models.Obs, start, end int64) *interval.Union
}

// Func adapts a function to Solver.
type Func func(obs *models.Obs, start, end int64) *interval.Union

// Solve implements Solver.
func (f Func) Solve(obs *models.Obs, start, end int64) *interval.Union { return f(obs, start, end) }

// Always is satisfied across the whole span.
var Always Solver = Func(func(_ *models.Obs, start, end int64) *interval.Union {
	if end <= start {
		return &interval.Union{}
	}
	return interval.NewUnion(interval.New(start, end))
})

// Never is never satisfied.
var Never Solver = Func(func(*models.Obs, int64, int64) *interval.Union {
	return &interval.Union{}
})

// Table returns fixed unions per observation ID, clipped to the span.
// Observations without an entry fall back to Default, or Always if nil.
type Table struct {
	Unions  map[string]*interval.Union
	Default Solver
}

// Solve implements Solver.
func (t Table) Solve(obs *models.Obs, start, end int64) *interval.Union {
	u, ok := t.Unions[obs.ID]
	if !ok {
		if t.Default != nil {
			return t.Default.Solve(obs, start, end)
		}
		return Always.Solve(obs, start, end)
	}
	out := u.Clone()
	if end > start {
		out.Intersect(interval.NewUnion(interval.New(start, end)))
	} else {
		out = &interval.Union{}
	}
	return out
}

// Suite bundles every collaborator the planner consults.
type Suite struct {
	Elevation  Solver
	Background Solver
	Timing     Solver
	Shutter    ShutterOverlap
	Sky        Sky
}

// Complete fills nil members with permissive defaults.
func (s Suite) Complete() Suite {
	if s.Elevation == nil {
		s.Elevation = Always
	}
	if s.Background == nil {
		s.Background = Always
	}
	if s.Timing == nil {
		s.Timing = TimingWindowSolver{}
	}
	if s.Shutter == nil {
		s.Shutter = NoShutter{}
	}
	if s.Sky == nil {
		s.Sky = NoSky{}
	}
	return s
}
