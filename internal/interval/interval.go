/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package interval provides half-open millisecond time ranges and
// normalized unions of them.
package interval

import (
	"fmt"
	"time"
)

// Overlap classifies how one interval relates to another.
type Overlap int

const (
	// OverlapNone means the intervals share no instant.
	OverlapNone Overlap = iota
	// OverlapPartial means the intervals intersect but neither contains the other.
	OverlapPartial
	// OverlapTotal means the receiver lies entirely within the argument.
	OverlapTotal
	// OverlapEither matches Partial or Total.
	OverlapEither
)

func (o Overlap) String() string {
	switch o {
	case OverlapNone:
		return "none"
	case OverlapPartial:
		return "partial"
	case OverlapTotal:
		return "total"
	case OverlapEither:
		return "either"
	default:
		return fmt.Sprintf("overlap(%d)", int(o))
	}
}

// Interval is an immutable range [Start, End) in milliseconds since epoch.
type Interval struct {
	start int64
	end   int64
}

// New returns [start, end). It panics if end precedes start.
func New(start, end int64) Interval {
	if end < start {
		panic(fmt.Sprintf("interval: end %d before start %d", end, start))
	}
	return Interval{start: start, end: end}
}

// FromTimes builds an interval from wall-clock times.
func FromTimes(start, end time.Time) Interval {
	return New(start.UnixMilli(), end.UnixMilli())
}

// Start returns the inclusive lower bound.
func (i Interval) Start() int64 { return i.start }

// End returns the exclusive upper bound.
func (i Interval) End() int64 { return i.end }

// Length returns End - Start.
func (i Interval) Length() int64 { return i.end - i.start }

// Middle returns the midpoint.
func (i Interval) Middle() int64 { return i.start + (i.end-i.start)/2 }

// IsEmpty reports whether the interval is degenerate.
func (i Interval) IsEmpty() bool { return i.start == i.end }

// StartTime returns Start as a UTC time.
func (i Interval) StartTime() time.Time { return time.UnixMilli(i.start).UTC() }

// EndTime returns End as a UTC time.
func (i Interval) EndTime() time.Time { return time.UnixMilli(i.end).UTC() }

// WithStart returns a copy with a new start, keeping the end.
func (i Interval) WithStart(start int64) Interval { return New(start, i.end) }

// WithEnd returns a copy with a new end, keeping the start.
func (i Interval) WithEnd(end int64) Interval { return New(i.start, end) }

// Shift moves both bounds by delta.
func (i Interval) Shift(delta int64) Interval { return Interval{start: i.start + delta, end: i.end + delta} }

// Plus extends the end by delta milliseconds.
func (i Interval) Plus(delta int64) Interval { return New(i.start, i.end+delta) }

// Contains reports whether t lies in [Start, End).
func (i Interval) Contains(t int64) bool { return t >= i.start && t < i.end }

// ContainsInterval reports whether o lies entirely within i.
func (i Interval) ContainsInterval(o Interval) bool {
	return o.start >= i.start && o.end <= i.end
}

// Abuts reports whether the intervals touch without overlapping.
func (i Interval) Abuts(o Interval) bool { return i.end == o.start || o.end == i.start }

// Intersects reports whether the intervals share at least one instant.
func (i Interval) Intersects(o Interval) bool { return i.start < o.end && o.start < i.end }

// Intersection returns the common part of two intervals.
func (i Interval) Intersection(o Interval) (Interval, bool) {
	if !i.Intersects(o) {
		return Interval{}, false
	}
	return Interval{start: max(i.start, o.start), end: min(i.end, o.end)}, true
}

// Classify returns how i overlaps o.
func (i Interval) Classify(o Interval) Overlap {
	switch {
	case o.ContainsInterval(i) && !i.IsEmpty():
		return OverlapTotal
	case i.Intersects(o):
		return OverlapPartial
	default:
		return OverlapNone
	}
}

// Overlaps reports whether the relation between i and o matches mode.
// Overlaps(o, OverlapTotal) holds only when o contains i.
func (i Interval) Overlaps(o Interval, mode Overlap) bool {
	got := i.Classify(o)
	if mode == OverlapEither {
		return got != OverlapNone
	}
	return got == mode
}

// Compare orders by start, then end.
func (i Interval) Compare(o Interval) int {
	switch {
	case i.start < o.start:
		return -1
	case i.start > o.start:
		return 1
	case i.end < o.end:
		return -1
	case i.end > o.end:
		return 1
	default:
		return 0
	}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.StartTime().Format(time.RFC3339), i.EndTime().Format(time.RFC3339))
}
