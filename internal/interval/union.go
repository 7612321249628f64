/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package interval

import (
	"sort"
	"strings"
)

// Union is a sorted set of disjoint intervals. Overlapping or touching
// members are merged and empty members dropped after every mutation.
// The zero value is an empty union ready to use.
type Union struct {
	members []Interval
}

// NewUnion builds a normalized union from the given intervals.
func NewUnion(ivs ...Interval) *Union {
	u := &Union{}
	u.AddAll(ivs)
	return u
}

// Add merges iv into the union.
func (u *Union) Add(iv Interval) {
	if iv.IsEmpty() {
		return
	}
	u.members = append(u.members, iv)
	u.normalize()
}

// AddAll merges every interval.
func (u *Union) AddAll(ivs []Interval) {
	for _, iv := range ivs {
		if !iv.IsEmpty() {
			u.members = append(u.members, iv)
		}
	}
	u.normalize()
}

// AddUnion merges every member of other.
func (u *Union) AddUnion(other *Union) {
	if other == nil {
		return
	}
	u.AddAll(other.members)
}

// Remove subtracts iv, splitting members where needed.
func (u *Union) Remove(iv Interval) {
	if iv.IsEmpty() || len(u.members) == 0 {
		return
	}
	out := make([]Interval, 0, len(u.members)+1)
	for _, m := range u.members {
		if !m.Intersects(iv) {
			out = append(out, m)
			continue
		}
		if m.start < iv.start {
			out = append(out, Interval{start: m.start, end: iv.start})
		}
		if iv.end < m.end {
			out = append(out, Interval{start: iv.end, end: m.end})
		}
	}
	u.members = out
}

// RemoveAll subtracts every interval.
func (u *Union) RemoveAll(ivs []Interval) {
	for _, iv := range ivs {
		u.Remove(iv)
	}
}

// RemoveUnion subtracts every member of other.
func (u *Union) RemoveUnion(other *Union) {
	if other == nil {
		return
	}
	u.RemoveAll(other.members)
}

// Intersect keeps only the instants also covered by other.
func (u *Union) Intersect(other *Union) {
	if other == nil {
		u.members = nil
		return
	}
	var out []Interval
	i, j := 0, 0
	for i < len(u.members) && j < len(other.members) {
		a, b := u.members[i], other.members[j]
		if x, ok := a.Intersection(b); ok {
			out = append(out, x)
		}
		if a.end < b.end {
			i++
		} else {
			j++
		}
	}
	u.members = out
}

// Contains reports whether t is covered.
func (u *Union) Contains(t int64) bool {
	idx := sort.Search(len(u.members), func(i int) bool { return u.members[i].end > t })
	return idx < len(u.members) && u.members[idx].Contains(t)
}

// ContainsInterval reports whether a single member covers iv.
func (u *Union) ContainsInterval(iv Interval) bool {
	for _, m := range u.members {
		if m.ContainsInterval(iv) {
			return true
		}
	}
	return false
}

// Overlaps reports whether any member relates to iv as mode requires.
// With OverlapNone it reports whether no member intersects iv.
func (u *Union) Overlaps(iv Interval, mode Overlap) bool {
	if mode == OverlapNone {
		for _, m := range u.members {
			if m.Intersects(iv) {
				return false
			}
		}
		return true
	}
	for _, m := range u.members {
		if iv.Overlaps(m, mode) {
			return true
		}
	}
	return false
}

// Overlapping returns the members intersecting iv.
func (u *Union) Overlapping(iv Interval) []Interval {
	var out []Interval
	for _, m := range u.members {
		if m.Intersects(iv) {
			out = append(out, m)
		}
	}
	return out
}

// Intervals returns a copy of the members in ascending order.
func (u *Union) Intervals() []Interval {
	return append([]Interval(nil), u.members...)
}

// Len returns the member count.
func (u *Union) Len() int { return len(u.members) }

// IsEmpty reports whether the union covers nothing.
func (u *Union) IsEmpty() bool { return u == nil || len(u.members) == 0 }

// First returns the earliest member.
func (u *Union) First() (Interval, bool) {
	if u.IsEmpty() {
		return Interval{}, false
	}
	return u.members[0], true
}

// Last returns the latest member.
func (u *Union) Last() (Interval, bool) {
	if u.IsEmpty() {
		return Interval{}, false
	}
	return u.members[len(u.members)-1], true
}

// Longest returns the length of the longest member, or 0.
func (u *Union) Longest() int64 {
	var best int64
	for _, m := range u.members {
		best = max(best, m.Length())
	}
	return best
}

// Total returns the summed length of all members.
func (u *Union) Total() int64 {
	var sum int64
	for _, m := range u.members {
		sum += m.Length()
	}
	return sum
}

// Clone returns an independent copy.
func (u *Union) Clone() *Union {
	if u == nil {
		return &Union{}
	}
	return &Union{members: u.Intervals()}
}

// Equal reports whether both unions cover the same instants.
func (u *Union) Equal(other *Union) bool {
	if u.IsEmpty() || other.IsEmpty() {
		return u.IsEmpty() && other.IsEmpty()
	}
	if len(u.members) != len(other.members) {
		return false
	}
	for i := range u.members {
		if u.members[i] != other.members[i] {
			return false
		}
	}
	return true
}

func (u *Union) String() string {
	parts := make([]string, len(u.members))
	for i, m := range u.members {
		parts[i] = m.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (u *Union) normalize() {
	if len(u.members) < 2 {
		return
	}
	sort.Slice(u.members, func(i, j int) bool { return u.members[i].Compare(u.members[j]) < 0 })
	out := u.members[:1]
	for _, m := range u.members[1:] {
		last := &out[len(out)-1]
		if m.start <= last.end {
			last.end = max(last.end, m.end)
			continue
		}
		out = append(out, m)
	}
	u.members = out
}
