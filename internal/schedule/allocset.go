/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"github.com/google/btree"

	"github.com/friendsincode/queueplanner/internal/interval"
)

const allocSetDegree = 8

func allocLess(a, b *Alloc) bool { return a.Compare(b) < 0 }

// AllocSet is the ordered collection of a variant's allocs.
type AllocSet struct {
	tree *btree.BTreeG[*Alloc]
}

// NewAllocSet returns an empty set.
func NewAllocSet() *AllocSet {
	return &AllocSet{tree: btree.NewG[*Alloc](allocSetDegree, allocLess)}
}

// Len returns the number of allocs.
func (s *AllocSet) Len() int { return s.tree.Len() }

// IsEmpty reports whether the set has no allocs.
func (s *AllocSet) IsEmpty() bool { return s.tree.Len() == 0 }

// Add inserts a.
func (s *AllocSet) Add(a *Alloc) { s.tree.ReplaceOrInsert(a) }

// Remove deletes a and reports whether it was present.
func (s *AllocSet) Remove(a *Alloc) bool {
	_, ok := s.tree.Delete(a)
	return ok
}

// Has reports whether a is a member.
func (s *AllocSet) Has(a *Alloc) bool { return s.tree.Has(a) }

// Clone returns an independent copy. The tree is copied lazily.
func (s *AllocSet) Clone() *AllocSet { return &AllocSet{tree: s.tree.Clone()} }

// All returns every alloc in order.
func (s *AllocSet) All() []*Alloc {
	out := make([]*Alloc, 0, s.tree.Len())
	s.tree.Ascend(func(a *Alloc) bool {
		out = append(out, a)
		return true
	})
	return out
}

// First returns the earliest alloc.
func (s *AllocSet) First() (*Alloc, bool) { return s.tree.Min() }

// Last returns the latest alloc.
func (s *AllocSet) Last() (*Alloc, bool) { return s.tree.Max() }

// Find returns the alloc with the given ID.
func (s *AllocSet) Find(id AllocID) *Alloc {
	var found *Alloc
	s.tree.Ascend(func(a *Alloc) bool {
		if a.id == id {
			found = a
			return false
		}
		return true
	})
	return found
}

// ForObs returns the allocs of one observation in order.
func (s *AllocSet) ForObs(obsID string) []*Alloc {
	var out []*Alloc
	s.tree.Ascend(func(a *Alloc) bool {
		if a.obs.ID == obsID {
			out = append(out, a)
		}
		return true
	})
	return out
}

// Intervals returns the interval of every alloc in order.
func (s *AllocSet) Intervals() []interval.Interval {
	out := make([]interval.Interval, 0, s.tree.Len())
	s.tree.Ascend(func(a *Alloc) bool {
		out = append(out, a.iv)
		return true
	})
	return out
}

// Overlapping returns the allocs whose interval overlaps iv in the given mode.
func (s *AllocSet) Overlapping(iv interval.Interval, mode interval.Overlap) []*Alloc {
	var out []*Alloc
	s.tree.Ascend(func(a *Alloc) bool {
		if iv.Overlaps(a.iv, mode) {
			out = append(out, a)
		}
		return true
	})
	return out
}

// Predecessor returns the alloc of the same observation whose last step
// immediately precedes a's first step.
func (s *AllocSet) Predecessor(a *Alloc) *Alloc {
	var found *Alloc
	s.tree.Ascend(func(p *Alloc) bool {
		if p != a && p.IsSuccessor(a) {
			found = p
			return false
		}
		return true
	})
	return found
}

// Successor returns the alloc of the same observation that continues
// a's step range.
func (s *AllocSet) Successor(a *Alloc) *Alloc {
	var found *Alloc
	s.tree.Ascend(func(n *Alloc) bool {
		if n != a && a.IsSuccessor(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Previous returns the alloc ordered immediately before a.
func (s *AllocSet) Previous(a *Alloc) *Alloc {
	var found *Alloc
	s.tree.DescendLessOrEqual(a, func(p *Alloc) bool {
		if p == a {
			return true
		}
		found = p
		return false
	})
	return found
}

// Next returns the alloc ordered immediately after a.
func (s *AllocSet) Next(a *Alloc) *Alloc {
	var found *Alloc
	s.tree.AscendGreaterOrEqual(a, func(n *Alloc) bool {
		if n == a {
			return true
		}
		found = n
		return false
	})
	return found
}
