/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

// checkAdd validates placing a into set. a must not be a member.
func checkAdd(set *AllocSet, a *Alloc) error {
	for _, b := range set.All() {
		if a.iv.Intersects(b.iv) {
			return &CollisionError{Alloc: a, With: b}
		}
		if a.obs.ID == b.obs.ID && a.first <= b.last && b.first <= a.last {
			return &CollisionError{Alloc: a, With: b}
		}
	}

	pred := set.Predecessor(a)
	succ := set.Successor(a)
	if pred == nil && a.first > a.obs.FirstUnexecutedStep() {
		return &MissingPredecessorError{Alloc: a}
	}

	var earliest, latest int64
	if pred != nil {
		earliest = pred.End()
	}
	if succ != nil {
		latest = succ.Start()
	}
	if pred != nil && pred.End() > a.Start() {
		return &OrderingError{Alloc: a, Neighbour: pred, EarliestStart: earliest, LatestEnd: latest}
	}
	if succ != nil && succ.Start() < a.End() {
		return &OrderingError{Alloc: a, Neighbour: succ, EarliestStart: earliest, LatestEnd: latest}
	}
	return nil
}

// checkRemove validates removing a from set.
func checkRemove(set *AllocSet, a *Alloc) error {
	if succ := set.Successor(a); succ != nil {
		return &AbandonedSuccessorError{Alloc: a, Successor: succ}
	}
	return nil
}
