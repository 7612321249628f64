/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariant     = errors.New("variant not in schedule")
	ErrUnknownAlloc       = errors.New("alloc not in variant")
	ErrUnknownObservation = errors.New("observation not in model")
	ErrStepRange          = errors.New("step range outside sequence")
	ErrSiteMismatch       = errors.New("sites do not match")
	ErrEmptySchedule      = errors.New("schedule is empty")
	ErrUnknownSemester    = errors.New("semester not in model")
	ErrSemesterNotAdded   = errors.New("semester is not an extra semester")
	ErrSemesterInUse      = errors.New("plan contains observations from semester")
	ErrNoNights           = errors.New("at least one night is required")
	ErrVariantPosition    = errors.New("variant position out of range")
)

// EditKind names a rejected edit.
type EditKind string

const (
	EditCollision          EditKind = "collision"
	EditMissingPredecessor EditKind = "missing_predecessor"
	EditOrdering           EditKind = "ordering"
	EditAbandonedSuccessor EditKind = "abandoned_successor"
)

// EditError is returned for an alloc edit that breaks a placement rule.
// The variant is left unchanged.
type EditError interface {
	error
	Kind() EditKind
}

// CollisionError reports an alloc overlapping another in time, or
// repeating steps of the same observation.
type CollisionError struct {
	Alloc *Alloc
	With  *Alloc
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s collides with %s", e.Alloc, e.With)
}

func (e *CollisionError) Kind() EditKind { return EditCollision }

// MissingPredecessorError reports an alloc continuing a step range whose
// earlier steps are not placed.
type MissingPredecessorError struct {
	Alloc *Alloc
}

func (e *MissingPredecessorError) Error() string {
	return fmt.Sprintf("%s needs step %d placed first", e.Alloc, e.Alloc.FirstStep())
}

func (e *MissingPredecessorError) Kind() EditKind { return EditMissingPredecessor }

// OrderingError reports an alloc placed before its predecessor ends or
// after its successor starts. EarliestStart and LatestEnd bound the
// permitted placement; either is zero when unconstrained.
type OrderingError struct {
	Alloc         *Alloc
	Neighbour     *Alloc
	EarliestStart int64
	LatestEnd     int64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s is out of step order with %s", e.Alloc, e.Neighbour)
}

func (e *OrderingError) Kind() EditKind { return EditOrdering }

// AbandonedSuccessorError reports a removal that would orphan the alloc
// continuing the removed steps.
type AbandonedSuccessorError struct {
	Alloc     *Alloc
	Successor *Alloc
}

func (e *AbandonedSuccessorError) Error() string {
	return fmt.Sprintf("removing %s would abandon %s", e.Alloc, e.Successor)
}

func (e *AbandonedSuccessorError) Kind() EditKind { return EditAbandonedSuccessor }

// IsEditError reports whether err is a rejected edit and returns it.
func IsEditError(err error) (EditError, bool) {
	var ee EditError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
