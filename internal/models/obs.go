/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strings"
)

// Priority is the PI-assigned priority of an observation. The order of
// the constants matters: effective-priority promotion walks upward from
// the base level and never reaches PriorityTOO.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityTOO
	priorityCount
)

// Priorities lists every level in ascending order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityTOO}
}

// PriorityCount is the number of priority levels.
const PriorityCount = int(priorityCount)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityTOO:
		return "TOO"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

// ParsePriority converts a stored name into a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities() {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// TooType marks target-of-opportunity observations.
type TooType string

const (
	TooNone     TooType = "none"
	TooStandard TooType = "standard"
	TooRapid    TooType = "rapid"
)

// GroupType distinguishes scheduling groups from purely organisational ones.
type GroupType string

const (
	GroupScheduling     GroupType = "scheduling"
	GroupOrganizational GroupType = "organizational"
)

// Group is a named collection of observations within a program.
type Group struct {
	ID   string    `yaml:"id" json:"id"`
	Name string    `yaml:"name" json:"name"`
	Type GroupType `yaml:"type" json:"type"`
}

// TimingWindow is an interval during which an observation may run,
// optionally repeating. Duration < 0 means the window never closes;
// Repeat < 0 repeats forever.
type TimingWindow struct {
	Start    int64 `yaml:"start" json:"start"`
	Duration int64 `yaml:"duration" json:"duration"`
	Repeat   int   `yaml:"repeat" json:"repeat"`
	Period   int64 `yaml:"period" json:"period"`
}

// Steps summarises the planned sequence of an observation. Times are in
// milliseconds.
type Steps struct {
	SetupTime         int64   `yaml:"setup" json:"setup"`
	ReacquisitionTime int64   `yaml:"reacquisition" json:"reacquisition"`
	Durations         []int64 `yaml:"durations" json:"durations"`
	Executed          []bool  `yaml:"executed" json:"executed"`
}

// Len returns the number of steps.
func (s Steps) Len() int { return len(s.Durations) }

// StepTime returns the duration of step i. An index outside the sequence
// is a pipeline invariant violation and panics.
func (s Steps) StepTime(i int) int64 {
	if i < 0 || i >= len(s.Durations) {
		panic(&StepIndexError{Index: i, Len: len(s.Durations)})
	}
	return s.Durations[i]
}

// IsExecuted reports whether step i has run.
func (s Steps) IsExecuted(i int) bool {
	return i >= 0 && i < len(s.Executed) && s.Executed[i]
}

// Total returns setup plus every step duration.
func (s Steps) Total() int64 {
	sum := s.SetupTime
	for _, d := range s.Durations {
		sum += d
	}
	return sum
}

// StepIndexError reports a step index outside the known sequence.
type StepIndexError struct {
	Obs   string
	Index int
	Len   int
}

func (e *StepIndexError) Error() string {
	if e.Obs != "" {
		return fmt.Sprintf("%s: step %d outside sequence of %d steps", e.Obs, e.Index, e.Len)
	}
	return fmt.Sprintf("step %d outside sequence of %d steps", e.Index, e.Len)
}

// Prog is a science or engineering program.
type Prog struct {
	ID            string `yaml:"id" json:"id"`
	Semester      string `yaml:"semester" json:"semester"`
	Band          int    `yaml:"band" json:"band"`
	Active        bool   `yaml:"active" json:"active"`
	EngOrCal      bool   `yaml:"eng_or_cal" json:"eng_or_cal"`
	Science       bool   `yaml:"science" json:"science"`
	RemainingTime int64  `yaml:"remaining_time" json:"remaining_time"`

	obs []*Obs
}

// Observations returns every observation of the program, in model order.
func (p *Prog) Observations() []*Obs {
	return append([]*Obs(nil), p.obs...)
}

// Obs is a schedulable observation.
type Obs struct {
	ID            string         `yaml:"id" json:"id"`
	Title         string         `yaml:"title" json:"title"`
	Priority      Priority       `yaml:"priority" json:"priority"`
	TooType       TooType        `yaml:"too" json:"too"`
	InProgress    bool           `yaml:"in_progress" json:"in_progress"`
	Conditions    Conds          `yaml:"conditions" json:"conditions"`
	Instruments   []Facility     `yaml:"instruments" json:"instruments"`
	Options       []Facility     `yaml:"options" json:"options"`
	CustomMask    string         `yaml:"custom_mask" json:"custom_mask"`
	LGS           bool           `yaml:"lgs" json:"lgs"`
	TimingWindows []TimingWindow `yaml:"timing_windows" json:"timing_windows"`
	RA            float64        `yaml:"ra" json:"ra"`
	Dec           float64        `yaml:"dec" json:"dec"`
	Steps         Steps          `yaml:"steps" json:"steps"`

	Prog  *Prog  `yaml:"-" json:"-"`
	Group *Group `yaml:"-" json:"-"`
}

// FirstUnexecutedStep returns the index of the first step not yet run,
// or Steps.Len() if the whole sequence has executed.
func (o *Obs) FirstUnexecutedStep() int {
	for i := 0; i < o.Steps.Len(); i++ {
		if !o.Steps.IsExecuted(i) {
			return i
		}
	}
	return o.Steps.Len()
}

// RemainingTime returns setup plus the durations of unexecuted steps.
func (o *Obs) RemainingTime() int64 {
	sum := o.Steps.SetupTime
	for i, d := range o.Steps.Durations {
		if !o.Steps.IsExecuted(i) {
			sum += d
		}
	}
	return sum
}

// IsTOO reports whether the observation is a target of opportunity.
func (o *Obs) IsTOO() bool { return o.TooType != "" && o.TooType != TooNone }

// InSchedulingGroup reports membership of a scheduling group.
func (o *Obs) InSchedulingGroup() bool {
	return o.Group != nil && o.Group.Type == GroupScheduling
}

// Band returns the program band, defaulting to 1.
func (o *Obs) Band() int {
	if o.Prog == nil || o.Prog.Band < 1 {
		return 1
	}
	return o.Prog.Band
}

func (o *Obs) String() string { return o.ID }
