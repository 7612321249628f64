/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"math/bits"
	"strings"
)

// Flag is a diagnostic reason an observation cannot, or should not, be
// scheduled in a variant as it stands.
type Flag uint8

const (
	FlagInactive Flag = iota
	FlagIQUnderQualified
	FlagWVUnderQualified
	FlagCCUnderQualified
	FlagOverQualified
	FlagInstrumentUnavailable
	FlagConfigUnavailable
	FlagMaskInCabinet
	FlagMaskUnavailable
	FlagLGSUnavailable
	FlagBlocked
	FlagElevationConstrained
	FlagScheduled
	FlagInProgress
	FlagBackgroundConstrained
	FlagMultiConstrained
	FlagSetsEarly
	FlagPartiallyBlocked
	FlagSetupBlocked
	FlagOverAllocated
	FlagTimingConstrained
	FlagSchedGroup
	FlagTimeConstrained
	flagCount
)

var flagNames = [flagCount]string{
	"INACTIVE",
	"IQ_UQUAL",
	"WV_UQUAL",
	"CC_UQUAL",
	"OVER_QUALIFIED",
	"INSTRUMENT_UNAVAILABLE",
	"CONFIG_UNAVAILABLE",
	"MASK_IN_CABINET",
	"MASK_UNAVAILABLE",
	"LGS_UNAVAILABLE",
	"BLOCKED",
	"ELEVATION_CNS",
	"SCHEDULED",
	"IN_PROGRESS",
	"BACKGROUND_CNS",
	"MULTI_CNS",
	"SETS_EARLY",
	"PARTIALLY_BLOCKED",
	"SETUP_BLOCKED",
	"OVER_ALLOCATED",
	"TIMING_CNS",
	"SCHED_GROUP",
	"TIME_CONSTRAINED",
}

func (f Flag) String() string {
	if f < flagCount {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// ParseFlag converts a flag name.
func ParseFlag(s string) (Flag, error) {
	for i, n := range flagNames {
		if n == s {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", s)
}

// FlagSet is a set of flags.
type FlagSet uint32

// Flags builds a set.
func Flags(fs ...Flag) FlagSet {
	var s FlagSet
	for _, f := range fs {
		s = s.With(f)
	}
	return s
}

// AutomaticZero holds the flags that force a score of zero.
var AutomaticZero = Flags(
	FlagConfigUnavailable,
	FlagMaskInCabinet,
	FlagMaskUnavailable,
	FlagLGSUnavailable,
	FlagInstrumentUnavailable,
	FlagElevationConstrained,
	FlagBackgroundConstrained,
	FlagTimingConstrained,
	FlagCCUnderQualified,
	FlagWVUnderQualified,
	FlagIQUnderQualified,
	FlagMultiConstrained,
)

// Has reports membership.
func (s FlagSet) Has(f Flag) bool { return s&(1<<f) != 0 }

// With returns s plus f.
func (s FlagSet) With(f Flag) FlagSet { return s | 1<<f }

// Union returns the flags in either set.
func (s FlagSet) Union(o FlagSet) FlagSet { return s | o }

// Any reports whether the sets share a flag.
func (s FlagSet) Any(o FlagSet) bool { return s&o != 0 }

// Len returns the number of flags.
func (s FlagSet) Len() int { return bits.OnesCount32(uint32(s)) }

// Flags lists the members in declaration order.
func (s FlagSet) Flags() []Flag {
	var out []Flag
	for f := Flag(0); f < flagCount; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Names lists member names in declaration order.
func (s FlagSet) Names() []string {
	fs := s.Flags()
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

func (s FlagSet) String() string {
	return "[" + strings.Join(s.Names(), " ") + "]"
}
