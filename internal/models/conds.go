/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "fmt"

// Percentile values used by site-quality constraints. 100 means "any".
const (
	PercentileAny = 100
)

// Conds holds site-quality percentiles for sky background, cloud cover,
// image quality and water vapour. On an observation they are the worst
// conditions it tolerates; on a variant they are the conditions assumed
// for the night.
type Conds struct {
	SB int `yaml:"sb" json:"sb"`
	CC int `yaml:"cc" json:"cc"`
	IQ int `yaml:"iq" json:"iq"`
	WV int `yaml:"wv" json:"wv"`
}

// AnyConds tolerates every condition.
var AnyConds = Conds{SB: PercentileAny, CC: PercentileAny, IQ: PercentileAny, WV: PercentileAny}

// NominalConds is the usual starting point for a new variant.
var NominalConds = Conds{SB: PercentileAny, CC: 50, IQ: 70, WV: PercentileAny}

var validPercentiles = map[int]bool{20: true, 50: true, 70: true, 80: true, 85: true, 90: true, 100: true}

// Validate checks every percentile is a recognised bin.
func (c Conds) Validate() error {
	for name, v := range map[string]int{"sb": c.SB, "cc": c.CC, "iq": c.IQ, "wv": c.WV} {
		if !validPercentiles[v] {
			return fmt.Errorf("%w: %s=%d", ErrInvalidConditions, name, v)
		}
	}
	return nil
}

// MeetsCC reports whether night conditions actual satisfy the cloud-cover requirement.
func (c Conds) MeetsCC(actual Conds) bool { return actual.CC <= c.CC }

// MeetsIQ reports whether night conditions actual satisfy the image-quality requirement.
func (c Conds) MeetsIQ(actual Conds) bool { return actual.IQ <= c.IQ }

// MeetsWV reports whether night conditions actual satisfy the water-vapour requirement.
func (c Conds) MeetsWV(actual Conds) bool { return actual.WV <= c.WV }

// MeetsEasily reports whether the night is strictly better than required
// in both image quality and cloud cover.
func (c Conds) MeetsEasily(actual Conds) bool {
	return actual.IQ < c.IQ && actual.CC < c.CC
}

func (c Conds) String() string {
	return fmt.Sprintf("SB%s/CC%s/IQ%s/WV%s", pct(c.SB), pct(c.CC), pct(c.IQ), pct(c.WV))
}

func pct(v int) string {
	if v == PercentileAny {
		return "Any"
	}
	return fmt.Sprint(v)
}

// ApproximateAngle is a wind direction with a tolerance, both in degrees.
type ApproximateAngle struct {
	Angle float64 `yaml:"angle" json:"angle"`
	Range float64 `yaml:"range" json:"range"`
}

// Contains reports whether a bearing lies within the tolerance band.
func (a ApproximateAngle) Contains(bearing float64) bool {
	d := bearing - a.Angle
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	if d < 0 {
		d = -d
	}
	return d <= a.Range
}
