/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package astro

import (
	"math"
	"testing"
	"time"

	"github.com/friendsincode/queueplanner/internal/models"
)

func ms(t time.Time) int64 { return t.UnixMilli() }

func TestAirmass(t *testing.T) {
	tests := []struct {
		alt  float64
		want float64
	}{
		{90, 1},
		{30, 1.9945},
	}
	for _, tt := range tests {
		if got := Airmass(tt.alt); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("Airmass(%g) = %g, want %g", tt.alt, got, tt.want)
		}
	}
	if !math.IsNaN(Airmass(-1)) {
		t.Error("airmass below the horizon should be NaN")
	}
}

func TestSeparation(t *testing.T) {
	a := Equatorial{RA: 10, Dec: 20}
	if got := Separation(a, a); got > 1e-6 {
		t.Fatalf("self separation = %g", got)
	}
	if got := Separation(Equatorial{Dec: 90}, Equatorial{Dec: -90}); math.Abs(got-180) > 1e-6 {
		t.Fatalf("pole separation = %g", got)
	}
}

func TestSunDeclinationAtSolstices(t *testing.T) {
	june := Sun(ms(time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)))
	if math.Abs(june.Dec-23.44) > 0.5 {
		t.Fatalf("june declination = %g", june.Dec)
	}
	dec := Sun(ms(time.Date(2026, 12, 21, 12, 0, 0, 0, time.UTC)))
	if math.Abs(dec.Dec+23.44) > 0.5 {
		t.Fatalf("december declination = %g", dec.Dec)
	}
}

func TestLSTRange(t *testing.T) {
	for h := 0; h < 48; h += 5 {
		v := LST(ms(time.Date(2026, 3, 1, h%24, 0, 0, 0, time.UTC)), models.SiteNorth.Location().Longitude)
		if v < 0 || v >= 360 {
			t.Fatalf("LST = %g", v)
		}
	}
}

func TestNightFor(t *testing.T) {
	for _, site := range []models.Site{models.SiteNorth, models.SiteSouth} {
		t.Run(string(site), func(t *testing.T) {
			tw := NewTwilight(site)
			if tw.Site() != site {
				t.Fatalf("site = %s", tw.Site())
			}
			ref := ms(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
			civil := tw.NightFor(Civil, ref)
			nautical := tw.NightFor(Nautical, ref)

			if civil.Start >= civil.End {
				t.Fatalf("civil night %d..%d", civil.Start, civil.End)
			}
			if hours := float64(civil.End-civil.Start) / msPerHour; hours < 8 || hours > 14 {
				t.Fatalf("civil night lasts %.1f h", hours)
			}
			if !(civil.Start < nautical.Start && nautical.End < civil.End) {
				t.Fatalf("nautical night %v not inside civil night %v", nautical, civil)
			}
			if civil.Start%resolution != 0 || civil.End%resolution != 0 {
				t.Fatalf("boundaries not rounded: %v", civil)
			}
			mid := civil.Start + (civil.End-civil.Start)/2
			if alt := SunAltitude(site.Location(), mid); alt > -12 {
				t.Fatalf("sun altitude at midnight = %g", alt)
			}
			if again := tw.NightFor(Civil, civil.Start); again != civil {
				t.Fatalf("night for its own start = %v, want %v", again, civil)
			}
			if iv := civil.Interval(); iv.Start() != civil.Start || iv.End() != civil.End {
				t.Fatalf("interval = %v", iv)
			}
		})
	}
}
