/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package astro provides low-precision positional astronomy: sun and
// moon positions, target horizon coordinates and twilight-bounded nights.
// Accuracy is of the order of an arcminute for the sun and a fraction of
// a degree for the moon, which is ample for night planning.
package astro

import (
	"math"

	"github.com/friendsincode/queueplanner/internal/models"
)

const (
	deg = math.Pi / 180
	rad = 180 / math.Pi

	msPerDay = 86400000
	// j2000 is 2000-01-01T12:00:00Z in milliseconds since epoch.
	j2000 = 946728000000
)

// Equatorial coordinates in degrees.
type Equatorial struct {
	RA  float64
	Dec float64
}

// Horizon holds the topocentric position of a target at one instant.
type Horizon struct {
	Altitude         float64
	Azimuth          float64
	HourAngle        float64 // hours, in (-12, 12]
	ParallacticAngle float64 // degrees, in (-180, 180]
	Airmass          float64 // NaN below the horizon
}

// daysSinceJ2000 converts epoch milliseconds to fractional days from J2000.
func daysSinceJ2000(t int64) float64 {
	return float64(t-j2000) / msPerDay
}

// Sun returns the apparent equatorial position of the sun.
func Sun(t int64) Equatorial {
	n := daysSinceJ2000(t)
	l := normDeg(280.460 + 0.9856474*n)
	g := normDeg(357.528+0.9856003*n) * deg
	lambda := (l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg
	eps := (23.439 - 0.0000004*n) * deg
	return Equatorial{
		RA:  normDeg(math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda)) * rad),
		Dec: math.Asin(math.Sin(eps)*math.Sin(lambda)) * rad,
	}
}

// Moon returns the geocentric equatorial position of the moon.
func Moon(t int64) Equatorial {
	n := daysSinceJ2000(t)
	lp := 218.316 + 13.176396*n
	m := (134.963 + 13.064993*n) * deg
	f := (93.272 + 13.229350*n) * deg
	lambda := (lp + 6.289*math.Sin(m)) * deg
	beta := 5.128 * math.Sin(f) * deg
	eps := (23.439 - 0.0000004*n) * deg

	ra := math.Atan2(math.Sin(lambda)*math.Cos(eps)-math.Tan(beta)*math.Sin(eps), math.Cos(lambda))
	dec := math.Asin(math.Sin(beta)*math.Cos(eps) + math.Cos(beta)*math.Sin(eps)*math.Sin(lambda))
	return Equatorial{RA: normDeg(ra * rad), Dec: dec * rad}
}

// LST returns local sidereal time in degrees.
func LST(t int64, longitude float64) float64 {
	d := daysSinceJ2000(t)
	gmst := 280.46061837 + 360.98564736629*d
	return normDeg(gmst + longitude)
}

// ToHorizon converts equatorial coordinates to the local horizon frame.
func ToHorizon(eq Equatorial, loc models.Location, t int64) Horizon {
	ha := normSigned(LST(t, loc.Longitude) - eq.RA)
	h := ha * deg
	phi := loc.Latitude * deg
	dec := eq.Dec * deg

	sinAlt := math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(h)
	alt := math.Asin(clamp(sinAlt, -1, 1))

	az := math.Atan2(math.Sin(h), math.Cos(h)*math.Sin(phi)-math.Tan(dec)*math.Cos(phi))*rad + 180
	pa := math.Atan2(math.Sin(h), math.Tan(phi)*math.Cos(dec)-math.Sin(dec)*math.Cos(h)) * rad

	return Horizon{
		Altitude:         alt * rad,
		Azimuth:          normDeg(az),
		HourAngle:        ha / 15,
		ParallacticAngle: normSigned(pa),
		Airmass:          Airmass(alt * rad),
	}
}

// Airmass returns the Hardie airmass for an altitude in degrees, or NaN
// when the target is below the horizon.
func Airmass(altitude float64) float64 {
	if altitude <= 0 {
		return math.NaN()
	}
	secz := 1 / math.Sin(altitude*deg)
	x := secz - 1
	return secz - 0.0018167*x - 0.002875*x*x - 0.0008083*x*x*x
}

// Separation returns the angular distance between two positions in degrees.
func Separation(a, b Equatorial) float64 {
	d1, d2 := a.Dec*deg, b.Dec*deg
	c := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos((a.RA-b.RA)*deg)
	return math.Acos(clamp(c, -1, 1)) * rad
}

// SunAltitude returns the sun's altitude at site in degrees.
func SunAltitude(loc models.Location, t int64) float64 {
	return ToHorizon(Sun(t), loc, t).Altitude
}

// MoonAltitude returns the moon's altitude at site in degrees.
func MoonAltitude(loc models.Location, t int64) float64 {
	return ToHorizon(Moon(t), loc, t).Altitude
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

func normSigned(x float64) float64 {
	x = normDeg(x)
	if x > 180 {
		x -= 360
	}
	return x
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
