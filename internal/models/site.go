/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"strings"
)

// Site identifies an observatory.
type Site string

const (
	SiteNorth Site = "GN"
	SiteSouth Site = "GS"
)

// Location is a geodetic position in degrees and metres.
type Location struct {
	Latitude  float64
	Longitude float64 // east positive
	Altitude  float64
}

var siteLocations = map[Site]Location{
	SiteNorth: {Latitude: 19.8238, Longitude: -155.469, Altitude: 4213},
	SiteSouth: {Latitude: -30.2407, Longitude: -70.7367, Altitude: 2722},
}

var siteNames = map[Site]string{
	SiteNorth: "Gemini North",
	SiteSouth: "Gemini South",
}

// ParseSite accepts the short mnemonic or the display name.
func ParseSite(s string) (Site, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GN", "GEMINI NORTH", "NORTH":
		return SiteNorth, nil
	case "GS", "GEMINI SOUTH", "SOUTH":
		return SiteSouth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSite, s)
}

// Location returns the geodetic position of the site.
func (s Site) Location() Location { return siteLocations[s] }

// DisplayName returns the long site name.
func (s Site) DisplayName() string {
	if n, ok := siteNames[s]; ok {
		return n
	}
	return string(s)
}

// Valid reports whether s is a known site.
func (s Site) Valid() bool {
	_, ok := siteLocations[s]
	return ok
}
