// Package ephemeris provides sun and moon coordinates for an observer on the
// Earth's surface, solstice and equinox instants, and deterministic searches
// for the moments a body crosses an altitude or reaches its highest point.
//
// Positions come from github.com/sixdouglas/suncalc, season instants from
// github.com/mooncaker816/learnmeeus/v3. All angles are returned in degrees.
//
// Basic Usage:
//
//	eph := ephemeris.NewAdapter()
//	loc := ephemeris.Location{Latitude: 51.5, Longitude: 0}
//
//	pos, err := eph.Position(ephemeris.Sun, time.Now(), loc)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	start := time.Date(2024, 12, 22, 0, 0, 0, 0, time.UTC)
//	rise, err := eph.SearchCrossing(ephemeris.Sun, ephemeris.Rising, -0.833, loc, start, start.Add(24*time.Hour))
package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mooncaker816/learnmeeus/v3/solstice"
	"github.com/sixdouglas/suncalc"
)

var (
	// ErrNotConverged is returned when a search or a season computation
	// fails to produce an instant inside its window.
	ErrNotConverged = errors.New("ephemeris: search did not converge")

	// ErrInvalidPosition is returned when the underlying model yields a
	// non-finite coordinate.
	ErrInvalidPosition = errors.New("ephemeris: invalid position")
)

// Body selects the celestial body.
type Body int

const (
	Sun Body = iota
	Moon
)

func (b Body) String() string {
	switch b {
	case Sun:
		return "sun"
	case Moon:
		return "moon"
	default:
		return fmt.Sprintf("body(%d)", int(b))
	}
}

// Season selects one of the four solstice/equinox instants of a year.
type Season int

const (
	March Season = iota
	June
	September
	December
)

func (s Season) String() string {
	switch s {
	case March:
		return "march"
	case June:
		return "june"
	case September:
		return "september"
	case December:
		return "december"
	default:
		return fmt.Sprintf("season(%d)", int(s))
	}
}

// Location is an observer position in degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Position is the horizontal position of a body.
type Position struct {
	Altitude float64 // degrees above the horizon
	Azimuth  float64 // degrees clockwise from north

	// Moon only.
	Phase        float64 // 0 new, 90 first quarter, 180 full, 270 last quarter
	Illumination float64 // illuminated fraction 0..1
}

// Adapter implements the ephemeris primitives. The zero value is ready to use
// and it holds no state, so it is safe for concurrent use.
type Adapter struct{}

// NewAdapter returns a new Adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Position returns the position of body at t for loc.
func (a *Adapter) Position(body Body, t time.Time, loc Location) (Position, error) {
	var pos Position
	switch body {
	case Sun:
		p := suncalc.GetPosition(t, loc.Latitude, loc.Longitude)
		pos.Altitude = toDegrees(p.Altitude)
		pos.Azimuth = northAzimuth(p.Azimuth)
	case Moon:
		p := suncalc.GetMoonPosition(t, loc.Latitude, loc.Longitude)
		pos.Altitude = toDegrees(p.Altitude)
		pos.Azimuth = northAzimuth(p.Azimuth)
		illum := suncalc.GetMoonIllumination(t)
		pos.Phase = normalizeDegrees(illum.Phase * 360)
		pos.Illumination = illum.Fraction
	default:
		return Position{}, fmt.Errorf("ephemeris: unknown body %v", body)
	}
	if !finite(pos.Altitude) || !finite(pos.Azimuth) || !finite(pos.Phase) || !finite(pos.Illumination) {
		return Position{}, fmt.Errorf("%w: %v at %s", ErrInvalidPosition, body, t.UTC().Format(time.RFC3339))
	}
	return pos, nil
}

// Solstice returns the UTC instant of the given solstice or equinox of year.
func (a *Adapter) Solstice(year int, season Season) (time.Time, error) {
	var jde float64
	switch season {
	case March:
		jde = solstice.March(year)
	case June:
		jde = solstice.June(year)
	case September:
		jde = solstice.September(year)
	case December:
		jde = solstice.December(year)
	default:
		return time.Time{}, fmt.Errorf("ephemeris: unknown season %v", season)
	}
	if !finite(jde) {
		return time.Time{}, fmt.Errorf("%w: %v solstice of %d", ErrNotConverged, season, year)
	}
	t := jdeToTime(jde)
	if t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %v solstice of %d landed in %d", ErrNotConverged, season, year, t.Year())
	}
	return t, nil
}

// altitude returns the altitude of body in degrees.
func (a *Adapter) altitude(body Body, t time.Time, loc Location) (float64, error) {
	var rad float64
	switch body {
	case Sun:
		rad = suncalc.GetPosition(t, loc.Latitude, loc.Longitude).Altitude
	case Moon:
		rad = suncalc.GetMoonPosition(t, loc.Latitude, loc.Longitude).Altitude
	default:
		return 0, fmt.Errorf("ephemeris: unknown body %v", body)
	}
	alt := toDegrees(rad)
	if !finite(alt) {
		return 0, fmt.Errorf("%w: %v altitude at %s", ErrInvalidPosition, body, t.UTC().Format(time.RFC3339))
	}
	return alt, nil
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// northAzimuth converts suncalc's azimuth, measured from south towards west,
// into degrees clockwise from north.
func northAzimuth(rad float64) float64 {
	return normalizeDegrees(toDegrees(rad) + 180)
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
