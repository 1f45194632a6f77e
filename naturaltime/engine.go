package naturaltime

import (
	"time"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/ephemeris"
)

// Ephemeris is the set of astronomical primitives the engine builds on.
// *ephemeris.Adapter implements it.
type Ephemeris interface {
	Position(body ephemeris.Body, t time.Time, loc ephemeris.Location) (ephemeris.Position, error)
	SearchCrossing(body ephemeris.Body, dir ephemeris.Direction, altitude float64, loc ephemeris.Location, start, end time.Time) (ephemeris.Crossing, error)
	SearchMaxAltitude(body ephemeris.Body, loc ephemeris.Location, start, end time.Time) (ephemeris.Extremum, error)
	Solstice(year int, season ephemeris.Season) (time.Time, error)
}

// Cache kinds.
const (
	kindDecemberSolstice cache.Kind = "december-solstice"
	kindJuneSolstice     cache.Kind = "june-solstice"
	kindSunEvents        cache.Kind = "sun-events"
	kindSunTransit       cache.Kind = "sun-transit"
	kindMoonEvents       cache.Kind = "moon-events"
	kindMoonTransit      cache.Kind = "moon-transit"
	kindMustaches        cache.Kind = "mustaches"
)

// Engine derives natural dates and their events. It is safe for concurrent
// use.
type Engine struct {
	eph   Ephemeris
	cache *cache.Cache
}

// NewEngine creates an engine. A nil eph uses ephemeris.NewAdapter and a nil
// c creates a private cache.
func NewEngine(eph Ephemeris, c *cache.Cache) *Engine {
	if eph == nil {
		eph = ephemeris.NewAdapter()
	}
	if c == nil {
		c = cache.New()
	}
	return &Engine{eph: eph, cache: c}
}

// ResetCaches drops every memoized search result.
func (e *Engine) ResetCaches() {
	e.cache.Reset()
}

// CacheStats returns the engine cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}
