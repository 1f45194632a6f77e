package naturaltime

import (
	"fmt"
	"math"
	"time"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/ephemeris"
)

// yearBoundary is a solar year measured at longitude 180, where local solar
// midnight falls at 12:00 UTC.
type yearBoundary struct {
	solstice  int64 // December solstice, ms UTC
	start     int64 // first 12:00 UTC after solstice
	nextStart int64
}

// localYear is a yearBoundary shifted to the observer's local solar midnight.
type localYear struct {
	solstice int64
	start    int64
	next     int64
}

func (y localYear) duration() int {
	return int((y.next - y.start) / msPerDay)
}

// solsticeMs returns the cached solstice instant of year in ms UTC.
func (e *Engine) solsticeMs(year int, season ephemeris.Season) (int64, error) {
	kind := kindDecemberSolstice
	if season == ephemeris.June {
		kind = kindJuneSolstice
	}
	return cache.GetOrCompute(e.cache, cache.NewKey(kind, int64(year), 0, 0), func() (int64, error) {
		t, err := e.eph.Solstice(year, season)
		if err != nil {
			return 0, &EphemerisError{Operation: fmt.Sprintf("%v solstice of %d", season, year), Err: err}
		}
		return t.UnixMilli(), nil
	})
}

func (e *Engine) yearBoundary(year int) (yearBoundary, error) {
	solstice, err := e.solsticeMs(year, ephemeris.December)
	if err != nil {
		return yearBoundary{}, err
	}
	next, err := e.solsticeMs(year+1, ephemeris.December)
	if err != nil {
		return yearBoundary{}, err
	}
	return yearBoundary{
		solstice:  solstice,
		start:     anchorNoon(solstice),
		nextStart: anchorNoon(next),
	}, nil
}

// locateYear returns the solar year whose half-open interval [start, next)
// at longitude contains unixMs.
func (e *Engine) locateYear(unixMs int64, longitude float64) (localYear, error) {
	utcYear := time.UnixMilli(unixMs).UTC().Year()
	for _, year := range []int{utcYear - 1, utcYear} {
		b, err := e.yearBoundary(year)
		if err != nil {
			return localYear{}, err
		}
		ly := localYear{
			solstice: b.solstice,
			start:    localize(b.start, longitude),
			next:     localize(b.nextStart, longitude),
		}
		if unixMs < ly.next {
			if unixMs < ly.start {
				break
			}
			return ly, nil
		}
	}
	return localYear{}, &EphemerisError{
		Operation: "locate solar year",
		Err:       fmt.Errorf("%w: no solar year contains %d at longitude %v", ephemeris.ErrNotConverged, unixMs, longitude),
	}
}

// anchorNoon returns the first 12:00 UTC strictly after ms: the solstice day
// at noon, or the following day when the solstice falls at or after noon.
func anchorNoon(ms int64) int64 {
	const halfDay = msPerDay / 2
	return floorDiv(ms-halfDay, msPerDay)*msPerDay + halfDay + msPerDay
}

// localize shifts an instant that is midnight at longitude 180 to local solar
// midnight at longitude.
func localize(ms int64, longitude float64) int64 {
	return ms + int64(math.Round((180-longitude)*float64(msPerDay)/360))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
