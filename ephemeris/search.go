package ephemeris

import (
	"fmt"
	"math"
	"time"
)

const (
	// scanStep is the sampling grid used to bracket crossings and maxima.
	// Altitude functions of the sun and moon are smooth enough that two
	// crossings of the same threshold never fall inside one step except
	// when the body grazes the threshold.
	scanStep = 10 * time.Minute

	// maxBisections bounds the crossing refinement. A 10 minute bracket
	// reaches the 1 ms resolution after 20 steps.
	maxBisections = 64

	// maxGoldenSteps bounds the maximum refinement; it stops earlier once
	// the bracket is narrower than extremumTolerance.
	maxGoldenSteps    = 64
	extremumTolerance = time.Second
)

// invPhi is 1/φ, the golden-section ratio.
var invPhi = (math.Sqrt(5) - 1) / 2

// Direction is the sense in which a body crosses an altitude.
type Direction int

const (
	Rising Direction = iota
	Setting
)

func (d Direction) String() string {
	if d == Rising {
		return "rising"
	}
	return "setting"
}

// Status describes the outcome of a crossing search.
type Status int

const (
	// Found means the crossing exists in the window.
	Found Status = iota
	// NoCrossing means the body crossed the altitude but never in the
	// requested direction.
	NoCrossing
	// AlwaysAbove means the body stayed at or above the altitude for the
	// whole window (polar day for that threshold).
	AlwaysAbove
	// AlwaysBelow means the body stayed below the altitude for the whole
	// window (polar night for that threshold).
	AlwaysBelow
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NoCrossing:
		return "no_crossing"
	case AlwaysAbove:
		return "always_above"
	case AlwaysBelow:
		return "always_below"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Crossing is the result of SearchCrossing. Time is only meaningful when
// Status is Found.
type Crossing struct {
	Time   time.Time
	Status Status
}

// Extremum is the result of SearchMaxAltitude.
type Extremum struct {
	Time     time.Time
	Altitude float64
}

// SearchCrossing returns the first instant in [start, end] at which body
// crosses altitude (degrees) in direction dir as seen from loc. The result
// has millisecond resolution and is bit-reproducible for the same inputs.
// A window without a matching crossing is not an error; it is reported
// through Crossing.Status.
func (a *Adapter) SearchCrossing(body Body, dir Direction, altitude float64, loc Location, start, end time.Time) (Crossing, error) {
	lo, hi := start.UnixMilli(), end.UnixMilli()
	if hi <= lo {
		return Crossing{}, fmt.Errorf("%w: empty window %s..%s", ErrNotConverged,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}

	f := func(ms int64) (float64, error) {
		alt, err := a.altitude(body, time.UnixMilli(ms), loc)
		return alt - altitude, err
	}

	prevT := lo
	prev, err := f(prevT)
	if err != nil {
		return Crossing{}, err
	}
	sawAbove, sawBelow := prev >= 0, prev < 0

	step := scanStep.Milliseconds()
	for prevT < hi {
		t := min(prevT+step, hi)
		cur, err := f(t)
		if err != nil {
			return Crossing{}, err
		}
		if cur >= 0 {
			sawAbove = true
		} else {
			sawBelow = true
		}
		if crosses(dir, prev, cur) {
			ms, err := bisect(f, dir, prevT, t)
			if err != nil {
				return Crossing{}, err
			}
			return Crossing{Time: time.UnixMilli(ms).UTC(), Status: Found}, nil
		}
		prevT, prev = t, cur
	}

	switch {
	case !sawBelow:
		return Crossing{Status: AlwaysAbove}, nil
	case !sawAbove:
		return Crossing{Status: AlwaysBelow}, nil
	default:
		return Crossing{Status: NoCrossing}, nil
	}
}

// SearchMaxAltitude returns the instant and value of the highest altitude
// reached by body in [start, end] as seen from loc.
func (a *Adapter) SearchMaxAltitude(body Body, loc Location, start, end time.Time) (Extremum, error) {
	lo, hi := start.UnixMilli(), end.UnixMilli()
	if hi <= lo {
		return Extremum{}, fmt.Errorf("%w: empty window %s..%s", ErrNotConverged,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}

	f := func(ms int64) (float64, error) {
		return a.altitude(body, time.UnixMilli(ms), loc)
	}

	step := scanStep.Milliseconds()
	bestT := lo
	best, err := f(bestT)
	if err != nil {
		return Extremum{}, err
	}
	for t := lo; t < hi; {
		t = min(t+step, hi)
		v, err := f(t)
		if err != nil {
			return Extremum{}, err
		}
		if v > best {
			best, bestT = v, t
		}
	}

	// Golden-section search on the two grid cells around the best sample.
	x0 := float64(max(bestT-step, lo))
	x3 := float64(min(bestT+step, hi))
	x1 := x3 - invPhi*(x3-x0)
	x2 := x0 + invPhi*(x3-x0)
	f1, err := f(int64(math.Round(x1)))
	if err != nil {
		return Extremum{}, err
	}
	f2, err := f(int64(math.Round(x2)))
	if err != nil {
		return Extremum{}, err
	}
	tol := float64(extremumTolerance.Milliseconds())
	for i := 0; i < maxGoldenSteps && x3-x0 > tol; i++ {
		if f1 >= f2 {
			x3, x2, f2 = x2, x1, f1
			x1 = x3 - invPhi*(x3-x0)
			if f1, err = f(int64(math.Round(x1))); err != nil {
				return Extremum{}, err
			}
		} else {
			x0, x1, f1 = x1, x2, f2
			x2 = x0 + invPhi*(x3-x0)
			if f2, err = f(int64(math.Round(x2))); err != nil {
				return Extremum{}, err
			}
		}
	}

	mid := int64(math.Round((x0 + x3) / 2))
	v, err := f(mid)
	if err != nil {
		return Extremum{}, err
	}
	if v > best {
		best, bestT = v, mid
	}
	return Extremum{Time: time.UnixMilli(bestT).UTC(), Altitude: best}, nil
}

// crosses reports whether the sign change between two consecutive samples of
// altitude-minus-threshold is a crossing in direction dir.
func crosses(dir Direction, prev, cur float64) bool {
	if dir == Rising {
		return prev < 0 && cur >= 0
	}
	return prev >= 0 && cur < 0
}

// bisect narrows a bracketed crossing to 1 ms and returns the first
// millisecond on the far side of the threshold.
func bisect(f func(int64) (float64, error), dir Direction, lo, hi int64) (int64, error) {
	for i := 0; i < maxBisections && hi-lo > 1; i++ {
		mid := lo + (hi-lo)/2
		v, err := f(mid)
		if err != nil {
			return 0, err
		}
		if (dir == Rising && v >= 0) || (dir == Setting && v < 0) {
			hi = mid
		} else {
			lo = mid
		}
	}
	if hi-lo > 1 {
		return 0, fmt.Errorf("%w: bisection stopped with %d ms bracket", ErrNotConverged, hi-lo)
	}
	return hi, nil
}
