package naturaltime

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/ephemeris"
)

// Altitude thresholds in degrees.
const (
	// SunriseAltitude accounts for refraction and the solar semi-diameter.
	SunriseAltitude = -0.833
	// NightAltitude bounds the night.
	NightAltitude = -12.0
	// GoldenHourAltitude bounds the golden hours.
	GoldenHourAltitude = 6.0
	// MoonriseAltitude is the horizon used for moonrise and moonset.
	MoonriseAltitude = 0.133
)

// EventStatus tells whether an event happens on a natural day.
type EventStatus int

const (
	EventFound EventStatus = iota
	EventNoCrossing
	EventAlwaysAbove
	EventAlwaysBelow
)

var eventStatusNames = map[EventStatus]string{
	EventFound:       "found",
	EventNoCrossing:  "no_crossing",
	EventAlwaysAbove: "always_above",
	EventAlwaysBelow: "always_below",
}

func (s EventStatus) String() string {
	if name, ok := eventStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s EventStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EventStatus) UnmarshalText(text []byte) error {
	for status, name := range eventStatusNames {
		if name == strings.ToLower(string(text)) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown event status %q", text)
}

// EventTime is an event expressed in degrees of the natural day. Deg is NaN
// unless Status is EventFound.
type EventTime struct {
	Deg    float64     `json:"deg"`
	Status EventStatus `json:"status"`
}

// Found reports whether the event happens on the day.
func (t EventTime) Found() bool {
	return t.Status == EventFound
}

// DegOr returns Deg, or above when the body never leaves the threshold's
// upper side and below when it never reaches it. EventNoCrossing yields NaN.
func (t EventTime) DegOr(above, below float64) float64 {
	switch t.Status {
	case EventFound:
		return t.Deg
	case EventAlwaysAbove:
		return above
	case EventAlwaysBelow:
		return below
	default:
		return math.NaN()
	}
}

type eventTimeJSON struct {
	Deg    *float64    `json:"deg"`
	Status EventStatus `json:"status"`
}

// MarshalJSON encodes a missing Deg as null since JSON has no NaN.
func (t EventTime) MarshalJSON() ([]byte, error) {
	out := eventTimeJSON{Status: t.Status}
	if t.Found() && !math.IsNaN(t.Deg) {
		deg := t.Deg
		out.Deg = &deg
	}
	return json.Marshal(out)
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	var in eventTimeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Status = in.Status
	t.Deg = math.NaN()
	if in.Deg != nil {
		t.Deg = *in.Deg
	}
	return nil
}

func notFound(status EventStatus) EventTime {
	return EventTime{Deg: math.NaN(), Status: status}
}

// SunEvents lists the solar threshold crossings of a natural day.
type SunEvents struct {
	Sunrise       EventTime `json:"sunrise"`
	Sunset        EventTime `json:"sunset"`
	NightStart    EventTime `json:"night_start"`
	NightEnd      EventTime `json:"night_end"`
	MorningGolden EventTime `json:"morning_golden_hour"`
	EveningGolden EventTime `json:"evening_golden_hour"`
}

// SunPosition is the sun at the date's instant plus the day's culmination.
type SunPosition struct {
	Altitude        float64   `json:"altitude"`
	Azimuth         float64   `json:"azimuth"`
	HighestAltitude float64   `json:"highest_altitude"`
	Transit         EventTime `json:"transit"`
}

// MoonPosition is the moon at the date's instant. PhaseDeg is 0 at new moon
// and 180 at full moon.
type MoonPosition struct {
	Altitude        float64 `json:"altitude"`
	Azimuth         float64 `json:"azimuth"`
	PhaseDeg        float64 `json:"phase"`
	Illumination    float64 `json:"illumination"`
	HighestAltitude float64 `json:"highest_altitude"`
}

// MoonEvents lists the lunar horizon crossings of a natural day.
type MoonEvents struct {
	Moonrise        EventTime `json:"moonrise"`
	Moonset         EventTime `json:"moonset"`
	HighestAltitude float64   `json:"highest_altitude"`
	Transit         EventTime `json:"transit"`
}

// culmination is the highest point of a body during a natural day.
type culmination struct {
	Altitude float64
	Transit  EventTime
}

// dayKey validates the inputs of a per-day query and builds its cache key.
func dayKey(kind cache.Kind, nd NaturalDate, latitude float64) (cache.Key, error) {
	if err := validateDate(nd); err != nil {
		return cache.Key{}, err
	}
	if err := validateLatitude(latitude); err != nil {
		return cache.Key{}, err
	}
	return cache.NewKey(kind, nd.Nadir, latitude, nd.Longitude), nil
}

func keyLocation(key cache.Key) ephemeris.Location {
	return ephemeris.Location{Latitude: key.Latitude(), Longitude: key.Longitude()}
}

// SunEvents returns sunrise, sunset, night and golden-hour bounds of nd's
// natural day at latitude.
func (e *Engine) SunEvents(nd NaturalDate, latitude float64) (SunEvents, error) {
	key, err := dayKey(kindSunEvents, nd, latitude)
	if err != nil {
		return SunEvents{}, err
	}
	return cache.GetOrCompute(e.cache, key, func() (SunEvents, error) {
		var ev SunEvents
		searches := []struct {
			dst      *EventTime
			dir      ephemeris.Direction
			altitude float64
		}{
			{&ev.Sunrise, ephemeris.Rising, SunriseAltitude},
			{&ev.Sunset, ephemeris.Setting, SunriseAltitude},
			{&ev.NightEnd, ephemeris.Rising, NightAltitude},
			{&ev.NightStart, ephemeris.Setting, NightAltitude},
			{&ev.MorningGolden, ephemeris.Rising, GoldenHourAltitude},
			{&ev.EveningGolden, ephemeris.Setting, GoldenHourAltitude},
		}
		loc := keyLocation(key)
		for _, s := range searches {
			t, err := e.crossing(nd, ephemeris.Sun, s.dir, s.altitude, loc)
			if err != nil {
				return SunEvents{}, err
			}
			*s.dst = t
		}
		return ev, nil
	})
}

// SunPosition returns the sun's position at nd.UnixTime and its highest
// altitude during the natural day.
func (e *Engine) SunPosition(nd NaturalDate, latitude float64) (SunPosition, error) {
	key, err := dayKey(kindSunTransit, nd, latitude)
	if err != nil {
		return SunPosition{}, err
	}
	pos, err := e.position(ephemeris.Sun, nd, key)
	if err != nil {
		return SunPosition{}, err
	}
	c, err := e.culmination(ephemeris.Sun, nd, key)
	if err != nil {
		return SunPosition{}, err
	}
	return SunPosition{
		Altitude:        pos.Altitude,
		Azimuth:         pos.Azimuth,
		HighestAltitude: c.Altitude,
		Transit:         c.Transit,
	}, nil
}

// MoonPosition returns the moon's position, phase and illumination at
// nd.UnixTime and its highest altitude during the natural day.
func (e *Engine) MoonPosition(nd NaturalDate, latitude float64) (MoonPosition, error) {
	key, err := dayKey(kindMoonTransit, nd, latitude)
	if err != nil {
		return MoonPosition{}, err
	}
	pos, err := e.position(ephemeris.Moon, nd, key)
	if err != nil {
		return MoonPosition{}, err
	}
	c, err := e.culmination(ephemeris.Moon, nd, key)
	if err != nil {
		return MoonPosition{}, err
	}
	return MoonPosition{
		Altitude:        pos.Altitude,
		Azimuth:         pos.Azimuth,
		PhaseDeg:        pos.Phase,
		Illumination:    pos.Illumination,
		HighestAltitude: c.Altitude,
	}, nil
}

// MoonEvents returns moonrise, moonset and the moon's culmination during
// nd's natural day.
func (e *Engine) MoonEvents(nd NaturalDate, latitude float64) (MoonEvents, error) {
	key, err := dayKey(kindMoonEvents, nd, latitude)
	if err != nil {
		return MoonEvents{}, err
	}
	return cache.GetOrCompute(e.cache, key, func() (MoonEvents, error) {
		loc := keyLocation(key)
		rise, err := e.crossing(nd, ephemeris.Moon, ephemeris.Rising, MoonriseAltitude, loc)
		if err != nil {
			return MoonEvents{}, err
		}
		set, err := e.crossing(nd, ephemeris.Moon, ephemeris.Setting, MoonriseAltitude, loc)
		if err != nil {
			return MoonEvents{}, err
		}
		transitKey := key
		transitKey.Kind = kindMoonTransit
		c, err := e.culmination(ephemeris.Moon, nd, transitKey)
		if err != nil {
			return MoonEvents{}, err
		}
		return MoonEvents{
			Moonrise:        rise,
			Moonset:         set,
			HighestAltitude: c.Altitude,
			Transit:         c.Transit,
		}, nil
	})
}

func (e *Engine) position(body ephemeris.Body, nd NaturalDate, key cache.Key) (ephemeris.Position, error) {
	pos, err := e.eph.Position(body, nd.Instant(), keyLocation(key))
	if err != nil {
		return ephemeris.Position{}, &EphemerisError{Operation: fmt.Sprintf("%v position", body), Err: err}
	}
	return pos, nil
}

// culmination is cached under key, whose kind must be the body's transit
// kind.
func (e *Engine) culmination(body ephemeris.Body, nd NaturalDate, key cache.Key) (culmination, error) {
	return cache.GetOrCompute(e.cache, key, func() (culmination, error) {
		start, end := nd.window()
		ext, err := e.eph.SearchMaxAltitude(body, keyLocation(key), start, end)
		if err != nil {
			return culmination{}, &EphemerisError{Operation: fmt.Sprintf("%v highest altitude", body), Err: err}
		}
		transit := EventTime{Deg: nd.TimeOfEvent(ext.Time.UnixMilli()), Status: EventFound}
		if math.IsNaN(transit.Deg) {
			transit.Status = EventNoCrossing
		}
		return culmination{Altitude: ext.Altitude, Transit: transit}, nil
	})
}

func (e *Engine) crossing(nd NaturalDate, body ephemeris.Body, dir ephemeris.Direction, altitude float64, loc ephemeris.Location) (EventTime, error) {
	start, end := nd.window()
	c, err := e.eph.SearchCrossing(body, dir, altitude, loc, start, end)
	if err != nil {
		return EventTime{}, &EphemerisError{Operation: fmt.Sprintf("%v %v through %.3f°", body, dir, altitude), Err: err}
	}
	switch c.Status {
	case ephemeris.Found:
		deg := nd.TimeOfEvent(c.Time.UnixMilli())
		if math.IsNaN(deg) {
			return EventTime{}, &EphemerisError{
				Operation: fmt.Sprintf("%v %v through %.3f°", body, dir, altitude),
				Err:       fmt.Errorf("%w: crossing at %s outside the natural day", ephemeris.ErrInvalidPosition, c.Time),
			}
		}
		return EventTime{Deg: deg, Status: EventFound}, nil
	case ephemeris.AlwaysAbove:
		return notFound(EventAlwaysAbove), nil
	case ephemeris.AlwaysBelow:
		return notFound(EventAlwaysBelow), nil
	default:
		return notFound(EventNoCrossing), nil
	}
}
