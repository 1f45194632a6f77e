package naturaltime

import (
	"math"
	"time"

	"github.com/devskill-org/natural-time/cache"
	"github.com/devskill-org/natural-time/ephemeris"
)

// MustachesRange holds the sunrise and sunset of the two solstices framing a
// natural year, observed at longitude 0. AverageAngle is half the average
// swing of sunrise and sunset between them, in day degrees.
type MustachesRange struct {
	WinterSunrise EventTime `json:"winter_sunrise"`
	WinterSunset  EventTime `json:"winter_sunset"`
	SummerSunrise EventTime `json:"summer_sunrise"`
	SummerSunset  EventTime `json:"summer_sunset"`
	AverageAngle  float64   `json:"average_angle"`
}

// MustachesRange returns the solstice sunrise and sunset range for nd's
// natural year at latitude. The result does not depend on nd's longitude.
func (e *Engine) MustachesRange(nd NaturalDate, latitude float64) (MustachesRange, error) {
	if err := validateDate(nd); err != nil {
		return MustachesRange{}, err
	}
	if err := validateLatitude(latitude); err != nil {
		return MustachesRange{}, err
	}
	key := cache.NewKey(kindMustaches, int64(nd.Year), latitude, 0)
	return cache.GetOrCompute(e.cache, key, func() (MustachesRange, error) {
		lat := key.Latitude()

		winter, err := e.solsticeEvents(nd.Solstice, lat)
		if err != nil {
			return MustachesRange{}, err
		}
		june, err := e.solsticeMs(time.UnixMilli(nd.Solstice).UTC().Year()+1, ephemeris.June)
		if err != nil {
			return MustachesRange{}, err
		}
		summer, err := e.solsticeEvents(june, lat)
		if err != nil {
			return MustachesRange{}, err
		}

		m := MustachesRange{
			WinterSunrise: winter.Sunrise,
			WinterSunset:  winter.Sunset,
			SummerSunrise: summer.Sunrise,
			SummerSunset:  summer.Sunset,
		}
		m.AverageAngle = averageAngle(m, lat)
		return m, nil
	})
}

// solsticeEvents returns the sun events of the natural day containing the
// solstice instant at longitude 0.
func (e *Engine) solsticeEvents(solstice int64, latitude float64) (SunEvents, error) {
	nd, err := e.NaturalDate(solstice, 0)
	if err != nil {
		return SunEvents{}, err
	}
	return e.SunEvents(nd, latitude)
}

// averageAngle measures how far sunrise and sunset move between the winter
// and summer solstice. Days without a sunrise count as 0° (polar day) or
// 180° (polar night), without a sunset as 360° or 180°. A rise or set that
// falls just outside the natural day counts as the day's start or end.
func averageAngle(m MustachesRange, latitude float64) float64 {
	wRise := riseDeg(m.WinterSunrise)
	wSet := setDeg(m.WinterSunset)
	sRise := riseDeg(m.SummerSunrise)
	sSet := setDeg(m.SummerSunset)

	avg := ((wRise - sRise) + (sSet - wSet)) / 4
	if latitude < 0 {
		avg = ((sRise - wRise) + (wSet - sSet)) / 4
	}
	return math.Min(math.Max(avg, 0), 90)
}

func riseDeg(et EventTime) float64 {
	if et.Status == EventNoCrossing {
		return 0
	}
	return et.DegOr(0, 180)
}

func setDeg(et EventTime) float64 {
	if et.Status == EventNoCrossing {
		return 360
	}
	return et.DegOr(360, 180)
}
