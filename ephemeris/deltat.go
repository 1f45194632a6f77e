package ephemeris

import (
	"time"

	"github.com/mooncaker816/learnmeeus/v3/deltat"
	"github.com/mooncaker816/learnmeeus/v3/julian"
)

const secondsPerDay = 86400

// jdeToTime converts a Julian Ephemeris Day (dynamical time) to UTC,
// rounded to the millisecond.
func jdeToTime(jde float64) time.Time {
	jd := jde - deltat.Interp10A(jde).Sec()/secondsPerDay
	return julian.JDToTime(jd).UTC().Round(time.Millisecond)
}
