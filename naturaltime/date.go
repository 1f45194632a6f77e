package naturaltime

import (
	"fmt"
	"math"
	"time"
)

const (
	msPerDay int64 = 24 * 60 * 60 * 1000

	// endOfArtificialTime is 2012-12-21T12:00:00Z, midnight at longitude 180
	// of the first day of natural year 1.
	endOfArtificialTime int64 = 1356091200000

	epochYear = 2012

	// regularDays is the number of days that belong to a moon; later days
	// of the year are rainbow days.
	regularDays = DaysPerMoon * MoonsPerYear
)

// Layout of the regular part of a natural year: 13 moons of 4 weeks.
const (
	DaysPerMoon  = 28
	DaysPerWeek  = 7
	WeeksPerMoon = DaysPerMoon / DaysPerWeek
	MoonsPerYear = 13
)

// maxUnixMs is the exclusive upper end of the supported era.
var maxUnixMs = time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// NaturalDate is the natural calendar position of an instant at a longitude.
// All instants are unix milliseconds UTC.
//
// On rainbow days Moon, DayOfMoon, Week and WeekOfMoon are 0 while DayOfWeek
// keeps cycling.
type NaturalDate struct {
	Year         int     `json:"year"`
	Moon         int     `json:"moon"`
	Week         int     `json:"week"`
	WeekOfMoon   int     `json:"week_of_moon"`
	Day          int     `json:"day"`
	DayOfYear    int     `json:"day_of_year"`
	DayOfMoon    int     `json:"day_of_moon"`
	DayOfWeek    int     `json:"day_of_week"`
	IsRainbowDay bool    `json:"is_rainbow_day"`
	TimeDeg      float64 `json:"time_deg"`
	YearStart    int64   `json:"year_start"`
	YearDuration int     `json:"year_duration"`
	Nadir        int64   `json:"nadir"`
	Solstice     int64   `json:"solstice"`
	Longitude    float64 `json:"longitude"`
	UnixTime     int64   `json:"unix_time"`
}

// IsZero reports whether nd is the zero value rather than an engine result.
func (nd NaturalDate) IsZero() bool {
	return nd.UnixTime == 0 && nd.YearStart == 0
}

// DayEnd returns the first millisecond of the next natural day.
func (nd NaturalDate) DayEnd() int64 {
	return nd.Nadir + msPerDay
}

// Instant returns UnixTime as a time.Time.
func (nd NaturalDate) Instant() time.Time {
	return time.UnixMilli(nd.UnixTime).UTC()
}

// TimeOfEvent converts an instant to degrees since the start of the natural
// day. Instants outside [Nadir, DayEnd) yield NaN.
func (nd NaturalDate) TimeOfEvent(unixMs int64) float64 {
	if nd.IsZero() || unixMs < nd.Nadir || unixMs >= nd.DayEnd() {
		return math.NaN()
	}
	return float64(unixMs-nd.Nadir) * 360 / float64(msPerDay)
}

// String formats nd as YYY)MM)DD followed by the time in degrees, using RBW
// in place of the moon on rainbow days.
func (nd NaturalDate) String() string {
	if nd.IsRainbowDay {
		return fmt.Sprintf("%03d)RBW)%02d %06.2f°", nd.Year, nd.DayOfYear-regularDays, nd.TimeDeg)
	}
	return fmt.Sprintf("%03d)%02d)%02d %06.2f°", nd.Year, nd.Moon, nd.DayOfMoon, nd.TimeDeg)
}

// window is the search range of the natural day. The end is the last
// millisecond of the day so every found event maps into [0, 360).
func (nd NaturalDate) window() (time.Time, time.Time) {
	return time.UnixMilli(nd.Nadir).UTC(), time.UnixMilli(nd.DayEnd() - 1).UTC()
}

// NaturalDate derives the natural date of unixMs at longitude.
func (e *Engine) NaturalDate(unixMs int64, longitude float64) (NaturalDate, error) {
	if err := validateLongitude(longitude); err != nil {
		return NaturalDate{}, err
	}
	if unixMs <= 0 || unixMs >= maxUnixMs {
		return NaturalDate{}, &ValidationError{Field: "unix_time", Value: unixMs, Err: ErrTimeRange}
	}

	ly, err := e.locateYear(unixMs, longitude)
	if err != nil {
		return NaturalDate{}, err
	}

	days := int(floorDiv(unixMs-ly.start, msPerDay))
	nadir := ly.start + int64(days)*msPerDay

	nd := NaturalDate{
		Year:         time.UnixMilli(ly.start).UTC().Year() - epochYear + 1,
		Day:          int(floorDiv(unixMs-localize(endOfArtificialTime, longitude), msPerDay)),
		DayOfYear:    days + 1,
		DayOfWeek:    days%DaysPerWeek + 1,
		IsRainbowDay: days >= regularDays,
		TimeDeg:      float64(unixMs-nadir) * 360 / float64(msPerDay),
		YearStart:    ly.start,
		YearDuration: ly.duration(),
		Nadir:        nadir,
		Solstice:     ly.solstice,
		Longitude:    longitude,
		UnixTime:     unixMs,
	}
	if !nd.IsRainbowDay {
		nd.Moon = days/DaysPerMoon + 1
		nd.DayOfMoon = days%DaysPerMoon + 1
		nd.Week = days/DaysPerWeek + 1
		nd.WeekOfMoon = (days/DaysPerWeek)%WeeksPerMoon + 1
	}
	return nd, nil
}

func validateLongitude(longitude float64) error {
	if !(longitude >= -180 && longitude <= 180) {
		return &ValidationError{Field: "longitude", Value: longitude, Err: ErrLongitudeRange}
	}
	return nil
}

func validateLatitude(latitude float64) error {
	if !(latitude >= -90 && latitude <= 90) {
		return &ValidationError{Field: "latitude", Value: latitude, Err: ErrLatitudeRange}
	}
	return nil
}

func validateDate(nd NaturalDate) error {
	if nd.IsZero() {
		return &ValidationError{Field: "date", Value: nd.UnixTime, Err: ErrInvalidDate}
	}
	return validateLongitude(nd.Longitude)
}
