package naturaltime

import (
	"errors"
	"math"
	"testing"
	"time"
)

func ms(value string) int64 {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestNaturalDateKnownDays(t *testing.T) {
	engine := NewEngine(nil, nil)

	tests := []struct {
		name      string
		instant   string
		longitude float64
		want      NaturalDate
	}{
		{
			name:    "first day of year one",
			instant: "2012-12-22T06:00:00Z",
			want: NaturalDate{
				Year: 1, Moon: 1, Week: 1, WeekOfMoon: 1, Day: 0,
				DayOfYear: 1, DayOfMoon: 1, DayOfWeek: 1,
				TimeDeg:   90,
				YearStart: ms("2012-12-22T00:00:00Z"),
				Nadir:     ms("2012-12-22T00:00:00Z"),
			},
		},
		{
			name:    "single rainbow day of a 365 day year",
			instant: "2024-12-21T12:00:00Z",
			want: NaturalDate{
				Year: 12, DayOfYear: 365, DayOfWeek: 1, IsRainbowDay: true,
				TimeDeg:      180,
				YearStart:    ms("2023-12-23T00:00:00Z"),
				YearDuration: 365,
				Nadir:        ms("2024-12-21T00:00:00Z"),
			},
		},
		{
			name:    "second rainbow day of a 366 day year",
			instant: "2025-12-22T12:00:00Z",
			want: NaturalDate{
				Year: 13, DayOfYear: 366, DayOfWeek: 2, IsRainbowDay: true,
				TimeDeg:      180,
				YearStart:    ms("2024-12-22T00:00:00Z"),
				YearDuration: 366,
				Nadir:        ms("2025-12-22T00:00:00Z"),
			},
		},
		{
			name:      "last moon day at longitude 180",
			instant:   "2025-12-19T18:00:00Z",
			longitude: 180,
			want: NaturalDate{
				Year: 13, Moon: 13, Week: 52, WeekOfMoon: 4,
				DayOfYear: 364, DayOfMoon: 28, DayOfWeek: 7,
				TimeDeg:      90,
				YearStart:    ms("2024-12-21T12:00:00Z"),
				YearDuration: 366,
				Nadir:        ms("2025-12-19T12:00:00Z"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.NaturalDate(ms(tt.instant), tt.longitude)
			if err != nil {
				t.Fatalf("NaturalDate returned error: %v", err)
			}
			w := tt.want
			if got.Year != w.Year || got.Moon != w.Moon || got.Week != w.Week || got.WeekOfMoon != w.WeekOfMoon {
				t.Errorf("Year/Moon/Week/WeekOfMoon = %d/%d/%d/%d, expected %d/%d/%d/%d",
					got.Year, got.Moon, got.Week, got.WeekOfMoon, w.Year, w.Moon, w.Week, w.WeekOfMoon)
			}
			if got.DayOfYear != w.DayOfYear || got.DayOfMoon != w.DayOfMoon || got.DayOfWeek != w.DayOfWeek {
				t.Errorf("DayOfYear/DayOfMoon/DayOfWeek = %d/%d/%d, expected %d/%d/%d",
					got.DayOfYear, got.DayOfMoon, got.DayOfWeek, w.DayOfYear, w.DayOfMoon, w.DayOfWeek)
			}
			if got.IsRainbowDay != w.IsRainbowDay {
				t.Errorf("IsRainbowDay = %v, expected %v", got.IsRainbowDay, w.IsRainbowDay)
			}
			if math.Abs(got.TimeDeg-w.TimeDeg) > 1e-9 {
				t.Errorf("TimeDeg = %v, expected %v", got.TimeDeg, w.TimeDeg)
			}
			if got.YearStart != w.YearStart {
				t.Errorf("YearStart = %s, expected %s", time.UnixMilli(got.YearStart).UTC(), time.UnixMilli(w.YearStart).UTC())
			}
			if got.Nadir != w.Nadir {
				t.Errorf("Nadir = %s, expected %s", time.UnixMilli(got.Nadir).UTC(), time.UnixMilli(w.Nadir).UTC())
			}
			if w.YearDuration != 0 && got.YearDuration != w.YearDuration {
				t.Errorf("YearDuration = %d, expected %d", got.YearDuration, w.YearDuration)
			}
		})
	}
}

func TestNaturalDateInvariants(t *testing.T) {
	engine := NewEngine(nil, nil)
	start := ms("2013-01-01T00:00:00Z")
	end := ms("2031-01-01T00:00:00Z")
	step := 13*msPerDay + 7*60*60*1000 + 12345

	for _, lon := range []float64{-180, -122.42, -0.1278, 0, 24.1052, 139.69, 180} {
		for unix := start; unix < end; unix += step {
			nd, err := engine.NaturalDate(unix, lon)
			if err != nil {
				t.Fatalf("NaturalDate(%d, %v) returned error: %v", unix, lon, err)
			}
			if nd.YearDuration != 365 && nd.YearDuration != 366 {
				t.Fatalf("%v: YearDuration %d", nd, nd.YearDuration)
			}
			if nd.DayOfYear < 1 || nd.DayOfYear > nd.YearDuration {
				t.Fatalf("%v: DayOfYear %d outside 1..%d", nd, nd.DayOfYear, nd.YearDuration)
			}
			if unix < nd.YearStart || unix >= nd.YearStart+int64(nd.YearDuration)*msPerDay {
				t.Fatalf("%v: instant outside its year", nd)
			}
			if unix < nd.Nadir || unix >= nd.DayEnd() {
				t.Fatalf("%v: instant outside its day", nd)
			}
			if nd.TimeDeg < 0 || nd.TimeDeg >= 360 {
				t.Fatalf("%v: TimeDeg %v", nd, nd.TimeDeg)
			}
			if nd.IsRainbowDay != (nd.DayOfYear > 364) {
				t.Fatalf("%v: IsRainbowDay %v for day %d", nd, nd.IsRainbowDay, nd.DayOfYear)
			}
			if nd.DayOfWeek < 1 || nd.DayOfWeek > 7 {
				t.Fatalf("%v: DayOfWeek %d", nd, nd.DayOfWeek)
			}
			if !nd.IsRainbowDay {
				if nd.Moon < 1 || nd.Moon > 13 || nd.DayOfMoon < 1 || nd.DayOfMoon > 28 ||
					nd.Week < 1 || nd.Week > 52 || nd.WeekOfMoon < 1 || nd.WeekOfMoon > 4 {
					t.Fatalf("%v: moon fields out of range %+v", nd, nd)
				}
			}
			if nd.Solstice >= nd.YearStart || nd.YearStart-nd.Solstice > 2*msPerDay {
				t.Fatalf("%v: solstice %d not just before year start %d", nd, nd.Solstice, nd.YearStart)
			}
		}
	}
}

func TestNaturalDateContinuity(t *testing.T) {
	engine := NewEngine(nil, nil)
	const lon = 24.1052

	prev, err := engine.NaturalDate(ms("2023-06-01T10:00:00Z"), lon)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < 2*366; i++ {
		cur, err := engine.NaturalDate(prev.UnixTime+msPerDay, lon)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Day != prev.Day+1 {
			t.Fatalf("Day jumped from %d to %d", prev.Day, cur.Day)
		}
		if cur.DayOfWeek != prev.DayOfWeek%7+1 && cur.DayOfYear != 1 {
			t.Fatalf("DayOfWeek went from %d to %d", prev.DayOfWeek, cur.DayOfWeek)
		}
		switch {
		case cur.Year == prev.Year:
			if cur.DayOfYear != prev.DayOfYear+1 {
				t.Fatalf("%v follows %v", cur, prev)
			}
		case cur.Year == prev.Year+1:
			if cur.DayOfYear != 1 || prev.DayOfYear != prev.YearDuration || !prev.IsRainbowDay {
				t.Fatalf("year rolled over from %v to %v", prev, cur)
			}
			if cur.YearStart != prev.YearStart+int64(prev.YearDuration)*msPerDay {
				t.Fatalf("year %d does not start where %d ends", cur.Year, prev.Year)
			}
		default:
			t.Fatalf("year jumped from %d to %d", prev.Year, cur.Year)
		}
		prev = cur
	}
}

func TestNaturalDateLongitudeShift(t *testing.T) {
	engine := NewEngine(nil, nil)
	unix := ms("2024-07-01T00:00:00Z")

	east, err := engine.NaturalDate(unix, 180)
	if err != nil {
		t.Fatal(err)
	}
	for _, lon := range []float64{90, 0, -90, -179.9} {
		nd, err := engine.NaturalDate(unix, lon)
		if err != nil {
			t.Fatal(err)
		}
		want := east.YearStart + int64(math.Round((180-lon)*float64(msPerDay)/360))
		if nd.YearStart != want {
			t.Errorf("lon %v: YearStart %d, expected %d", lon, nd.YearStart, want)
		}
	}
}

func TestNaturalDateYearBoundary(t *testing.T) {
	engine := NewEngine(nil, nil)
	nd, err := engine.NaturalDate(ms("2024-06-01T00:00:00Z"), 10)
	if err != nil {
		t.Fatal(err)
	}

	first, err := engine.NaturalDate(nd.YearStart, 10)
	if err != nil {
		t.Fatal(err)
	}
	if first.DayOfYear != 1 || first.TimeDeg != 0 || first.Year != nd.Year {
		t.Errorf("Year start maps to %v, expected day 1 at 0°", first)
	}

	last, err := engine.NaturalDate(nd.YearStart-1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if last.Year != nd.Year-1 || last.DayOfYear != last.YearDuration || !last.IsRainbowDay {
		t.Errorf("Millisecond before year start maps to %v", last)
	}
}

func TestNaturalDateValidation(t *testing.T) {
	engine := NewEngine(nil, nil)
	valid := ms("2024-01-01T00:00:00Z")

	tests := []struct {
		name      string
		unix      int64
		longitude float64
		want      error
	}{
		{"longitude above range", valid, 180.5, ErrLongitudeRange},
		{"longitude below range", valid, -181, ErrLongitudeRange},
		{"longitude NaN", valid, math.NaN(), ErrLongitudeRange},
		{"zero instant", 0, 0, ErrTimeRange},
		{"negative instant", -1, 0, ErrTimeRange},
		{"end of era", ms("2200-01-01T00:00:00Z"), 0, ErrTimeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.NaturalDate(tt.unix, tt.longitude)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}

	for _, lon := range []float64{-180, 180} {
		if _, err := engine.NaturalDate(valid, lon); err != nil {
			t.Errorf("Longitude %v should be accepted, got %v", lon, err)
		}
	}
}

func TestTimeOfEvent(t *testing.T) {
	engine := NewEngine(nil, nil)
	nd, err := engine.NaturalDate(ms("2024-03-10T15:00:00Z"), -75)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		unix int64
		want float64
	}{
		{"nadir", nd.Nadir, 0},
		{"quarter day", nd.Nadir + msPerDay/4, 90},
		{"noon", nd.Nadir + msPerDay/2, 180},
		{"last millisecond", nd.DayEnd() - 1, 360 - 360/float64(msPerDay)},
		{"before nadir", nd.Nadir - 1, math.NaN()},
		{"next day", nd.DayEnd(), math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nd.TimeOfEvent(tt.unix)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Errorf("Expected NaN, got %v", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := nd.TimeOfEvent(nd.UnixTime); math.Abs(got-nd.TimeDeg) > 1e-9 {
		t.Errorf("TimeOfEvent(UnixTime) = %v, TimeDeg = %v", got, nd.TimeDeg)
	}
	if !math.IsNaN(NaturalDate{}.TimeOfEvent(1)) {
		t.Error("Zero date should yield NaN")
	}
}

func TestNaturalDateString(t *testing.T) {
	engine := NewEngine(nil, nil)

	rainbow, err := engine.NaturalDate(ms("2025-12-22T12:00:00Z"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := rainbow.String(), "013)RBW)02 180.00°"; got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}

	first, err := engine.NaturalDate(ms("2012-12-22T06:00:00Z"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := first.String(), "001)01)01 090.00°"; got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}
}

func TestAnchorNoon(t *testing.T) {
	tests := []struct {
		solstice string
		want     string
	}{
		{"2012-12-21T11:12:00Z", "2012-12-21T12:00:00Z"},
		{"2025-12-21T15:03:00Z", "2025-12-22T12:00:00Z"},
		{"2024-12-21T12:00:00Z", "2024-12-22T12:00:00Z"},
		{"2024-12-21T00:00:00Z", "2024-12-21T12:00:00Z"},
	}
	for _, tt := range tests {
		if got := anchorNoon(ms(tt.solstice)); got != ms(tt.want) {
			t.Errorf("anchorNoon(%s) = %s, expected %s", tt.solstice, time.UnixMilli(got).UTC().Format(time.RFC3339), tt.want)
		}
	}
}

func TestLocalize(t *testing.T) {
	anchor := ms("2024-12-21T12:00:00Z")
	tests := []struct {
		longitude float64
		want      string
	}{
		{180, "2024-12-21T12:00:00Z"},
		{90, "2024-12-21T18:00:00Z"},
		{0, "2024-12-22T00:00:00Z"},
		{-90, "2024-12-22T06:00:00Z"},
		{-180, "2024-12-22T12:00:00Z"},
		{24.1052, "2024-12-21T22:23:34.752Z"},
	}
	for _, tt := range tests {
		if got := localize(anchor, tt.longitude); got != ms(tt.want) {
			t.Errorf("localize(%v) = %s, expected %s", tt.longitude, time.UnixMilli(got).UTC().Format(time.RFC3339Nano), tt.want)
		}
	}
}
