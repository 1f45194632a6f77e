package scheduler

import (
	"time"

	"github.com/devskill-org/natural-time/naturaltime"
)

// scheduleRetryDelay is used when the next natural midnight cannot be
// computed.
const scheduleRetryDelay = time.Minute

// NaturalMidnightSchedule fires at local solar midnight at Longitude, shifted
// by Offset.
//
// This implements robfig/cron.Schedule
type NaturalMidnightSchedule struct {
	Engine    *naturaltime.Engine
	Longitude float64
	Offset    time.Duration
}

// Next returns the first natural midnight plus Offset strictly after now
func (s NaturalMidnightSchedule) Next(now time.Time) time.Time {
	nd, err := s.Engine.NaturalDate(now.Add(-s.Offset).UnixMilli(), s.Longitude)
	if err != nil {
		return now.Add(scheduleRetryDelay)
	}
	return time.UnixMilli(nd.DayEnd()).Add(s.Offset).In(now.Location())
}
