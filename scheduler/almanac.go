package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/devskill-org/natural-time/naturaltime"
)

// Almanac is everything known about one natural day at one location
type Almanac struct {
	Latitude     float64                    `json:"latitude"`
	Longitude    float64                    `json:"longitude"`
	Date         naturaltime.NaturalDate    `json:"date"`
	Sun          naturaltime.SunEvents      `json:"sun"`
	SunPosition  naturaltime.SunPosition    `json:"sun_position"`
	Moon         naturaltime.MoonEvents     `json:"moon"`
	MoonPosition naturaltime.MoonPosition   `json:"moon_position"`
	Mustaches    naturaltime.MustachesRange `json:"mustaches"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// ComputeAlmanac derives the natural date of unixMs at the given location and
// all of its events. The context is checked between computations.
func ComputeAlmanac(ctx context.Context, engine *naturaltime.Engine, unixMs int64, latitude, longitude float64) (*Almanac, error) {
	nd, err := engine.NaturalDate(unixMs, longitude)
	if err != nil {
		return nil, fmt.Errorf("natural date: %w", err)
	}

	a := &Almanac{
		Latitude:    latitude,
		Longitude:   longitude,
		Date:        nd,
		GeneratedAt: time.Now().UTC(),
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"sun events", func() (err error) {
			a.Sun, err = engine.SunEvents(nd, latitude)
			return err
		}},
		{"sun position", func() (err error) {
			a.SunPosition, err = engine.SunPosition(nd, latitude)
			return err
		}},
		{"moon events", func() (err error) {
			a.Moon, err = engine.MoonEvents(nd, latitude)
			return err
		}},
		{"moon position", func() (err error) {
			a.MoonPosition, err = engine.MoonPosition(nd, latitude)
			return err
		}},
		{"mustaches", func() (err error) {
			a.Mustaches, err = engine.MustachesRange(nd, latitude)
			return err
		}},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return a, nil
}

// BuildAlmanac computes the almanac of unixMs for the configured location
func (s *AlmanacScheduler) BuildAlmanac(ctx context.Context, unixMs int64) (*Almanac, error) {
	config := s.GetConfig()
	return ComputeAlmanac(ctx, s.engine, unixMs, config.Latitude, config.Longitude)
}

// runAlmanacJob builds today's almanac, keeps it as the latest one, stores it
// and pushes it to websocket clients
func (s *AlmanacScheduler) runAlmanacJob(ctx context.Context) {
	config := s.GetConfig()
	unixMs := s.now().UnixMilli()

	if stored := s.storedAlmanac(ctx, unixMs); stored != nil {
		s.mu.Lock()
		s.latest = stored
		s.lastBuild = stored.GeneratedAt
		s.mu.Unlock()
		s.logger.Printf("Almanac for %s restored from database", stored.Date)
		s.webServer.publish("almanac_update", stored)
		return
	}

	almanac, err := s.BuildAlmanac(ctx, unixMs)
	if err != nil {
		s.logger.Printf("Failed to build almanac: %v", err)
		return
	}

	s.mu.Lock()
	s.latest = almanac
	s.lastBuild = almanac.GeneratedAt
	s.mu.Unlock()

	s.logger.Printf("Almanac for %s built (sunrise %s, sunset %s)",
		almanac.Date, formatEvent(almanac.Sun.Sunrise), formatEvent(almanac.Sun.Sunset))

	switch {
	case config.DryRun:
		s.logger.Printf("DRY-RUN: would save almanac for natural day %d", almanac.Date.Day)
	case s.getDB() != nil:
		if err := s.saveAlmanac(ctx, almanac); err != nil {
			s.logger.Printf("Failed to save almanac: %v", err)
		}
	}

	stats := s.engine.CacheStats()
	s.debugf("Cache: %d entries, %d hits, %d misses", stats.Entries, stats.Hits, stats.Misses)

	s.webServer.publish("almanac_update", almanac)
}

// storedAlmanac returns the almanac already saved for the natural day of
// unixMs, or nil when there is none or it cannot be read
func (s *AlmanacScheduler) storedAlmanac(ctx context.Context, unixMs int64) *Almanac {
	if s.getDB() == nil {
		return nil
	}

	config := s.GetConfig()
	nd, err := s.engine.NaturalDate(unixMs, config.Longitude)
	if err != nil {
		return nil
	}

	almanac, err := s.loadAlmanac(ctx, nd.Day, config.Latitude, config.Longitude)
	if err != nil {
		s.logger.Printf("Failed to load stored almanac: %v", err)
		return nil
	}
	return almanac
}

// GetLatestAlmanac returns the almanac built by the last daily job
func (s *AlmanacScheduler) GetLatestAlmanac() *Almanac {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func formatEvent(et naturaltime.EventTime) string {
	if !et.Found() {
		return et.Status.String()
	}
	return fmt.Sprintf("%.2f°", et.Deg)
}
