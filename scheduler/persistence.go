package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoDatabase is returned by persistence calls when no database is configured
var ErrNoDatabase = errors.New("database connection not available")

const almanacSchema = `
	CREATE TABLE IF NOT EXISTS natural_almanac (
		day            INTEGER          NOT NULL,
		latitude       DOUBLE PRECISION NOT NULL,
		longitude      DOUBLE PRECISION NOT NULL,
		year           INTEGER          NOT NULL,
		day_of_year    INTEGER          NOT NULL,
		moon           INTEGER          NOT NULL,
		day_of_moon    INTEGER          NOT NULL,
		is_rainbow_day BOOLEAN          NOT NULL,
		nadir          BIGINT           NOT NULL,
		payload        JSONB            NOT NULL,
		generated_at   TIMESTAMPTZ      NOT NULL,
		PRIMARY KEY (day, latitude, longitude)
	)
`

// ensureAlmanacSchema creates the almanac table if it does not exist
func ensureAlmanacSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, almanacSchema); err != nil {
		return fmt.Errorf("failed to create natural_almanac table: %w", err)
	}
	return nil
}

func (s *AlmanacScheduler) getDB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// saveAlmanac upserts an almanac keyed by natural day and location
func (s *AlmanacScheduler) saveAlmanac(ctx context.Context, almanac *Almanac) error {
	db := s.getDB()
	if db == nil {
		return ErrNoDatabase
	}

	payload, err := json.Marshal(almanac)
	if err != nil {
		return fmt.Errorf("failed to encode almanac: %w", err)
	}

	nd := almanac.Date
	_, err = db.ExecContext(ctx, `
		INSERT INTO natural_almanac (
			day,
			latitude,
			longitude,
			year,
			day_of_year,
			moon,
			day_of_moon,
			is_rainbow_day,
			nadir,
			payload,
			generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (day, latitude, longitude) DO UPDATE SET
			year = EXCLUDED.year,
			day_of_year = EXCLUDED.day_of_year,
			moon = EXCLUDED.moon,
			day_of_moon = EXCLUDED.day_of_moon,
			is_rainbow_day = EXCLUDED.is_rainbow_day,
			nadir = EXCLUDED.nadir,
			payload = EXCLUDED.payload,
			generated_at = EXCLUDED.generated_at
	`,
		nd.Day,
		almanac.Latitude,
		almanac.Longitude,
		nd.Year,
		nd.DayOfYear,
		nd.Moon,
		nd.DayOfMoon,
		nd.IsRainbowDay,
		nd.Nadir,
		payload,
		almanac.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert almanac for day %d: %w", nd.Day, err)
	}

	s.logger.Printf("Saved almanac for natural day %d", nd.Day)
	return nil
}

// loadAlmanac reads the stored almanac of a natural day and location. It
// returns nil without error when nothing is stored.
func (s *AlmanacScheduler) loadAlmanac(ctx context.Context, day int, latitude, longitude float64) (*Almanac, error) {
	db := s.getDB()
	if db == nil {
		return nil, ErrNoDatabase
	}

	var payload []byte
	err := db.QueryRowContext(ctx, `
		SELECT payload
		FROM natural_almanac
		WHERE day = $1 AND latitude = $2 AND longitude = $3
	`, day, latitude, longitude).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query almanac for day %d: %w", day, err)
	}

	var almanac Almanac
	if err := json.Unmarshal(payload, &almanac); err != nil {
		return nil, fmt.Errorf("failed to decode almanac for day %d: %w", day, err)
	}
	return &almanac, nil
}
