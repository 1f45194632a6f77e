// Package utils provides utility functions for the natural time service.
package utils //nolint:revive // utils is a common and acceptable package name

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInstant parses an RFC 3339 timestamp or a unix time in milliseconds
// and returns unix milliseconds. An empty string yields now.
func ParseInstant(value string, now time.Time) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, fmt.Errorf("instant %q is neither RFC 3339 nor unix milliseconds", value)
	}
	return t.UnixMilli(), nil
}

// FormatUnixMilli formats unix milliseconds as an RFC 3339 UTC timestamp.
func FormatUnixMilli(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// ParseCoordinate parses a coordinate in degrees. An empty string yields
// fallback.
func ParseCoordinate(value string, fallback float64) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q is not a number", value)
	}
	return v, nil
}
