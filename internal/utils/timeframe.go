package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe converts a timeframe string like "1m", "5m", "2h", "1d" or
// "1w" to its length in minutes. A bare number is treated as minutes.
func ParseTimeframe(timeframe string) (int, error) {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if tf == "" {
		return 0, fmt.Errorf("empty timeframe")
	}

	multiplier := 1
	numeric := tf

	switch {
	case strings.HasSuffix(tf, "m"):
		numeric = strings.TrimSuffix(tf, "m")
	case strings.HasSuffix(tf, "h"):
		numeric = strings.TrimSuffix(tf, "h")
		multiplier = 60
	case strings.HasSuffix(tf, "d"):
		numeric = strings.TrimSuffix(tf, "d")
		multiplier = 60 * 24
	case strings.HasSuffix(tf, "w"):
		numeric = strings.TrimSuffix(tf, "w")
		multiplier = 60 * 24 * 7
	}

	value, err := strconv.Atoi(numeric)
	if err != nil {
		return 0, fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("timeframe %q must be positive", timeframe)
	}

	return value * multiplier, nil
}

// TimeframeDuration is ParseTimeframe expressed as a time.Duration.
func TimeframeDuration(timeframe string) (time.Duration, error) {
	minutes, err := ParseTimeframe(timeframe)
	if err != nil {
		return 0, err
	}

	return time.Duration(minutes) * time.Minute, nil
}
