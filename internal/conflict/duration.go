package conflict

import (
	"fmt"
	"math"
)

// RoundingMode selects how a duration in hours is rounded.
type RoundingMode string

const (
	// RoundingNone keeps full precision (lesson hours accounting).
	RoundingNone RoundingMode = "none"
	// RoundingQuarterHour rounds to the nearest 0.25h (reservation display).
	RoundingQuarterHour RoundingMode = "quarterHour"
)

// ParseRoundingMode converts a configuration value into a RoundingMode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case RoundingNone, RoundingQuarterHour:
		return RoundingMode(s), nil
	case "":
		return RoundingNone, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", s)
	}
}

// ComputeDuration returns the decimal hours between start and end.
// It fails with ErrInvalidRange when end is not after start.
func ComputeDuration(start, end string, mode RoundingMode) (float64, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return 0, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return 0, err
	}

	raw := float64(e-s) / 60
	if raw <= 0 {
		return 0, ErrInvalidRange
	}

	if mode == RoundingQuarterHour {
		return math.Round(raw*4) / 4, nil
	}
	return raw, nil
}

// ValidateRange checks both times are well formed and end is after start.
func ValidateRange(start, end string) error {
	_, err := ComputeDuration(start, end, RoundingNone)
	return err
}
