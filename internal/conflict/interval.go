package conflict

import (
	"strconv"
	"strings"
)

// ToMinutes parses a wall-clock "HH:MM" string into minutes since midnight.
func ToMinutes(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidFormat
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, ErrInvalidFormat
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, ErrInvalidFormat
	}

	return hours*60 + minutes, nil
}

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. Touching endpoints do not overlap, which is what
// allows back-to-back bookings.
func Overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && endA > startB
}

// ClockOverlaps is Overlaps for "HH:MM" strings.
func ClockOverlaps(startA, endA, startB, endB string) (bool, error) {
	sa, err := ToMinutes(startA)
	if err != nil {
		return false, err
	}
	ea, err := ToMinutes(endA)
	if err != nil {
		return false, err
	}
	sb, err := ToMinutes(startB)
	if err != nil {
		return false, err
	}
	eb, err := ToMinutes(endB)
	if err != nil {
		return false, err
	}
	return Overlaps(sa, ea, sb, eb), nil
}
