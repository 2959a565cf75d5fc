package shared

import (
	"fmt"
	"time"
)

// LoadLocation resolves the configured backup timezone, defaulting to
// Asia/Seoul when unset (date buckets follow the library owner's local day).
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, name)
	}
	return loc, nil
}

// Today returns the current date in the given location, truncated to midnight.
func Today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// MonthRange converts an inclusive YYYY-MM..YYYY-MM month range into its
// first and last calendar days.
func MonthRange(startMonth, endMonth string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", startMonth, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidRange, startMonth)
	}
	endFirst, err := time.ParseInLocation("2006-01", endMonth, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidRange, endMonth)
	}

	end := endFirst.AddDate(0, 1, -1)
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange, startMonth, endMonth)
	}
	return start, end, nil
}

// RecentMonthRange returns the window ending at reference and starting the
// given number of months earlier.
func RecentMonthRange(reference time.Time, months int) (time.Time, time.Time) {
	end := reference
	start := end.AddDate(0, -months, 0)
	if start.After(end) {
		start, end = end, start
	}
	return start, end
}

// DateLabel converts an RFC 3339 timestamp (as reported by the Photos API)
// into the YYYY-MM-DD folder label for its capture day in loc.
func DateLabel(iso string, loc *time.Location) (string, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoTakenTime, err)
	}
	return t.In(loc).Format("2006-01-02"), nil
}
