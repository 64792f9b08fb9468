package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimeOfDay is a minute offset from midnight. Blocks and spots never cross
// midnight, so the full range is [0, 1440] with 1440 meaning end-of-day.
type TimeOfDay int16

const (
	// MinutesPerDay is the exclusive upper bound for block end times.
	MinutesPerDay TimeOfDay = 1440
)

// ParseTimeOfDay parses an "HH:MM" string into a TimeOfDay.
// "24:00" is accepted as end-of-day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h == 24 && m == 0 {
		return MinutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// String returns the HH:MM representation
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid checks the time is within a single day
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

// Scan implements the sql.Scanner interface for TimeOfDay
func (t *TimeOfDay) Scan(value any) error {
	if value == nil {
		*t = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*t = TimeOfDay(v)
	case int32:
		*t = TimeOfDay(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for TimeOfDay
func (t TimeOfDay) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TimeOfDay: %d", t)
	}
	return int64(t), nil
}

// MinuteRange is a half-open [In, Out) window within one day.
type MinuteRange struct {
	In  TimeOfDay
	Out TimeOfDay
}

// IsZeroLength reports whether the range covers no time at all. Zero-length
// spots are a data anomaly and match no block.
func (r MinuteRange) IsZeroLength() bool {
	return r.In >= r.Out
}

// Overlaps applies the half-open interval test to two same-day ranges.
func (r MinuteRange) Overlaps(other MinuteRange) bool {
	if r.IsZeroLength() || other.IsZeroLength() {
		return false
	}
	return r.In < other.Out && other.In < r.Out
}

// OverlapMinutes returns the length of the intersection, zero when disjoint.
func (r MinuteRange) OverlapMinutes(other MinuteRange) int {
	lo := r.In
	if other.In > lo {
		lo = other.In
	}
	hi := r.Out
	if other.Out < hi {
		hi = other.Out
	}
	if hi <= lo {
		return 0
	}
	return int(hi - lo)
}

// Contains reports whether other lies fully inside r.
func (r MinuteRange) Contains(other MinuteRange) bool {
	return r.In <= other.In && other.Out <= r.Out
}

// Minutes returns the length of the range.
func (r MinuteRange) Minutes() int {
	if r.IsZeroLength() {
		return 0
	}
	return int(r.Out - r.In)
}

// openEndSentinel stands in for an open-ended (null) upper bound so interval
// arithmetic never branches on nil. Kept far enough out that no real
// broadcast schedule reaches it; persistence stays nullable and the
// translation happens here at the boundary.
var openEndSentinel = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DateRange is an effective date window. Start is the first covered day and
// End, when present, the last covered day (inclusive, as persisted). The
// overlap arithmetic converts to half-open [start, end+1d) internally.
type DateRange struct {
	Start time.Time
	End   *time.Time
}

// exclusiveEnd returns the half-open upper bound of the range.
func (d DateRange) exclusiveEnd() time.Time {
	if d.End == nil {
		return openEndSentinel
	}
	return DateOf(*d.End).AddDate(0, 0, 1)
}

// Covers reports whether the given day falls inside the range.
func (d DateRange) Covers(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(DateOf(d.Start)) && day.Before(d.exclusiveEnd())
}

// Overlaps applies the half-open test, treating open ends as +infinity.
func (d DateRange) Overlaps(other DateRange) bool {
	return DateOf(d.Start).Before(other.exclusiveEnd()) &&
		DateOf(other.Start).Before(d.exclusiveEnd())
}

// Intersection returns the shared window of two ranges. The returned end is
// nil when both inputs are open past the intersection start.
func (d DateRange) Intersection(other DateRange) (start time.Time, end *time.Time, ok bool) {
	if !d.Overlaps(other) {
		return time.Time{}, nil, false
	}
	start = DateOf(d.Start)
	if o := DateOf(other.Start); o.After(start) {
		start = o
	}
	hi := d.exclusiveEnd()
	if o := other.exclusiveEnd(); o.Before(hi) {
		hi = o
	}
	if hi.Equal(openEndSentinel) {
		return start, nil, true
	}
	last := hi.AddDate(0, 0, -1)
	return start, &last, true
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
