package pipeline

import (
	"strconv"
	"strings"
	"time"

	"evboard/internal/model"
)

const dateLayout = "2006-01-02"

// Clock is "now" plus the zone calendar days are evaluated in.
type Clock struct {
	Now time.Time
	Loc *time.Location
}

func (c Clock) location() *time.Location {
	if c.Loc != nil {
		return c.Loc
	}
	return time.Local
}

// Today is local midnight of the current day.
func (c Clock) Today() time.Time {
	n := c.Now.In(c.location())
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

// ParseDate parses a YYYY-MM-DD date (longer ISO strings are cut to the
// date part) as local midnight.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseClock accepts "HH:MM" and "HH:MM:SS".
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[2] != ':' {
		return 0, 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	if len(s) > 5 && s[5] != ':' {
		return 0, 0, false
	}
	return h, m, true
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// StartInstant is date+time, or the date at midnight when time is absent.
// ok is false without a usable date.
func StartInstant(ev model.Event, loc *time.Location) (time.Time, bool) {
	day, ok := ParseDate(model.Value(ev.Date), loc)
	if !ok {
		return time.Time{}, false
	}
	if h, m, ok := ParseClock(model.Value(ev.Time)); ok {
		return at(day, h, m), true
	}
	return day, true
}

// EndInstant derives when an event is over:
//   - end_time as a clock time
//   - the late sentinel: the start time, else 23:59
//   - otherwise the start time, else 23:59
//
// ok is false without a usable date; such events never expire.
func EndInstant(ev model.Event, loc *time.Location) (time.Time, bool) {
	day, ok := ParseDate(model.Value(ev.Date), loc)
	if !ok {
		return time.Time{}, false
	}
	if !ev.IsLateEnd() {
		if h, m, ok := ParseClock(model.Value(ev.EndTime)); ok {
			return at(day, h, m), true
		}
	}
	if h, m, ok := ParseClock(model.Value(ev.Time)); ok {
		return at(day, h, m), true
	}
	return at(day, 23, 59), true
}

// IsExpired reports whether the end instant is strictly before now.
func IsExpired(ev model.Event, c Clock) bool {
	end, ok := EndInstant(ev, c.location())
	return ok && end.Before(c.Now)
}

// ExcludeExpired drops expired events. The result is a new slice.
func ExcludeExpired(events []model.Event, c Clock) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !IsExpired(ev, c) {
			out = append(out, ev)
		}
	}
	return out
}
