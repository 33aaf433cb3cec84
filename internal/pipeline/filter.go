package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"golang.org/x/text/cases"

	"evboard/internal/model"
)

// Predicate keeps an event when it returns true.
type Predicate func(model.Event) bool

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), needle)
}

// categoryAliases maps Swedish and legacy spellings onto the fixed labels.
var categoryAliases = map[string]string{
	"musik":          "Music",
	"konsert":        "Music",
	"idrott":         "Sport",
	"mat":            "Food & Drink",
	"mat & dryck":    "Food & Drink",
	"food":           "Food & Drink",
	"konst":          "Art & Culture",
	"kultur":         "Art & Culture",
	"konst & kultur": "Art & Culture",
	"nattliv":        "Nightlife",
	"familj":         "Family",
	"marknad":        "Market",
	"loppis":         "Market",
	"förening":       "Community",
	"övrigt":         "Other",
}

// NormalizeCategory maps raw onto one of model.Categories, matching case
// insensitively. Unknown values are returned trimmed.
func NormalizeCategory(raw string) string {
	f := fold(raw)
	if f == "" {
		return ""
	}
	for _, c := range model.Categories {
		if fold(c) == f {
			return c
		}
	}
	for alias, c := range categoryAliases {
		if fold(alias) == f {
			return c
		}
	}
	return strings.TrimSpace(raw)
}

// CategoryPredicate matches the normalized label, falling back to the raw
// stored value. "All" or empty matches everything.
func CategoryPredicate(category string) Predicate {
	if fold(category) == "" || fold(category) == fold(model.CategoryAll) {
		return nil
	}
	want := fold(NormalizeCategory(category))
	raw := fold(category)
	return func(ev model.Event) bool {
		if !ev.HasCategory() {
			return false
		}
		v := model.Value(ev.Category)
		return fold(NormalizeCategory(v)) == want || fold(v) == raw
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Occurrences sit at noon so each keeps its calendar day across DST shifts.
func noon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

// weekdays is a daily rule on the given weekdays, starting at from. The
// options are fixed, so a construction error is a programming error.
func weekdays(from time.Time, days ...rrule.Weekday) *rrule.RRule {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Wkst:      rrule.MO,
		Byweekday: days,
		Dtstart:   noon(from),
	})
	if err != nil {
		panic(fmt.Sprintf("pipeline: weekday rule: %v", err))
	}
	return r
}

// WeekStart is Monday 00:00 of the ISO week containing day.
func WeekStart(day time.Time) time.Time {
	day = midnight(day)
	return midnight(weekdays(day.AddDate(0, 0, -6), rrule.MO).Before(noon(day), true))
}

// RangeWindow returns the half-open [from, to) window of r around now.
// ok is false for RangeAll.
func RangeWindow(r model.DateRange, c Clock) (from, to time.Time, ok bool) {
	today := c.Today()
	switch r {
	case model.RangeToday:
		return today, today.AddDate(0, 0, 1), true
	case model.RangeThisWeek:
		mon := WeekStart(today)
		next := weekdays(mon, rrule.MO).After(noon(mon), false)
		return mon, midnight(next), true
	case model.RangeWeekend:
		mon := WeekStart(today)
		days := weekdays(mon, rrule.SA, rrule.SU).Between(noon(mon), noon(mon.AddDate(0, 0, 6)), true)
		if len(days) == 0 {
			return time.Time{}, time.Time{}, false
		}
		return midnight(days[0]), midnight(days[len(days)-1]).AddDate(0, 0, 1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// DatePredicate applies the explicit search date when set, else the range.
func DatePredicate(f model.FilterState, c Clock) Predicate {
	loc := c.location()
	if f.Date != "" {
		want, ok := ParseDate(f.Date, loc)
		return func(ev model.Event) bool {
			day, has := ParseDate(model.Value(ev.Date), loc)
			if !ok || !has {
				return false
			}
			return day.Equal(want)
		}
	}
	from, to, ok := RangeWindow(f.DateRange, c)
	if !ok {
		return nil
	}
	return func(ev model.Event) bool {
		start, has := StartInstant(ev, loc)
		if !has {
			return false
		}
		return !start.Before(from) && start.Before(to)
	}
}

// QueryPredicate matches the text against title, info, category and
// author name.
func QueryPredicate(q string) Predicate {
	needle := fold(q)
	if needle == "" {
		return nil
	}
	return func(ev model.Event) bool {
		return containsFold(ev.Title, needle) ||
			containsFold(ev.Info, needle) ||
			containsFold(model.Value(ev.Category), needle) ||
			containsFold(ev.AuthorName(), needle)
	}
}

// PlacePredicate matches the raw place and, for map links, the extracted
// label.
func PlacePredicate(p string) Predicate {
	needle := fold(p)
	if needle == "" {
		return nil
	}
	return func(ev model.Event) bool {
		if containsFold(ev.Place, needle) {
			return true
		}
		meta := PlaceLabel(ev.Place)
		return meta.IsMap && containsFold(meta.Label, needle)
	}
}

// Predicates builds the active predicates of f. Inactive filters are
// omitted.
func Predicates(f model.FilterState, c Clock) []Predicate {
	f = f.Normalized()
	var out []Predicate
	for _, p := range []Predicate{
		CategoryPredicate(f.Category),
		DatePredicate(f, c),
		QueryPredicate(f.Query),
		PlacePredicate(f.Place),
	} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Filter keeps the events every predicate accepts.
func Filter(events []model.Event, preds ...Predicate) []model.Event {
	out := make([]model.Event, 0, len(events))
next:
	for _, ev := range events {
		for _, p := range preds {
			if p != nil && !p(ev) {
				continue next
			}
		}
		out = append(out, ev)
	}
	return out
}

// Apply filters then sorts. events is not modified.
func Apply(events []model.Event, f model.FilterState, c Clock) []model.Event {
	f = f.Normalized()
	return Sort(Filter(events, Predicates(f, c)...), f.Sort, c.location())
}
