package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"evboard/internal/model"
)

// FormatClock trims a store time ("13:45:00") to "13:45".
func FormatClock(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// EndLabel is the end time as shown on a card: "Sent", a clock time, or
// empty.
func EndLabel(ev model.Event) string {
	switch {
	case !ev.HasEndTime():
		return ""
	case ev.IsLateEnd():
		return "Sent"
	}
	if _, _, ok := ParseClock(model.Value(ev.EndTime)); ok {
		return FormatClock(model.Value(ev.EndTime))
	}
	return FormatClock(model.Value(ev.Time))
}

var svMonths = [...]string{"jan.", "feb.", "mars", "apr.", "maj", "juni", "juli", "aug.", "sep.", "okt.", "nov.", "dec."}

// FormatDate renders YYYY-MM-DD in the Swedish short form "16 okt. 2026".
// Unparseable input is returned as is.
func FormatDate(s string) string {
	t, ok := ParseDate(s, time.UTC)
	if !ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), svMonths[t.Month()-1], t.Year())
}

// TimeAgo is the Swedish relative age of then.
func TimeAgo(then, now time.Time) string {
	if then.IsZero() {
		return ""
	}
	diff := int(now.Sub(then) / time.Second)
	minutes := diff / 60
	hours := diff / 3600
	days := diff / 86400
	switch {
	case diff < 60:
		return "Nyss"
	case minutes < 60:
		return fmt.Sprintf("%d min sedan", minutes)
	case hours < 24:
		return fmt.Sprintf("%d timmar sedan", hours)
	case days == 1:
		return "1 dag sedan"
	default:
		return fmt.Sprintf("%d dagar sedan", days)
	}
}

// AttendeeLabel is the "N st kommer" line.
func AttendeeLabel(n int) string {
	return fmt.Sprintf("%d st kommer", n)
}

// CountLabel is the "N händelser" line above the list.
func CountLabel(n int) string {
	if n == 1 {
		return "1 händelse"
	}
	return fmt.Sprintf("%d händelser", n)
}

// Initials are the first letters of the first two words, or the first two
// letters of a single word. Empty names give "AN".
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "AN"
	}
	first := []rune(parts[0])
	a, b := first[0], 'N'
	if len(parts) > 1 {
		b = []rune(parts[1])[0]
	} else if len(first) > 1 {
		b = first[1]
	}
	return strings.ToUpper(string([]rune{a, b}))
}

var freeWords = []string{"gratis", "free", "fri entré", "fritt inträde", "0 kr"}

// PriceLabel classifies a free-form price. Free prices become "Gratis",
// plain amounts are formatted as kronor and anything else is shown as is.
func PriceLabel(raw *string) string {
	s := model.Value(raw)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, w := range freeWords {
		if lower == w {
			return "Gratis"
		}
	}

	amount := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(lower, "kr"), "sek"))
	amount = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == ',':
			return '.'
		}
		return r
	}, amount)
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return s
	}
	if d.IsZero() {
		return "Gratis"
	}
	if d.IsNegative() {
		return s
	}
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0) + " kr"
	}
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " kr"
}
