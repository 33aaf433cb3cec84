package model

import "strings"

// CategoryAll disables the category filter.
const CategoryAll = "All"

// Categories is the fixed set offered by the category filter, in UI order.
var Categories = []string{
	"Music",
	"Sport",
	"Food & Drink",
	"Art & Culture",
	"Nightlife",
	"Family",
	"Market",
	"Community",
	"Other",
}

type DateRange string

const (
	RangeAll      DateRange = "all"
	RangeToday    DateRange = "today"
	RangeThisWeek DateRange = "week"
	RangeWeekend  DateRange = "weekend"
)

// DateRanges lists the enumerated ranges in UI order.
var DateRanges = []DateRange{RangeAll, RangeToday, RangeThisWeek, RangeWeekend}

func (r DateRange) Label() string {
	switch r {
	case RangeToday:
		return "Idag"
	case RangeThisWeek:
		return "Denna vecka"
	case RangeWeekend:
		return "Helgen"
	default:
		return "Alla datum"
	}
}

// ParseDateRange accepts the enum values; anything else is RangeAll.
func ParseDateRange(s string) DateRange {
	switch DateRange(strings.ToLower(strings.TrimSpace(s))) {
	case RangeToday:
		return RangeToday
	case RangeThisWeek:
		return RangeThisWeek
	case RangeWeekend:
		return RangeWeekend
	default:
		return RangeAll
	}
}

type SortMode string

const (
	SortNewest  SortMode = "newest"
	SortSoonest SortMode = "soonest"
	SortPopular SortMode = "popular"
)

var SortModes = []SortMode{SortNewest, SortSoonest, SortPopular}

func (m SortMode) Label() string {
	switch m {
	case SortSoonest:
		return "Snarast"
	case SortPopular:
		return "Populärast"
	default:
		return "Nyast"
	}
}

// ParseSortMode accepts the enum values; anything else is SortNewest.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortSoonest:
		return SortSoonest
	case SortPopular:
		return SortPopular
	default:
		return SortNewest
	}
}

// FilterState is the transient filter/search input of the board.
type FilterState struct {
	Category  string    `json:"category"`
	DateRange DateRange `json:"date_range"`
	Sort      SortMode  `json:"sort"`
	Query     string    `json:"query"`
	Place     string    `json:"place"`
	// Date is an explicit YYYY-MM-DD search date; it beats DateRange.
	Date string `json:"date"`
}

// DefaultFilters is the state after "clear filters".
func DefaultFilters() FilterState {
	return FilterState{
		Category:  CategoryAll,
		DateRange: RangeAll,
		Sort:      SortNewest,
	}
}

// Reset restores the defaults in place.
func (f *FilterState) Reset() {
	*f = DefaultFilters()
}

// Normalized fills empty enum fields with defaults and trims text inputs.
func (f FilterState) Normalized() FilterState {
	if strings.TrimSpace(f.Category) == "" {
		f.Category = CategoryAll
	}
	f.DateRange = ParseDateRange(string(f.DateRange))
	f.Sort = ParseSortMode(string(f.Sort))
	f.Query = strings.TrimSpace(f.Query)
	f.Place = strings.TrimSpace(f.Place)
	f.Date = strings.TrimSpace(f.Date)
	return f
}

// IsDefault reports whether no narrowing filter is active. Sort is ignored.
func (f FilterState) IsDefault() bool {
	n := f.Normalized()
	return n.Category == CategoryAll && n.DateRange == RangeAll &&
		n.Query == "" && n.Place == "" && n.Date == ""
}
