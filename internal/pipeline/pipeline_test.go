package pipeline

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evboard/internal/model"
)

var stockholm = mustLoad("Europe/Stockholm")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Friday 16 October 2026, 14:30 local.
func testClock() Clock {
	return Clock{Now: time.Date(2026, 10, 16, 14, 30, 0, 0, stockholm), Loc: stockholm}
}

func ev(id, date string) model.Event {
	e := model.Event{ID: id, Title: id}
	if date != "" {
		e.Date = model.Ptr(date)
	}
	return e
}

func ids(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestYesterdayTodayTomorrow(t *testing.T) {
	events := []model.Event{
		ev("yesterday", "2026-10-15"),
		ev("today", "2026-10-16"),
		ev("tomorrow", "2026-10-17"),
	}
	got := ExcludeExpired(events, testClock())
	assert.Equal(t, []string{"today", "tomorrow"}, ids(got))
}

func TestEndInstantRules(t *testing.T) {
	c := testClock()
	cases := []struct {
		name    string
		ev      model.Event
		expired bool
	}{
		{"end time passed", model.Event{Date: model.Ptr("2026-10-16"), Time: model.Ptr("10:00"), EndTime: model.Ptr("14:00")}, true},
		{"end time ahead", model.Event{Date: model.Ptr("2026-10-16"), Time: model.Ptr("10:00"), EndTime: model.Ptr("15:00:00")}, false},
		{"late uses start", model.Event{Date: model.Ptr("2026-10-16"), Time: model.Ptr("12:00"), EndTime: model.Ptr("sent")}, true},
		{"late without start", model.Event{Date: model.Ptr("2026-10-16"), EndTime: model.Ptr("sent")}, false},
		{"start only", model.Event{Date: model.Ptr("2026-10-16"), Time: model.Ptr("14:29")}, true},
		{"garbage end uses start", model.Event{Date: model.Ptr("2026-10-16"), Time: model.Ptr("18:00"), EndTime: model.Ptr("late-ish")}, false},
		{"no date", model.Event{Time: model.Ptr("00:01")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expired, IsExpired(tc.ev, c))
		})
	}
}

// For arbitrary load times, nothing whose end instant lies before now
// survives ExcludeExpired.
func TestExcludeExpiredProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, stockholm)
	var events []model.Event
	for i := 0; i < 200; i++ {
		d := base.AddDate(0, 0, rng.Intn(30))
		e := model.Event{ID: string(rune('a' + i%26)), Date: model.Ptr(d.Format(dateLayout))}
		if rng.Intn(2) == 0 {
			e.Time = model.Ptr(time.Date(0, 1, 1, rng.Intn(24), rng.Intn(60), 0, 0, time.UTC).Format("15:04"))
		}
		switch rng.Intn(3) {
		case 0:
			e.EndTime = model.Ptr("sent")
		case 1:
			e.EndTime = model.Ptr(time.Date(0, 1, 1, rng.Intn(24), 0, 0, 0, time.UTC).Format("15:04:05"))
		}
		events = append(events, e)
	}

	for i := 0; i < 50; i++ {
		now := base.Add(time.Duration(rng.Int63n(int64(31 * 24 * time.Hour))))
		c := Clock{Now: now, Loc: stockholm}
		for _, e := range ExcludeExpired(events, c) {
			end, ok := EndInstant(e, stockholm)
			require.True(t, ok)
			assert.False(t, end.Before(now), "event ending %s shown at %s", end, now)
		}
	}
}

func TestMusicCategoryCaseInsensitive(t *testing.T) {
	events := []model.Event{
		{ID: "1", Category: model.Ptr("Music")},
		{ID: "2", Category: model.Ptr("music")},
		{ID: "3", Category: model.Ptr("Sport")},
		{ID: "4"},
		{ID: "5", Category: model.Ptr("Food & Drink")},
	}
	f := model.DefaultFilters()
	f.Category = "Music"
	got := Apply(events, f, testClock())
	assert.ElementsMatch(t, []string{"1", "2"}, ids(got))
	assert.Equal(t, "2 händelser", CountLabel(len(got)))
}

func TestCategoryRawFallbackAndAlias(t *testing.T) {
	events := []model.Event{
		{ID: "a", Category: model.Ptr("Musik")},
		{ID: "b", Category: model.Ptr("Brädspel")},
	}
	assert.Equal(t, []string{"a"}, ids(Filter(events, CategoryPredicate("music"))))
	assert.Equal(t, []string{"b"}, ids(Filter(events, CategoryPredicate("brädspel"))))
}

func TestWeekStartAndWindows(t *testing.T) {
	c := testClock()
	mon := WeekStart(c.Today())
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, stockholm), mon)

	// A Monday is its own week start; a Sunday belongs to the week before.
	assert.Equal(t, mon, WeekStart(time.Date(2026, 10, 12, 9, 0, 0, 0, stockholm)))
	assert.Equal(t, mon, WeekStart(time.Date(2026, 10, 18, 23, 0, 0, 0, stockholm)))

	from, to, ok := RangeWindow(model.RangeWeekend, c)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, stockholm), from)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, stockholm), to)

	from, to, ok = RangeWindow(model.RangeThisWeek, c)
	require.True(t, ok)
	assert.Equal(t, mon, from)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, stockholm), to)

	_, _, ok = RangeWindow(model.RangeAll, c)
	assert.False(t, ok)
}

// The weekend of 24-25 October 2026 ends summer time; the window still
// runs from Saturday midnight to Monday midnight.
func TestWeekendWindowAcrossDSTChange(t *testing.T) {
	c := Clock{Now: time.Date(2026, 10, 22, 9, 0, 0, 0, stockholm), Loc: stockholm}
	from, to, ok := RangeWindow(model.RangeWeekend, c)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 24, 0, 0, 0, 0, stockholm), from)
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, stockholm), to)

	from, to, ok = RangeWindow(model.RangeThisWeek, c)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, stockholm), from)
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, stockholm), to)
}

func TestWeekStartEveryDay(t *testing.T) {
	day := time.Date(2026, 1, 1, 8, 0, 0, 0, stockholm)
	for i := 0; i < 400; i++ {
		d := day.AddDate(0, 0, i)
		mon := WeekStart(d)
		assert.Equal(t, time.Monday, mon.Weekday(), d.Format(time.DateOnly))
		assert.Zero(t, mon.Hour())
		assert.False(t, mon.After(d))
		assert.True(t, d.Before(mon.AddDate(0, 0, 7)), d.Format(time.DateOnly))
	}
}

func TestDatePredicate(t *testing.T) {
	c := testClock()
	events := []model.Event{
		ev("mon", "2026-10-12"),
		ev("fri", "2026-10-16"),
		ev("sat", "2026-10-17"),
		ev("sun", "2026-10-18"),
		ev("nextmon", "2026-10-19"),
		ev("undated", ""),
	}

	week := DatePredicate(model.FilterState{DateRange: model.RangeThisWeek}, c)
	assert.Equal(t, []string{"mon", "fri", "sat", "sun"}, ids(Filter(events, week)))

	weekend := DatePredicate(model.FilterState{DateRange: model.RangeWeekend}, c)
	assert.Equal(t, []string{"sat", "sun"}, ids(Filter(events, weekend)))

	today := DatePredicate(model.FilterState{DateRange: model.RangeToday}, c)
	assert.Equal(t, []string{"fri"}, ids(Filter(events, today)))

	// An explicit date beats the range.
	explicit := DatePredicate(model.FilterState{DateRange: model.RangeToday, Date: "2026-10-19"}, c)
	assert.Equal(t, []string{"nextmon"}, ids(Filter(events, explicit)))
}

func TestQueryAndPlacePredicates(t *testing.T) {
	events := []model.Event{
		{ID: "a", Title: "Jazz i parken", AuthorProfile: &model.Profile{FullName: "Åsa Öberg"}},
		{ID: "b", Title: "Loppis", Info: "Stor JAZZ-skivhörna"},
		{ID: "c", Title: "Fika", Place: "https://www.google.com/maps/place/Slottsparken+Malm%C3%B6/@55.6,13.0"},
		{ID: "d", Title: "Quiz", Place: "Möllan"},
	}
	assert.Equal(t, []string{"a", "b"}, ids(Filter(events, QueryPredicate("jazz"))))
	assert.Equal(t, []string{"a"}, ids(Filter(events, QueryPredicate("ÅSA"))))
	assert.Equal(t, []string{"c"}, ids(Filter(events, PlacePredicate("slottsparken malmö"))))
	assert.Equal(t, []string{"d"}, ids(Filter(events, PlacePredicate("möllan"))))
}

func TestFilterCompositionIsOrderIndependent(t *testing.T) {
	c := testClock()
	events := []model.Event{
		{ID: "1", Title: "Jazz", Category: model.Ptr("music"), Date: model.Ptr("2026-10-17")},
		{ID: "2", Title: "Jazz", Category: model.Ptr("Music"), Date: model.Ptr("2026-10-20")},
		{ID: "3", Title: "Rock", Category: model.Ptr("Music"), Date: model.Ptr("2026-10-18")},
		{ID: "4", Title: "Jazzbrunch", Category: model.Ptr("Food & Drink"), Date: model.Ptr("2026-10-17")},
		{ID: "5", Title: "jazz", Category: model.Ptr("MUSIC"), Date: model.Ptr("2026-10-16")},
	}
	f := model.FilterState{Category: "Music", DateRange: model.RangeThisWeek, Query: "jazz"}
	preds := Predicates(f, c)
	require.Len(t, preds, 3)

	want := ids(Filter(events, preds...))
	assert.Equal(t, []string{"1", "5"}, want)

	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, o := range orders {
		got := ids(Filter(events, preds[o[0]], preds[o[1]], preds[o[2]]))
		assert.Equal(t, want, got, "order %v", o)

		// Chained single-predicate passes give the same set too.
		chained := Filter(Filter(Filter(events, preds[o[0]]), preds[o[1]]), preds[o[2]])
		assert.Equal(t, want, ids(chained))
	}
}

func TestSortSoonest(t *testing.T) {
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "undated-new", CreatedAt: created.Add(48 * time.Hour)},
		{ID: "late", Date: model.Ptr("2026-10-20"), CreatedAt: created},
		{ID: "early", Date: model.Ptr("2026-10-18"), CreatedAt: created},
		{ID: "early-evening", Date: model.Ptr("2026-10-18"), Time: model.Ptr("19:00"), CreatedAt: created},
		{ID: "tie-old", Date: model.Ptr("2026-10-19"), CreatedAt: created},
		{ID: "tie-new", Date: model.Ptr("2026-10-19"), CreatedAt: created.Add(time.Hour)},
		{ID: "undated-old", CreatedAt: created},
	}
	got := Sort(events, model.SortSoonest, stockholm)
	assert.Equal(t, []string{"early", "early-evening", "tie-new", "tie-old", "late", "undated-new", "undated-old"}, ids(got))
	assert.Equal(t, "undated-new", events[0].ID, "input must not be reordered")
}

func TestSortSoonestWithSharedIDs(t *testing.T) {
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{Title: "late", Date: model.Ptr("2026-10-20"), CreatedAt: created},
		{Title: "undated", CreatedAt: created},
		{Title: "early", Date: model.Ptr("2026-10-18"), CreatedAt: created},
	}
	got := Sort(events, model.SortSoonest, stockholm)
	titles := make([]string, 0, len(got))
	for _, e := range got {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"early", "late", "undated"}, titles)
}

func TestSortNewestAndPopular(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "a", CreatedAt: base, AttendeeCount: 5},
		{ID: "b", CreatedAt: base.Add(time.Hour), AttendeeCount: 1},
		{ID: "c", CreatedAt: base.Add(2 * time.Hour), AttendeeCount: 5},
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids(Sort(events, model.SortNewest, stockholm)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(Sort(events, model.SortPopular, stockholm)))
}

func TestPlaceLabel(t *testing.T) {
	m := PlaceLabel("https://www.google.com/maps/place/Folkets+Park/@55.59,13.0,17z")
	assert.True(t, m.IsMap)
	assert.Equal(t, "Folkets Park", m.Label)

	m = PlaceLabel("maps.google.com/?q=Stortorget%2C+Malm%C3%B6")
	assert.True(t, m.IsMap)
	assert.Equal(t, "https://maps.google.com/?q=Stortorget%2C+Malm%C3%B6", m.Href)
	assert.Equal(t, "Stortorget, Malmö", m.Label)

	m = PlaceLabel("https://maps.app.goo.gl/abc123")
	assert.True(t, m.IsMap)
	assert.Equal(t, "Öppna plats", m.Label)

	m = PlaceLabel("Möllevångstorget")
	assert.False(t, m.IsMap)
	assert.Equal(t, "Möllevångstorget", m.Label)
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=M%C3%B6llev%C3%A5ngstorget", m.Href)

	assert.Equal(t, PlaceMeta{}, PlaceLabel("  "))
}

func TestFormatting(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Nyss", TimeAgo(now.Add(-30*time.Second), now))
	assert.Equal(t, "5 min sedan", TimeAgo(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 timmar sedan", TimeAgo(now.Add(-3*time.Hour), now))
	assert.Equal(t, "1 dag sedan", TimeAgo(now.Add(-30*time.Hour), now))
	assert.Equal(t, "4 dagar sedan", TimeAgo(now.Add(-100*time.Hour), now))
	assert.Equal(t, "", TimeAgo(time.Time{}, now))

	assert.Equal(t, "13:45", FormatClock("13:45:00"))
	assert.Equal(t, "16 okt. 2026", FormatDate("2026-10-16"))
	assert.Equal(t, "1 st kommer", AttendeeLabel(1))

	assert.Equal(t, "KA", Initials("Kalle Anka"))
	assert.Equal(t, "KA", Initials("kalle"))
	assert.Equal(t, "AN", Initials(" "))
	assert.Equal(t, "ÅÖ", Initials("åsa öberg"))

	assert.Equal(t, "Sent", EndLabel(model.Event{EndTime: model.Ptr("sent")}))
	assert.Equal(t, "22:00", EndLabel(model.Event{EndTime: model.Ptr("22:00:00")}))
	assert.Equal(t, "", EndLabel(model.Event{}))
}

func TestPriceLabel(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"Gratis":     "Gratis",
		"free":       "Gratis",
		"0":          "Gratis",
		"150":        "150 kr",
		"150 kr":     "150 kr",
		"99,50 SEK":  "99,50 kr",
		"100-200kr":  "100-200kr",
		"Se hemsida": "Se hemsida",
	}
	for in, want := range cases {
		assert.Equal(t, want, PriceLabel(model.Ptr(in)), in)
	}
	assert.Equal(t, "", PriceLabel(nil))
}
