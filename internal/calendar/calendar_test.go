package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evboard/internal/model"
)

func parse(t *testing.T, body string) []*ical.VEvent {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	require.NoError(t, err)
	return cal.Events()
}

func TestExportTimedEvent(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	ev := model.Event{
		ID:        "e1",
		Title:     "Jazz på torget",
		Place:     "Stortorget",
		Info:      "Ta med filt",
		Date:      model.Ptr("2026-10-17"),
		Time:      model.Ptr("19:00"),
		EndTime:   model.Ptr("21:30"),
		CreatedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}

	events := parse(t, Export([]model.Event{ev}, loc))
	require.Len(t, events, 1)
	ve := events[0]

	assert.Equal(t, "e1@evboard", ve.Id())
	assert.Equal(t, "Jazz på torget", ve.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Stortorget", ve.GetProperty(ical.ComponentPropertyLocation).Value)

	start, err := ve.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2026, 10, 17, 19, 0, 0, 0, loc)), start)
	end, err := ve.GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2026, 10, 17, 21, 30, 0, 0, loc)), end)
}

func TestExportEndFallbacks(t *testing.T) {
	loc := time.UTC
	open := model.Event{ID: "open", Title: "Öppet", Date: model.Ptr("2026-10-17"), Time: model.Ptr("20:00")}
	late := model.Event{ID: "late", Title: "Klubb", Date: model.Ptr("2026-10-17"), Time: model.Ptr("23:00"), EndTime: model.Ptr("02:00")}

	events := parse(t, Export([]model.Event{open, late}, loc))
	require.Len(t, events, 2)

	end, err := events[0].GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2026, 10, 17, 21, 0, 0, 0, loc)), end)

	end, err = events[1].GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2026, 10, 18, 2, 0, 0, 0, loc)), end)
}

func TestExportAllDayAndUndated(t *testing.T) {
	events := parse(t, Export([]model.Event{
		{ID: "day", Title: "Marknad", Date: model.Ptr("2026-10-18")},
		{ID: "nodate", Title: "Någon gång"},
	}, time.UTC))

	require.Len(t, events, 1)
	dt := events[0].GetProperty(ical.ComponentPropertyDtStart)
	require.NotNil(t, dt)
	assert.Equal(t, "20261018", dt.Value)
}
