package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerIsDeterministicAndInBounds(t *testing.T) {
	a := NewMarker("event-1", "A", false)
	b := NewMarker("event-1", "A", true)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Y, b.Y)

	for _, id := range []string{"", "x", "event-2", "f47ac10b-58cc-4372-a567-0e02b2c3d479"} {
		m := NewMarker(id, "", false)
		assert.GreaterOrEqual(t, m.X, markerMargin)
		assert.LessOrEqual(t, m.X, 100-markerMargin)
		assert.GreaterOrEqual(t, m.Y, markerMargin)
		assert.LessOrEqual(t, m.Y, 100-markerMargin)
	}
	assert.NotEqual(t, NewMarker("event-1", "", false).X, NewMarker("event-2", "", false).X)
}

func TestPageRendersBoard(t *testing.T) {
	card := Card{
		ID:             "e1",
		Title:          "Jazz <live>",
		Author:         "Kalle",
		Initials:       "KA",
		Badge:          "verified",
		AttendeeLabel:  "2 st kommer",
		AttendDisabled: true,
		AttendHint:     "Logga in för att anmäla dig",
		CanDelete:      true,
		PlaceLabel:     "Folkets Park",
		PlaceHref:      "https://www.google.com/maps/search/?api=1&query=Folkets+Park",
	}
	v := View{
		Mode:       "events",
		Cards:      []Card{card},
		CountLabel: "1 händelse",
		Details:    &card,
		Markers:    []Marker{NewMarker("e1", "Jazz", true)},
		Status:     Status{Kind: "error", Message: "Kunde inte anmäla."},
		Admin:      &AdminView{Events: []Card{card}, Profiles: []ProfileRow{{ID: "u", Name: "Kalle", Badge: "admin"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, Page(&buf, v))
	html := buf.String()

	assert.Contains(t, html, `data-ready="true"`)
	assert.Contains(t, html, "Jazz &lt;live&gt;")
	assert.NotContains(t, html, "<live>")
	assert.Contains(t, html, "2 st kommer")
	assert.Contains(t, html, "1 händelse")
	assert.Contains(t, html, "Kunde inte anmäla.")
	assert.Contains(t, html, `action="/events/e1/delete"`)
	assert.Contains(t, html, "Moderering")
	assert.Contains(t, html, "left:")
	assert.Equal(t, 2, strings.Count(html, "Ta bort"))
}

func TestPageEmptyAndFeed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, View{Mode: "events", EmptyMessage: "Inga händelser matchar dina filter."}))
	assert.Contains(t, buf.String(), "Inga händelser matchar dina filter.")

	buf.Reset()
	require.NoError(t, Page(&buf, View{Mode: "feed", Feed: FeedView{Message: "Kunde inte hämta polisens händelser just nu."}}))
	assert.Contains(t, buf.String(), "Kunde inte hämta polisens händelser just nu.")
	assert.NotContains(t, buf.String(), "event-count")

	buf.Reset()
	require.NoError(t, Page(&buf, View{Mode: "feed", Feed: FeedView{Items: []FeedItem{{ID: "1", Title: "Brand, Lund", Link: "https://polisen.se/x"}}}}))
	assert.Contains(t, buf.String(), "Brand, Lund")
}

func TestAttendeesFragment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Attendees(&buf, "Jazz", []AttendeeRow{{Name: "Åsa", Initials: "ÅS"}}))
	assert.Contains(t, buf.String(), "Åsa")
	assert.Contains(t, buf.String(), "Deltagarlista: Jazz")

	buf.Reset()
	require.NoError(t, Attendees(&buf, "", nil))
	assert.Contains(t, buf.String(), "Inga anmälda ännu.")
}
