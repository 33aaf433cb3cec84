package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNamePrecedence(t *testing.T) {
	var nilProfile *Profile
	assert.Equal(t, FallbackName, nilProfile.DisplayName())
	assert.Equal(t, FallbackName, (&Profile{}).DisplayName())
	assert.Equal(t, "kalle", (&Profile{Username: "kalle"}).DisplayName())
	assert.Equal(t, "Kalle Anka", (&Profile{Username: "kalle", FullName: "Kalle Anka"}).DisplayName())
}

func TestBadgePrecedence(t *testing.T) {
	assert.Equal(t, BadgeAdmin, (&Profile{IsAdmin: true, IsVerified: true}).Badge())
	assert.Equal(t, BadgeVerified, (&Profile{IsVerified: true}).Badge())
	assert.Equal(t, BadgeNone, (&Profile{}).Badge())
}

func TestEventPresenceHelpers(t *testing.T) {
	ev := Event{Category: Ptr("  "), Time: Ptr("18:00"), EndTime: Ptr("SENT")}
	assert.False(t, ev.HasCategory())
	assert.False(t, ev.HasDate())
	assert.True(t, ev.HasTime())
	assert.True(t, ev.IsLateEnd())
}

func TestCloneDoesNotShare(t *testing.T) {
	ev := Event{ID: "a", Date: Ptr("2026-10-16"), ImageURLs: []string{"x"}, AuthorProfile: &Profile{ID: "u"}}
	c := ev.Clone()
	*c.Date = "2026-10-17"
	c.ImageURLs[0] = "y"
	c.AuthorProfile.ID = "v"

	assert.Equal(t, "2026-10-16", *ev.Date)
	assert.Equal(t, "x", ev.ImageURLs[0])
	assert.Equal(t, "u", ev.AuthorProfile.ID)
}

func TestFilterStateNormalized(t *testing.T) {
	f := FilterState{DateRange: "WEEKEND", Sort: "bogus", Query: "  jazz "}.Normalized()
	assert.Equal(t, CategoryAll, f.Category)
	assert.Equal(t, RangeWeekend, f.DateRange)
	assert.Equal(t, SortNewest, f.Sort)
	assert.Equal(t, "jazz", f.Query)
	assert.False(t, f.IsDefault())
	assert.True(t, DefaultFilters().IsDefault())
}
