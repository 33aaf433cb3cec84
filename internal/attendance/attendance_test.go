package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evboard/internal/model"
	"evboard/internal/supabase"
)

type fakeStore struct {
	rows     any
	err      error
	selects  []supabase.Query
	inserted any
	deleted  []supabase.Filter
}

func (f *fakeStore) Select(_ context.Context, _ string, q supabase.Query, out any) error {
	f.selects = append(f.selects, q)
	if f.err != nil {
		return f.err
	}
	raw, _ := json.Marshal(f.rows)
	return json.Unmarshal(raw, out)
}

func (f *fakeStore) Insert(_ context.Context, _ string, rows any) error {
	f.inserted = rows
	return f.err
}

func (f *fakeStore) Delete(_ context.Context, _ string, filters []supabase.Filter, _ any) error {
	f.deleted = filters
	return f.err
}

func TestMetaCountsAndMine(t *testing.T) {
	db := &fakeStore{rows: []map[string]string{
		{"event_id": "a", "user_id": "u1"},
		{"event_id": "a", "user_id": "me"},
		{"event_id": "a", "user_id": "me"},
		{"event_id": "b", "user_id": "u2"},
	}}
	meta, err := New(db).Meta(context.Background(), []string{"a", "b", "c"}, "me")
	require.NoError(t, err)

	assert.Equal(t, 2, meta.Count("a"))
	assert.Equal(t, 1, meta.Count("b"))
	assert.Equal(t, 0, meta.Count("c"))
	assert.True(t, meta.Mine["a"])
	assert.False(t, meta.Mine["b"])

	require.Len(t, db.selects, 1)
	assert.Equal(t, "in", db.selects[0].Filters[0].Op)
}

func TestMetaEmptyInputMakesNoRequest(t *testing.T) {
	db := &fakeStore{}
	meta, err := New(db).Meta(context.Background(), nil, "me")
	require.NoError(t, err)
	assert.Empty(t, meta.Counts)
	assert.Empty(t, db.selects)
}

func TestAttachDerivesOwnerLock(t *testing.T) {
	meta := Meta{Counts: map[string]int{"a": 3, "b": 1}, Mine: map[string]bool{"a": true}}
	events := []model.Event{{ID: "a", OwnerID: "me"}, {ID: "b", OwnerID: "me"}, {ID: "c"}}
	meta.Attach(events, "me")

	assert.Equal(t, 3, events[0].AttendeeCount)
	assert.True(t, events[0].IsOwnerLocked)
	assert.False(t, events[1].IsOwnerLocked)
	assert.Equal(t, 0, events[2].AttendeeCount)
}

func TestListOrdersAscending(t *testing.T) {
	db := &fakeStore{rows: []map[string]any{
		{"user_id": "u1", "created_at": "2026-10-01T10:00:00Z", "profiles": map[string]any{"id": "u1", "username": "a"}},
	}}
	rows, err := New(db).List(context.Background(), "ev")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ev", rows[0].EventID)
	assert.Equal(t, "a", rows[0].Profile.DisplayName())
	assert.Equal(t, "created_at.asc", db.selects[0].Order)
}

func TestAttendAndCancel(t *testing.T) {
	db := &fakeStore{}
	j := New(db)
	require.NoError(t, j.Attend(context.Background(), "ev", "me"))
	assert.Equal(t, []map[string]string{{"event_id": "ev", "user_id": "me"}}, db.inserted)

	require.NoError(t, j.Cancel(context.Background(), "ev", "me"))
	assert.Equal(t, []supabase.Filter{supabase.Eq("event_id", "ev"), supabase.Eq("user_id", "me")}, db.deleted)

	assert.Error(t, j.Attend(context.Background(), "ev", ""))

	db.err = errors.New("offline")
	assert.Error(t, j.Cancel(context.Background(), "ev", "me"))
}
