package attendance

import (
	"context"
	"errors"
	"fmt"

	"evboard/internal/model"
	"evboard/internal/supabase"
)

const table = "event_attendees"

// Store is the subset of the PostgREST client used for attendance rows.
type Store interface {
	Select(ctx context.Context, table string, q supabase.Query, out any) error
	Insert(ctx context.Context, table string, rows any) error
	Delete(ctx context.Context, table string, filters []supabase.Filter, out any) error
}

// Meta is attendance derived from one batch read.
type Meta struct {
	Counts map[string]int
	Mine   map[string]bool
}

func emptyMeta() Meta {
	return Meta{Counts: map[string]int{}, Mine: map[string]bool{}}
}

// Count is Counts[id] with a zero default.
func (m Meta) Count(id string) int { return m.Counts[id] }

// Attach writes the derived fields onto events in place. Owner lock is
// derived as well: the viewer owns the event and is attending it.
func (m Meta) Attach(events []model.Event, viewerID string) {
	for i := range events {
		ev := &events[i]
		ev.AttendeeCount = m.Counts[ev.ID]
		ev.IsAttendingSelf = m.Mine[ev.ID]
		ev.IsOwnerLocked = viewerID != "" && ev.OwnerID == viewerID && ev.IsAttendingSelf
	}
}

type Joiner struct {
	db Store
}

func New(db Store) *Joiner {
	return &Joiner{db: db}
}

// Meta reads the attendance rows of eventIDs in a single request and
// derives counts and the viewer's own rows. Empty input makes no request.
func (j *Joiner) Meta(ctx context.Context, eventIDs []string, viewerID string) (Meta, error) {
	meta := emptyMeta()
	if len(eventIDs) == 0 {
		return meta, nil
	}

	var rows []struct {
		EventID string `json:"event_id"`
		UserID  string `json:"user_id"`
	}
	err := j.db.Select(ctx, table, supabase.Query{
		Select:  "event_id, user_id",
		Filters: []supabase.Filter{supabase.In("event_id", eventIDs)},
	}, &rows)
	if err != nil {
		return meta, fmt.Errorf("attendance meta: %w", err)
	}

	// Distinct (event_id, user_id) pairs only.
	seen := make(map[[2]string]struct{}, len(rows))
	for _, r := range rows {
		key := [2]string{r.EventID, r.UserID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		meta.Counts[r.EventID]++
		if viewerID != "" && r.UserID == viewerID {
			meta.Mine[r.EventID] = true
		}
	}
	return meta, nil
}

// List returns the attendees of one event, earliest first, with profiles.
func (j *Joiner) List(ctx context.Context, eventID string) ([]model.AttendeeRow, error) {
	var rows []model.AttendeeRow
	err := j.db.Select(ctx, table, supabase.Query{
		Select:  "user_id, created_at, profiles:user_id ( id, username, full_name, avatar_url )",
		Filters: []supabase.Filter{supabase.Eq("event_id", eventID)},
		Order:   "created_at.asc",
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("attendance list %s: %w", eventID, err)
	}
	for i := range rows {
		rows[i].EventID = eventID
	}
	return rows, nil
}

var errNoUser = errors.New("attendance: user id is empty")

// Attend inserts the (event, user) row.
func (j *Joiner) Attend(ctx context.Context, eventID, userID string) error {
	if userID == "" {
		return errNoUser
	}
	row := []map[string]string{{"event_id": eventID, "user_id": userID}}
	if err := j.db.Insert(ctx, table, row); err != nil {
		return fmt.Errorf("attend %s: %w", eventID, err)
	}
	return nil
}

// Cancel deletes the (event, user) row.
func (j *Joiner) Cancel(ctx context.Context, eventID, userID string) error {
	if userID == "" {
		return errNoUser
	}
	err := j.db.Delete(ctx, table, []supabase.Filter{
		supabase.Eq("event_id", eventID),
		supabase.Eq("user_id", userID),
	}, nil)
	if err != nil {
		return fmt.Errorf("cancel attendance %s: %w", eventID, err)
	}
	return nil
}
