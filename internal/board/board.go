package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"evboard/internal/attendance"
	"evboard/internal/feed"
	appLog "evboard/internal/log"
	"evboard/internal/metrics"
	"evboard/internal/model"
	"evboard/internal/pipeline"
	"evboard/internal/saved"
	"evboard/internal/session"
	"evboard/internal/source"
)

var (
	ErrNotLoggedIn = errors.New("board: viewer is not logged in")
	ErrOwnerLocked = errors.New("board: owner cannot cancel own attendance")
	ErrStale       = errors.New("board: result superseded by a newer query")
	ErrNotFound    = errors.New("board: event not loaded")
	ErrForbidden   = errors.New("board: only the owner or an admin may delete")
)

// User-facing messages.
const (
	msgMustLogIn     = "Du behöver vara inloggad för att markera att du kommer."
	msgOwnerLocked   = "Du är arrangör och står alltid som kommande."
	msgAttendFailed  = "Kunde inte anmäla. Försök igen."
	msgCancelFailed  = "Kunde inte avanmäla. Försök igen."
	msgNotFound      = "Händelsen finns inte längre."
	msgDeleteDenied  = "Du får inte ta bort den här händelsen."
	msgDeleteFailed  = "Kunde inte ta bort händelsen."
	msgDeleted       = "Händelsen togs bort."
	msgLoadFailed    = "Kunde inte ladda händelser just nu."
	msgSaveFailed    = "Kunde inte spara."
	msgFeedFailed    = "Kunde inte hämta polisens händelser just nu."
	msgFeedEmpty     = "Inga händelser från polisen just nu."
	msgFeedNoResults = "Inga händelser hittades för %q."
)

// EventSource is the remote event store.
type EventSource interface {
	Load(ctx context.Context) (source.Result, error)
	DeleteEvent(ctx context.Context, id string) error
	LoadProfile(ctx context.Context, id string) (*model.Profile, error)
	LoadModeration(ctx context.Context) (source.Moderation, error)
}

// Attendance reads and writes attendance rows.
type Attendance interface {
	Meta(ctx context.Context, eventIDs []string, viewerID string) (attendance.Meta, error)
	List(ctx context.Context, eventID string) ([]model.AttendeeRow, error)
	Attend(ctx context.Context, eventID, userID string) error
	Cancel(ctx context.Context, eventID, userID string) error
}

// Feed is the alternate public feed.
type Feed interface {
	Fetch(ctx context.Context, force bool) ([]feed.Item, error)
	Search(ctx context.Context, query string) ([]feed.Item, error)
}

type Options struct {
	Source     EventSource
	Attendance Attendance
	Feed       Feed
	Saved      saved.Store
	Metrics    *metrics.Metrics
	Viewer     session.Viewer
	Location   *time.Location
	Now        func() time.Time
}

// Board owns the application state. All methods are safe for concurrent
// use; the lock is never held across a network call.
type Board struct {
	src     EventSource
	att     Attendance
	feed    Feed
	store   saved.Store
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// New builds a board and reads the saved set once.
func New(ctx context.Context, opts Options) *Board {
	b := &Board{
		src:     opts.Source,
		att:     opts.Attendance,
		feed:    opts.Feed,
		store:   opts.Saved,
		metrics: opts.Metrics,
		loc:     opts.Location,
		now:     opts.Now,
		state:   initialState(),
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.state.ViewerID = opts.Viewer.UserID
	b.state.IsAdmin = opts.Viewer.IsAdmin

	if b.store != nil {
		set, err := b.store.Load(ctx)
		if err != nil {
			appLog.Error("saved set load failed", err)
		} else {
			b.state.Saved = set
		}
	}
	return b
}

// Clock is the board's current time and zone.
func (b *Board) Clock() pipeline.Clock {
	return pipeline.Clock{Now: b.now(), Loc: b.loc}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

func (b *Board) commit(intent Intent) Intent {
	var undo Intent
	b.state, undo = Apply(b.state, intent)
	return undo
}

func (b *Board) setStatus(kind StatusKind, msg string) {
	b.mu.Lock()
	b.state.Status = Status{Kind: kind, Message: msg}
	b.mu.Unlock()
}

// ClearStatus drops the current message.
func (b *Board) ClearStatus() {
	b.setStatus(StatusNone, "")
}

// Reload reads the event list, merges attendance, drops expired events
// and re-resolves the selection. A failure leaves an empty list with a
// message; it is not retried.
func (b *Board) Reload(ctx context.Context) error {
	b.mu.Lock()
	viewer := b.state.ViewerID
	b.mu.Unlock()

	res, err := b.src.Load(ctx)
	if err != nil {
		appLog.Error("event load failed", err)
		b.mu.Lock()
		b.state.Events = nil
		b.state.Loaded = true
		b.state.LoadErr = msgLoadFailed
		b.state.Selected = ""
		b.mu.Unlock()
		return fmt.Errorf("reload: %w", err)
	}

	events := res.Events
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	meta, err := b.att.Meta(ctx, ids, viewer)
	if err != nil {
		appLog.Warn("attendance meta unavailable", "err", err)
		meta = attendance.Meta{}
	}
	meta.Attach(events, viewer)
	events = pipeline.ExcludeExpired(events, b.Clock())

	isAdmin, mod := b.loadAdmin(ctx, viewer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Events = events
	b.state.Loaded = true
	b.state.LoadErr = ""
	if viewer != "" {
		b.state.IsAdmin = isAdmin
	}
	b.state.Moderation = mod
	b.commit(SelectIntent{EventID: b.state.Selected})
	appLog.Info("board reloaded", "events", len(events), "variant", res.Variant, "viewer", viewer != "")
	return nil
}

// loadAdmin resolves the admin flag from the viewer's own profile and, for
// admins, the moderation lists.
func (b *Board) loadAdmin(ctx context.Context, viewer string) (bool, *source.Moderation) {
	if viewer == "" {
		return false, nil
	}
	p, err := b.src.LoadProfile(ctx, viewer)
	if err != nil {
		appLog.Warn("viewer profile unavailable", "err", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.state.IsAdmin, b.state.Moderation
	}
	if p == nil || !p.IsAdmin {
		return false, nil
	}
	mod, err := b.src.LoadModeration(ctx)
	if err != nil {
		appLog.Warn("moderation lists unavailable", "err", err)
		return true, nil
	}
	return true, &mod
}

// SetAttendance optimistically toggles the viewer's attendance. The local
// change is visible before the store answers and is rolled back exactly
// on failure.
func (b *Board) SetAttendance(ctx context.Context, eventID string, want bool) bool {
	ok, err := b.setAttendance(ctx, eventID, want)
	kind := "attend"
	if !want {
		kind = "cancel"
	}
	if !errors.Is(err, ErrNotLoggedIn) {
		b.metrics.ObserveMutation(kind, err)
	}
	return ok
}

func (b *Board) setAttendance(ctx context.Context, eventID string, want bool) (bool, error) {
	b.mu.Lock()
	viewer := b.state.ViewerID
	if viewer == "" {
		b.state.Status = Status{Kind: StatusAuth, Message: msgMustLogIn}
		b.mu.Unlock()
		return false, ErrNotLoggedIn
	}
	ev, found := b.state.Event(eventID)
	if !found {
		b.state.Status = Status{Kind: StatusError, Message: msgNotFound}
		b.mu.Unlock()
		return false, ErrNotFound
	}
	if !want && ev.IsOwnerLocked {
		b.state.Status = Status{Kind: StatusInfo, Message: msgOwnerLocked}
		b.mu.Unlock()
		return false, ErrOwnerLocked
	}
	undo := b.commit(AttendIntent{EventID: eventID, Want: want})
	b.mu.Unlock()

	var err error
	if want {
		err = b.att.Attend(ctx, eventID, viewer)
	} else {
		err = b.att.Cancel(ctx, eventID, viewer)
	}
	if err != nil {
		appLog.Error("attendance mutation failed, rolling back", err, "event", eventID, "want", want)
		msg := msgAttendFailed
		if !want {
			msg = msgCancelFailed
		}
		b.mu.Lock()
		b.commit(undo)
		b.state.Status = Status{Kind: StatusError, Message: msg}
		b.mu.Unlock()
		return false, err
	}

	// Confirmed: replace the local guess with the store's count.
	meta, err := b.att.Meta(ctx, []string{eventID}, viewer)
	if err != nil {
		appLog.Warn("attendance refresh failed", "event", eventID, "err", err)
		return true, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.state.Event(eventID); ok {
		mine := meta.Mine[eventID]
		b.commit(RestoreIntent{
			EventID:     eventID,
			Count:       meta.Count(eventID),
			Attending:   mine,
			OwnerLocked: cur.OwnerID == viewer && mine,
		})
	}
	return true, nil
}

// DeleteEvent deletes an event in the store and, once confirmed, removes
// it from the list, the selection and the saved set in one update.
func (b *Board) DeleteEvent(ctx context.Context, eventID string) bool {
	err := b.deleteEvent(ctx, eventID)
	b.metrics.ObserveMutation("delete", err)
	return err == nil
}

func (b *Board) deleteEvent(ctx context.Context, eventID string) error {
	b.mu.Lock()
	ev, found := b.state.Event(eventID)
	switch {
	case b.state.ViewerID == "":
		b.state.Status = Status{Kind: StatusAuth, Message: msgDeleteDenied}
		b.mu.Unlock()
		return ErrNotLoggedIn
	case !found:
		b.state.Status = Status{Kind: StatusError, Message: msgNotFound}
		b.mu.Unlock()
		return ErrNotFound
	case !b.state.CanDelete(ev):
		b.state.Status = Status{Kind: StatusAuth, Message: msgDeleteDenied}
		b.mu.Unlock()
		return ErrForbidden
	}
	b.mu.Unlock()

	if err := b.src.DeleteEvent(ctx, eventID); err != nil {
		appLog.Error("delete failed", err, "event", eventID)
		msg := msgDeleteFailed
		if errors.Is(err, source.ErrNotPermitted) {
			msg = msgDeleteDenied
		}
		b.setStatus(StatusError, msg)
		return err
	}

	b.mu.Lock()
	undo := b.commit(RemoveIntent{EventID: eventID})
	b.state.Status = Status{Kind: StatusInfo, Message: msgDeleted}
	var snapshot saved.Set
	if r, ok := undo.(reinsertIntent); ok && r.WasSaved {
		snapshot = b.state.Saved.Clone()
	}
	b.mu.Unlock()

	if snapshot != nil {
		b.persistSaved(ctx, snapshot)
	}
	return nil
}

// Select focuses an event; "" clears.
func (b *Board) Select(eventID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commit(SelectIntent{EventID: eventID})
}

// ToggleSaved flips an event in the saved set, persists the set and
// reports whether the event is now saved.
func (b *Board) ToggleSaved(ctx context.Context, eventID string) bool {
	b.mu.Lock()
	b.commit(SavedIntent{EventID: eventID})
	now := b.state.Saved.Has(eventID)
	snapshot := b.state.Saved.Clone()
	b.mu.Unlock()

	b.persistSaved(ctx, snapshot)
	return now
}

// PruneSaved drops saved ids that are not in the loaded list and rewrites
// the store when anything changed. Called whenever the saved view renders.
func (b *Board) PruneSaved(ctx context.Context) {
	b.mu.Lock()
	if !b.state.Loaded || b.state.LoadErr != "" {
		b.mu.Unlock()
		return
	}
	live := make(map[string]bool, len(b.state.Events))
	for _, ev := range b.state.Events {
		live[ev.ID] = true
	}
	next := b.state.Saved.Clone()
	if !next.Prune(live) {
		b.mu.Unlock()
		return
	}
	b.state.Saved = next
	snapshot := next.Clone()
	b.mu.Unlock()

	b.persistSaved(ctx, snapshot)
}

func (b *Board) persistSaved(ctx context.Context, s saved.Set) {
	if b.store == nil {
		return
	}
	if err := b.store.Save(ctx, s); err != nil {
		appLog.Error("saved set write failed", err)
		b.setStatus(StatusError, msgSaveFailed)
	}
}

// SetFilters replaces the active filters.
func (b *Board) SetFilters(f model.FilterState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commit(FilterIntent{Filters: f})
}

// ClearFilters restores the default filters.
func (b *Board) ClearFilters() {
	var f model.FilterState
	f.Reset()
	b.SetFilters(f)
}

// EnterFeed switches to the alternate feed and loads it, from the session
// cache unless force is set.
func (b *Board) EnterFeed(ctx context.Context, force bool) error {
	b.mu.Lock()
	b.commit(ModeIntent{Mode: ModeFeed})
	b.state.Feed.Loading = true
	b.state.Feed.Err = ""
	b.mu.Unlock()

	items, err := b.feed.Fetch(ctx, force)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Feed.Loading = false
	switch {
	case errors.Is(err, feed.ErrEmpty):
		b.state.Feed.Items = nil
		b.state.Feed.Err = msgFeedEmpty
	case err != nil:
		appLog.Error("feed fetch failed", err)
		b.state.Feed.Err = msgFeedFailed
	default:
		b.state.Feed.Items = items
	}
	return err
}

// LeaveFeed returns to the board with the last filters.
func (b *Board) LeaveFeed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commit(ModeIntent{Mode: ModeEvents})
	b.state.Feed.Loading = false
}

// SearchFeed runs a location search. When another search was started
// before this one finished, the result is dropped and ErrStale returned.
func (b *Board) SearchFeed(ctx context.Context, query string) error {
	b.mu.Lock()
	b.state.Feed.Query = query
	if query == "" {
		b.state.Feed.Results = nil
		b.state.Feed.Err = ""
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	items, err := b.feed.Search(ctx, query)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Feed.Query != query {
		return ErrStale
	}
	switch {
	case errors.Is(err, feed.ErrEmpty):
		b.state.Feed.Results = []feed.Item{}
		b.state.Feed.Err = fmt.Sprintf(msgFeedNoResults, query)
	case err != nil:
		appLog.Error("feed search failed", err, "query", query)
		b.state.Feed.Results = nil
		b.state.Feed.Err = msgFeedFailed
	default:
		b.state.Feed.Results = items
		b.state.Feed.Err = ""
	}
	return err
}

// Attendees lists who is coming to an event, earliest first.
func (b *Board) Attendees(ctx context.Context, eventID string) ([]model.AttendeeRow, error) {
	return b.att.List(ctx, eventID)
}
