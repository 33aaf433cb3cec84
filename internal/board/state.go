package board

import (
	"evboard/internal/feed"
	"evboard/internal/model"
	"evboard/internal/saved"
	"evboard/internal/source"
)

type Mode string

const (
	ModeEvents Mode = "events"
	ModeFeed   Mode = "feed"
)

type StatusKind string

const (
	StatusNone  StatusKind = ""
	StatusInfo  StatusKind = "info"
	StatusAuth  StatusKind = "auth"
	StatusError StatusKind = "error"
)

// Status is the single user-visible message of the board.
type Status struct {
	Kind    StatusKind
	Message string
}

// FeedState is the alternate feed's own loading/error state.
type FeedState struct {
	Items   []feed.Item
	Query   string
	Results []feed.Item
	Loading bool
	Err     string
}

// State is the whole application state. Transitions never modify a State
// in place; Apply returns a new one.
type State struct {
	Events   []model.Event
	Loaded   bool
	LoadErr  string
	Filters  model.FilterState
	Selected string
	Saved    saved.Set
	Mode     Mode

	ViewerID string
	IsAdmin  bool

	Status     Status
	Feed       FeedState
	Moderation *source.Moderation
}

func initialState() State {
	return State{
		Filters: model.DefaultFilters(),
		Saved:   saved.NewSet(),
		Mode:    ModeEvents,
	}
}

func (s State) index(id string) int {
	for i := range s.Events {
		if s.Events[i].ID == id {
			return i
		}
	}
	return -1
}

// Event returns the loaded event with id.
func (s State) Event(id string) (model.Event, bool) {
	if i := s.index(id); i >= 0 {
		return s.Events[i], true
	}
	return model.Event{}, false
}

// CanDelete reports whether the delete control is shown for ev.
func (s State) CanDelete(ev model.Event) bool {
	if s.ViewerID == "" {
		return false
	}
	return s.IsAdmin || ev.OwnerID == s.ViewerID
}

// Clone returns a State sharing nothing mutable with s.
func (s State) Clone() State {
	out := s
	out.Events = make([]model.Event, len(s.Events))
	for i, ev := range s.Events {
		out.Events[i] = ev.Clone()
	}
	if s.Saved != nil {
		out.Saved = s.Saved.Clone()
	}
	out.Feed.Items = append([]feed.Item(nil), s.Feed.Items...)
	out.Feed.Results = append([]feed.Item(nil), s.Feed.Results...)
	return out
}

func (s State) withEvents() State {
	s.Events = append([]model.Event(nil), s.Events...)
	return s
}

// Intent is one state transition. Applying it yields the next state and
// the intent that undoes it.
type Intent interface {
	apply(State) (State, Intent)
}

// Apply runs intent against s. A nil intent leaves s unchanged.
func Apply(s State, intent Intent) (State, Intent) {
	if intent == nil {
		return s, nil
	}
	return intent.apply(s)
}

// AttendIntent is the optimistic local toggle: flag flipped and count
// moved by one.
type AttendIntent struct {
	EventID string
	Want    bool
}

func (in AttendIntent) apply(s State) (State, Intent) {
	i := s.index(in.EventID)
	if i < 0 {
		return s, nil
	}
	ev := s.Events[i]
	undo := RestoreIntent{EventID: ev.ID, Count: ev.AttendeeCount, Attending: ev.IsAttendingSelf, OwnerLocked: ev.IsOwnerLocked}
	if ev.IsAttendingSelf == in.Want {
		return s, undo
	}

	s = s.withEvents()
	ev.IsAttendingSelf = in.Want
	if in.Want {
		ev.AttendeeCount++
	} else if ev.AttendeeCount > 0 {
		ev.AttendeeCount--
	}
	ev.IsOwnerLocked = s.ViewerID != "" && ev.OwnerID == s.ViewerID && ev.IsAttendingSelf
	s.Events[i] = ev
	return s, undo
}

// RestoreIntent sets the derived attendance fields of one event exactly.
// It is the inverse of AttendIntent and also commits a fresh count.
type RestoreIntent struct {
	EventID     string
	Count       int
	Attending   bool
	OwnerLocked bool
}

func (in RestoreIntent) apply(s State) (State, Intent) {
	i := s.index(in.EventID)
	if i < 0 {
		return s, nil
	}
	ev := s.Events[i]
	undo := RestoreIntent{EventID: ev.ID, Count: ev.AttendeeCount, Attending: ev.IsAttendingSelf, OwnerLocked: ev.IsOwnerLocked}

	s = s.withEvents()
	ev.AttendeeCount = in.Count
	ev.IsAttendingSelf = in.Attending
	ev.IsOwnerLocked = in.OwnerLocked
	s.Events[i] = ev
	return s, undo
}

// RemoveIntent drops an event from the list, the selection and the saved
// set in one step.
type RemoveIntent struct {
	EventID string
}

func (in RemoveIntent) apply(s State) (State, Intent) {
	i := s.index(in.EventID)
	if i < 0 {
		return s, nil
	}
	undo := reinsertIntent{
		Event:       s.Events[i],
		Index:       i,
		WasSelected: s.Selected == in.EventID,
		WasSaved:    s.Saved.Has(in.EventID),
	}

	events := make([]model.Event, 0, len(s.Events)-1)
	events = append(events, s.Events[:i]...)
	events = append(events, s.Events[i+1:]...)
	s.Events = events
	if s.Selected == in.EventID {
		s.Selected = ""
	}
	if undo.WasSaved {
		s.Saved = s.Saved.Clone()
		delete(s.Saved, in.EventID)
	}
	return s, undo
}

type reinsertIntent struct {
	Event       model.Event
	Index       int
	WasSelected bool
	WasSaved    bool
}

func (in reinsertIntent) apply(s State) (State, Intent) {
	if s.index(in.Event.ID) >= 0 {
		return s, nil
	}
	idx := in.Index
	if idx > len(s.Events) {
		idx = len(s.Events)
	}
	events := make([]model.Event, 0, len(s.Events)+1)
	events = append(events, s.Events[:idx]...)
	events = append(events, in.Event)
	events = append(events, s.Events[idx:]...)
	s.Events = events
	if in.WasSelected {
		s.Selected = in.Event.ID
	}
	if in.WasSaved {
		s.Saved = s.Saved.Clone()
		s.Saved[in.Event.ID] = struct{}{}
	}
	return s, RemoveIntent{EventID: in.Event.ID}
}

// SelectIntent focuses one event. An empty or unknown id clears the
// selection.
type SelectIntent struct {
	EventID string
}

func (in SelectIntent) apply(s State) (State, Intent) {
	undo := SelectIntent{EventID: s.Selected}
	if in.EventID == "" || s.index(in.EventID) < 0 {
		s.Selected = ""
	} else {
		s.Selected = in.EventID
	}
	return s, undo
}

// SavedIntent flips membership of one event in the saved set.
type SavedIntent struct {
	EventID string
}

func (in SavedIntent) apply(s State) (State, Intent) {
	if in.EventID == "" {
		return s, nil
	}
	s.Saved = s.Saved.Clone()
	s.Saved.Toggle(in.EventID)
	return s, in
}

// FilterIntent replaces the filter state.
type FilterIntent struct {
	Filters model.FilterState
}

func (in FilterIntent) apply(s State) (State, Intent) {
	undo := FilterIntent{Filters: s.Filters}
	s.Filters = in.Filters.Normalized()
	return s, undo
}

// ModeIntent switches between the board and the alternate feed. Filters
// are kept so leaving the feed re-applies them.
type ModeIntent struct {
	Mode Mode
}

func (in ModeIntent) apply(s State) (State, Intent) {
	undo := ModeIntent{Mode: s.Mode}
	if in.Mode != ModeFeed {
		in.Mode = ModeEvents
	}
	s.Mode = in.Mode
	return s, undo
}
