package render

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// View is everything one page render needs. It is built by a pure
// projection of the board state and holds no references back into it.
type View struct {
	Now      time.Time
	Mode     string
	LoggedIn bool
	IsAdmin  bool

	Status  Status
	Filters Filters

	Cards        []Card
	CountLabel   string
	EmptyMessage string
	Details      *Card
	Markers      []Marker

	ShowSaved  bool
	SavedCards []Card

	Feed  FeedView
	Admin *AdminView
}

// InFeed reports whether the alternate feed replaces the board.
func (v View) InFeed() bool { return v.Mode == "feed" }

type Status struct {
	Kind    string
	Message string
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

type Filters struct {
	Categories []Option
	Ranges     []Option
	Sorts      []Option
	Query      string
	Place      string
	Date       string
	IsDefault  bool
}

// Card is one event as shown in the list, the details panel and the admin
// panel.
type Card struct {
	ID         string
	Title      string
	Author     string
	Initials   string
	AvatarURL  string
	Badge      string
	TimeAgo    string
	Category   string
	Price      string
	PlaceLabel string
	PlaceHref  string
	Date       string
	Time       string
	End        string
	Info       string
	Images     []string

	AttendeeLabel  string
	Attending      bool
	AttendDisabled bool
	AttendHint     string
	OwnerLocked    bool

	Saved     bool
	CanDelete bool
	Selected  bool
}

// Marker is a pseudo-positioned pin on the map panel. X and Y are
// percentages of the panel size.
type Marker struct {
	ID       string
	Title    string
	X, Y     float64
	Selected bool
}

const markerMargin = 6.0

// NewMarker places id deterministically: the same id always lands on the
// same spot.
func NewMarker(id, title string, selected bool) Marker {
	h := xxhash.Sum64String(id)
	span := 100 - 2*markerMargin
	x := float64(h&0xffffffff) / float64(1<<32)
	y := float64(h>>32) / float64(1<<32)
	return Marker{
		ID:       id,
		Title:    title,
		X:        markerMargin + x*span,
		Y:        markerMargin + y*span,
		Selected: selected,
	}
}

type FeedItem struct {
	ID       string
	Title    string
	Summary  string
	Type     string
	When     string
	Location string
	Link     string
}

type FeedView struct {
	Items   []FeedItem
	Query   string
	Loading bool
	Message string
}

type ProfileRow struct {
	ID    string
	Name  string
	Badge string
}

type ReportRow struct {
	ID         string
	EventID    string
	EventTitle string
	Reason     string
	When       string
}

type AdminView struct {
	Events   []Card
	Profiles []ProfileRow
	Reports  []ReportRow
}

// AttendeeRow is one line of the attendee list.
type AttendeeRow struct {
	Name      string
	Initials  string
	AvatarURL string
}
