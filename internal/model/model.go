package model

import (
	"strings"
	"time"
)

// LateEnd is the stored end_time value meaning "ends late / unspecified".
const LateEnd = "sent"

// FallbackName is shown when a profile has neither full name nor username.
const FallbackName = "Användare"

// Profile is the public profile row of a user, looked up by owner id.
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	IsAdmin    bool   `json:"is_admin,omitempty"`
	IsVerified bool   `json:"is_verified,omitempty"`
}

// Badge is the single badge a profile can carry.
type Badge string

const (
	BadgeNone     Badge = ""
	BadgeAdmin    Badge = "admin"
	BadgeVerified Badge = "verified"
)

// DisplayName applies full_name > username > fallback precedence.
// A nil profile yields the fallback.
func (p *Profile) DisplayName() string {
	if p == nil {
		return FallbackName
	}
	if s := strings.TrimSpace(p.FullName); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Username); s != "" {
		return s
	}
	return FallbackName
}

// Badge applies admin > verified > none precedence.
func (p *Profile) Badge() Badge {
	switch {
	case p == nil:
		return BadgeNone
	case p.IsAdmin:
		return BadgeAdmin
	case p.IsVerified:
		return BadgeVerified
	default:
		return BadgeNone
	}
}

// Event is a community event record plus fields derived on the client.
//
// Optional store columns are pointers; use the Has* helpers rather than
// comparing against zero values.
type Event struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Category  *string   `json:"category,omitempty"`
	Price     *string   `json:"price,omitempty"`
	Place     string    `json:"place"`
	Date      *string   `json:"date,omitempty"`
	Time      *string   `json:"time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Info      string    `json:"info"`
	ImageURLs []string  `json:"image_urls"`
	OwnerID   string    `json:"user_id"`

	AuthorProfile *Profile `json:"profiles,omitempty"`

	// Derived, never written back.
	AttendeeCount   int  `json:"attendee_count"`
	IsAttendingSelf bool `json:"is_attending_self"`
	IsOwnerLocked   bool `json:"is_owner_locked"`
}

func (e Event) HasCategory() bool { return present(e.Category) }
func (e Event) HasPrice() bool    { return present(e.Price) }
func (e Event) HasDate() bool     { return present(e.Date) }
func (e Event) HasTime() bool     { return present(e.Time) }
func (e Event) HasEndTime() bool  { return present(e.EndTime) }

// Value returns the trimmed pointee or "".
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Ptr returns a pointer to s; handy for building events in code and tests.
func Ptr(s string) *string { return &s }

func present(s *string) bool { return Value(s) != "" }

// AuthorName is the display name of the author profile.
func (e Event) AuthorName() string {
	return e.AuthorProfile.DisplayName()
}

// IsLateEnd reports whether the event is marked as ending late.
func (e Event) IsLateEnd() bool {
	return strings.EqualFold(Value(e.EndTime), LateEnd)
}

// Clone returns a copy whose slices and pointers are not shared with e.
func (e Event) Clone() Event {
	out := e
	out.Category = clonePtr(e.Category)
	out.Price = clonePtr(e.Price)
	out.Date = clonePtr(e.Date)
	out.Time = clonePtr(e.Time)
	out.EndTime = clonePtr(e.EndTime)
	if e.ImageURLs != nil {
		out.ImageURLs = append([]string(nil), e.ImageURLs...)
	}
	if e.AuthorProfile != nil {
		p := *e.AuthorProfile
		out.AuthorProfile = &p
	}
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// AttendeeRow is one attendance row joined with the attendee's profile.
type AttendeeRow struct {
	EventID   string    `json:"event_id,omitempty"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Profile   *Profile  `json:"profiles,omitempty"`
}

// Report is a moderation report filed against an event.
type Report struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
