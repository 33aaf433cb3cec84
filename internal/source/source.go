package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	appLog "evboard/internal/log"
	"evboard/internal/metrics"
	"evboard/internal/model"
	"evboard/internal/supabase"
)

// Querier is the subset of the PostgREST client the adapter needs.
type Querier interface {
	Select(ctx context.Context, table string, q supabase.Query, out any) error
	Delete(ctx context.Context, table string, filters []supabase.Filter, out any) error
}

var (
	// ErrExhausted means every field-set variant failed with a missing
	// column error.
	ErrExhausted = errors.New("source: all field-set variants failed")
	// ErrNotPermitted is returned when a delete matched no row, which is
	// how row-level security rejects it.
	ErrNotPermitted = errors.New("source: not permitted")
)

const (
	eventColumns    = "id, created_at, title, place, date, time, end_time, info, image_urls, user_id"
	optionalColumns = ", category, price"

	profileFull    = "id, username, full_name, avatar_url, is_admin, is_verified"
	profileAdmin   = "id, username, full_name, avatar_url, is_admin"
	profileMinimal = "id, username, full_name, avatar_url"

	reportColumns = "id, event_id, reason, created_at"
)

// variant is one field set of the joined read.
type variant struct {
	Name   string
	Select string
}

func joined(events, profile string) string {
	return events + ", profiles:user_id ( " + profile + " )"
}

// joinVariants are tried in order, each narrower than the last.
var joinVariants = []variant{
	{"full+optional", joined(eventColumns+optionalColumns, profileFull)},
	{"admin+optional", joined(eventColumns+optionalColumns, profileAdmin)},
	{"full", joined(eventColumns, profileFull)},
	{"admin", joined(eventColumns, profileAdmin)},
	{"minimal", joined(eventColumns, profileMinimal)},
}

var plainVariants = []variant{
	{"plain+optional", eventColumns + optionalColumns},
	{"plain", eventColumns},
}

var profileVariants = []variant{
	{"profiles:full", profileFull},
	{"profiles:admin", profileAdmin},
	{"profiles:minimal", profileMinimal},
}

// optionalColumn matches the two ways a missing optional column is reported:
// Postgres says `column events.category does not exist`, PostgREST says
// `Could not find the 'category' column of 'events'`.
var optionalColumn = regexp.MustCompile(
	`column\s+"?(?:\w+\.)*(?:category|price|is_admin|is_verified)\b` +
		`|'(?:category|price|is_admin|is_verified)'\s+column`)

// IsMissingColumn classifies err as a schema mismatch that a narrower field
// set may avoid. Only the schema error codes qualify, or a 400 whose text
// names one of the optional columns.
func IsMissingColumn(err error) bool {
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case "42703", "PGRST204", "PGRST200":
		return true
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message + " " + apiErr.Details + " " + apiErr.Hint)
	return optionalColumn.MatchString(msg)
}

// IsMissingTable reports whether the requested relation does not exist.
func IsMissingTable(err error) bool {
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Code == "42P01" || apiErr.Code == "PGRST205" || apiErr.StatusCode == http.StatusNotFound
}

// Result is the outcome of a read, independent of the variant that served it.
type Result struct {
	Events  []model.Event
	Variant string
}

// Source reads and deletes events in the backing store.
type Source struct {
	db      Querier
	metrics *metrics.Metrics
}

func New(db Querier, m *metrics.Metrics) *Source {
	return &Source{db: db, metrics: m}
}

// try runs query against each variant until one succeeds or a terminal
// error occurs.
func (s *Source) try(ctx context.Context, variants []variant, query func(v variant) error) (string, error) {
	var last error
	for _, v := range variants {
		err := query(v)
		if err == nil {
			return v.Name, nil
		}
		if !IsMissingColumn(err) {
			return v.Name, err
		}
		appLog.Debug("schema fallback", "variant", v.Name, "reason", err)
		s.metrics.ObserveFallback(v.Name)
		last = err
		if ctx.Err() != nil {
			return v.Name, ctx.Err()
		}
	}
	return "", fmt.Errorf("%w: %w", ErrExhausted, last)
}

func (s *Source) readEvents(ctx context.Context, variants []variant) (Result, error) {
	var rows []model.Event
	name, err := s.try(ctx, variants, func(v variant) error {
		rows = nil
		return s.db.Select(ctx, "events", supabase.Query{
			Select: v.Select,
			Order:  "created_at.desc",
		}, &rows)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Events: rows, Variant: name}, nil
}

// LoadEventsWithJoin reads events with the author profile embedded.
func (s *Source) LoadEventsWithJoin(ctx context.Context) (Result, error) {
	res, err := s.readEvents(ctx, joinVariants)
	if err != nil {
		return Result{}, fmt.Errorf("load events (joined): %w", err)
	}
	return res, nil
}

// LoadEventsNoJoin reads events without any embedded relation.
func (s *Source) LoadEventsNoJoin(ctx context.Context) (Result, error) {
	res, err := s.readEvents(ctx, plainVariants)
	if err != nil {
		return Result{}, fmt.Errorf("load events (plain): %w", err)
	}
	return res, nil
}

// LoadProfilesForIDs looks up profiles in one batch. Empty input makes no
// request.
func (s *Source) LoadProfilesForIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile)
	ids = distinct(ids)
	if len(ids) == 0 {
		return out, nil
	}

	var rows []model.Profile
	_, err := s.try(ctx, profileVariants, func(v variant) error {
		rows = nil
		return s.db.Select(ctx, "profiles", supabase.Query{
			Select:  v.Select,
			Filters: []supabase.Filter{supabase.In("id", ids)},
		}, &rows)
	})
	if err != nil {
		return out, fmt.Errorf("load profiles: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// LoadProfile returns the profile of one user, or nil when it is missing.
func (s *Source) LoadProfile(ctx context.Context, id string) (*model.Profile, error) {
	if id == "" {
		return nil, nil
	}
	m, err := s.LoadProfilesForIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Load is the full read path: joined read, else plain read, then a batch
// profile lookup for every event whose author profile is still empty.
// Schema fallbacks are absorbed; only terminal errors are returned.
func (s *Source) Load(ctx context.Context) (Result, error) {
	res, err := s.LoadEventsWithJoin(ctx)
	if err != nil {
		if !errors.Is(err, ErrExhausted) {
			s.metrics.ObserveLoad(err)
			return Result{}, err
		}
		appLog.Debug("joined read exhausted, reading without join", "reason", err)
		res, err = s.LoadEventsNoJoin(ctx)
		if err != nil {
			s.metrics.ObserveLoad(err)
			return Result{}, err
		}
	}

	s.resolveProfiles(ctx, res.Events)
	s.metrics.ObserveLoad(nil)
	appLog.Debug("events loaded", "count", len(res.Events), "variant", res.Variant)
	return res, nil
}

func (s *Source) resolveProfiles(ctx context.Context, events []model.Event) {
	var missing []string
	for _, ev := range events {
		if ev.AuthorProfile == nil && ev.OwnerID != "" {
			missing = append(missing, ev.OwnerID)
		}
	}
	if len(missing) == 0 {
		return
	}

	profiles, err := s.LoadProfilesForIDs(ctx, missing)
	if err != nil {
		appLog.Warn("profile lookup failed", "err", err)
		return
	}
	for i := range events {
		if events[i].AuthorProfile != nil {
			continue
		}
		if p, ok := profiles[events[i].OwnerID]; ok {
			events[i].AuthorProfile = &p
		}
	}
}

// DeleteEvent deletes one event. The store decides who may; a delete that
// matched nothing is reported as ErrNotPermitted.
func (s *Source) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete event: empty id")
	}
	var deleted []struct {
		ID string `json:"id"`
	}
	err := s.db.Delete(ctx, "events", []supabase.Filter{supabase.Eq("id", id)}, &deleted)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("delete event %s: %w", id, ErrNotPermitted)
	}
	return nil
}

// Moderation is what the admin panel lists besides the events themselves.
type Moderation struct {
	Profiles []model.Profile
	Reports  []model.Report
}

// LoadModeration reads all profiles and, when the table exists, the
// reports filed against events.
func (s *Source) LoadModeration(ctx context.Context) (Moderation, error) {
	var mod Moderation

	_, err := s.try(ctx, profileVariants, func(v variant) error {
		mod.Profiles = nil
		return s.db.Select(ctx, "profiles", supabase.Query{Select: v.Select}, &mod.Profiles)
	})
	if err != nil {
		return Moderation{}, fmt.Errorf("load moderation profiles: %w", err)
	}
	sort.SliceStable(mod.Profiles, func(i, j int) bool {
		return strings.ToLower(mod.Profiles[i].DisplayName()) < strings.ToLower(mod.Profiles[j].DisplayName())
	})

	err = s.db.Select(ctx, "event_reports", supabase.Query{
		Select: reportColumns,
		Order:  "created_at.desc",
	}, &mod.Reports)
	if err != nil {
		if IsMissingTable(err) || IsMissingColumn(err) {
			appLog.Debug("reports unavailable", "reason", err)
			mod.Reports = nil
			return mod, nil
		}
		return Moderation{}, fmt.Errorf("load moderation reports: %w", err)
	}
	return mod, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
