package feed

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayouts are tried in order. The first is the Swedish police feed's
// "2026-10-16 14:05:03 +02:00".
var timeLayouts = []string{
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize maps heterogeneous upstream records onto Item and sorts them
// newest first with untimed items last.
func Normalize(records []map[string]any, baseURL string) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		it := Item{
			ID:       first(r, "id", "eventId", "event_id", "uid"),
			Title:    first(r, "name", "title", "headline"),
			Summary:  first(r, "summary", "description", "text"),
			Type:     first(r, "type", "category"),
			Location: location(r),
			Link:     resolveLink(first(r, "url", "link", "href"), baseURL),
		}
		raw := first(r, "datetime", "timestamp", "date", "published", "time")
		if t, ok := parseTime(raw); ok {
			it.Time = &t
		}
		if it.Title == "" && it.Summary == "" {
			continue
		}
		if it.ID == "" {
			it.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(it.Link+"|"+it.Title+"|"+raw)).String()
		}
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Time, items[j].Time
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return items
}

// first returns the first non-empty scalar among keys, as text.
func first(r map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, nil:
		return ""
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// location accepts {"location": {"name": ...}}, a plain string, or a
// "place" field.
func location(r map[string]any) string {
	for _, key := range []string{"location", "place"} {
		switch v := r[key].(type) {
		case map[string]any:
			if s := first(v, "name", "label", "title"); s != "" {
				return s
			}
		default:
			if s := scalar(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func resolveLink(link, base string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return link
	}
	return b.ResolveReference(u).String()
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
