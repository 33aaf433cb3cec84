package pipeline

import (
	"net/url"
	"regexp"
	"strings"
)

// PlaceMeta is how a place value is shown and linked.
type PlaceMeta struct {
	Label string
	Href  string
	IsMap bool
}

const mapsSearch = "https://www.google.com/maps/search/?api=1&query="

var (
	bareMapsHost = regexp.MustCompile(`(?i)^(maps\.app\.goo\.gl|goo\.gl/maps|www\.google\.|maps\.google\.)`)
	mapsURL      = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(www\.)?google\.[^/]+/maps`),
		regexp.MustCompile(`(?i)^https?://maps\.google\.[^/]+`),
		regexp.MustCompile(`(?i)^https?://maps\.app\.goo\.gl/`),
		regexp.MustCompile(`(?i)^https?://goo\.gl/maps/`),
	}
)

// normalizeMapsURL adds a scheme to scheme-less map links.
func normalizeMapsURL(raw string) string {
	if bareMapsHost.MatchString(raw) {
		return "https://" + raw
	}
	return raw
}

// IsMapsURL reports whether raw is a recognised map-service link.
func IsMapsURL(raw string) bool {
	for _, re := range mapsURL {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

func decodeLabel(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// extractMapsLabel pulls a readable name out of a map link: the /place/
// segment, else the query, q or destination parameter.
func extractMapsLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := u.EscapedPath()
	if i := strings.Index(path, "/place/"); i >= 0 {
		seg, _, _ := strings.Cut(path[i+len("/place/"):], "/")
		if seg != "" {
			return decodeLabel(seg)
		}
	}
	q := u.Query()
	for _, key := range []string{"query", "q", "destination"} {
		if v := q.Get(key); v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// PlaceLabel resolves a place value. Map links keep their href and get an
// extracted label; anything else links to a map search for the text.
func PlaceLabel(place string) PlaceMeta {
	raw := strings.TrimSpace(place)
	if raw == "" {
		return PlaceMeta{}
	}
	normalized := normalizeMapsURL(raw)
	if IsMapsURL(normalized) {
		label := extractMapsLabel(normalized)
		if label == "" {
			label = "Öppna plats"
		}
		return PlaceMeta{Label: label, Href: normalized, IsMap: true}
	}
	return PlaceMeta{Label: raw, Href: mapsSearch + url.QueryEscape(raw)}
}
