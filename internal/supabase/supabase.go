package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evboard/internal/config"
)

// Client talks to the PostgREST endpoint of a Supabase project.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
}

// APIError is the error body PostgREST returns for a failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error (status %d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewClient builds a client from config. The access token, when present,
// is sent as the bearer so row-level security sees the viewer; otherwise
// the anon key is used.
func NewClient(cfg config.SupabaseConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	token := cfg.AccessToken
	if token == "" {
		token = cfg.AnonKey
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.AnonKey,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Filter is a single PostgREST horizontal filter, e.g. id=eq.42.
type Filter struct {
	Column string
	Op     string
	Value  string
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// In builds an in.(...) filter. Values are quoted when they contain
// PostgREST reserved characters.
func In(column string, values []string) Filter {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quote(v))
	}
	return Filter{Column: column, Op: "in", Value: "(" + strings.Join(quoted, ",") + ")"}
}

func quote(v string) string {
	if strings.ContainsAny(v, ",.:()\" ") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

// Query describes a read.
type Query struct {
	Select  string
	Filters []Filter
	// Order is a PostgREST order clause such as "created_at.desc".
	Order string
	Limit int
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Select != "" {
		v.Set("select", compactSelect(q.Select))
	}
	for _, f := range q.Filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	return v
}

// compactSelect strips whitespace so multi-line select lists stay readable
// in code but produce a clean query string.
func compactSelect(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func filterValues(filters []Filter) url.Values {
	return Query{Filters: filters}.values()
}

// Select reads rows from table into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	return c.do(ctx, http.MethodGet, table, q.values(), nil, "", out)
}

// Insert writes rows without asking for them back.
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("supabase insert %s: marshal: %w", table, err)
	}
	return c.do(ctx, http.MethodPost, table, nil, body, "return=minimal", nil)
}

// Delete removes the rows matching filters and decodes the deleted rows
// into out, so callers can tell a silent row-level-security no-op apart
// from a real delete.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter, out any) error {
	if len(filters) == 0 {
		return fmt.Errorf("supabase delete %s: refusing unfiltered delete", table)
	}
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodDelete, table, filterValues(filters), nil, prefer, out)
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, body []byte, prefer string, out any) error {
	if c.baseURL == "" {
		return errors.New("supabase: base URL is not configured")
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}

	req.Header.Set("apikey", c.apiKey)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = resp.Status
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("supabase %s %s: decode: %w", method, table, err)
	}
	return nil
}
