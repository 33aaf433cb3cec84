package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"evboard/internal/config"
	appLog "evboard/internal/log"
	"evboard/internal/metrics"
)

// ErrEmpty is returned when the feed answered with no usable items.
var ErrEmpty = errors.New("feed: no items")

// Item is one normalized record of the public feed.
type Item struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Summary  string     `json:"summary"`
	Type     string     `json:"type"`
	Time     *time.Time `json:"time,omitempty"`
	Location string     `json:"location"`
	Link     string     `json:"link"`
}

// Client fetches the feed directly, falling back to the proxy template,
// and caches the full list for the lifetime of the process.
type Client struct {
	cfg     config.FeedConfig
	client  *http.Client
	metrics *metrics.Metrics

	mu     sync.Mutex
	cached []Item
	etag   string
}

func NewClient(cfg config.FeedConfig, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// Cached returns the cached list, or nil before the first fetch.
func (c *Client) Cached() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil
	}
	return append([]Item(nil), c.cached...)
}

// Fetch returns the cached list unless force is set or nothing is cached.
func (c *Client) Fetch(ctx context.Context, force bool) ([]Item, error) {
	c.mu.Lock()
	if c.cached != nil && !force {
		out := append([]Item(nil), c.cached...)
		c.mu.Unlock()
		return out, nil
	}
	etag := c.etag
	if c.cached == nil {
		etag = ""
	}
	c.mu.Unlock()

	res, err := c.get(ctx, c.cfg.URL, etag)
	if err != nil {
		return nil, err
	}
	if res.notModified {
		appLog.Info("feed not modified; using cache", "url", redactURL(c.cfg.URL))
		return c.Cached(), nil
	}

	items, err := c.decode(res.body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	c.mu.Lock()
	c.cached = items
	c.etag = res.etag
	c.mu.Unlock()

	appLog.Info("feed fetch success", "route", res.route, "items", len(items))
	return append([]Item(nil), items...), nil
}

// Search asks the feed for items at a location. The session cache is
// neither read nor written.
func (c *Client) Search(ctx context.Context, location string) ([]Item, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed search: %w", err)
	}
	q := u.Query()
	q.Set("locationname", location)
	u.RawQuery = q.Encode()

	res, err := c.get(ctx, u.String(), "")
	if err != nil {
		return nil, err
	}
	items, err := c.decode(res.body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return items, nil
}

func (c *Client) decode(body []byte) ([]Item, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("feed: decode: %w", err)
	}
	return Normalize(records, c.cfg.BaseURL), nil
}

type response struct {
	body        []byte
	etag        string
	route       string
	notModified bool
}

// get tries the direct URL, then the proxy on a network error or a non-2xx
// answer.
func (c *Client) get(ctx context.Context, target, etag string) (response, error) {
	res, err := c.do(ctx, target, etag)
	c.metrics.ObserveFeed("direct", err)
	if err == nil {
		res.route = "direct"
		return res, nil
	}
	if c.cfg.Proxy == "" || ctx.Err() != nil {
		return response{}, fmt.Errorf("feed fetch: %w", err)
	}
	appLog.Error("feed direct fetch failed, retrying through proxy", err, "url", redactURL(target))

	proxied := fmt.Sprintf(c.cfg.Proxy, url.QueryEscape(target))
	res, perr := c.do(ctx, proxied, "")
	c.metrics.ObserveFeed("proxy", perr)
	if perr != nil {
		return response{}, fmt.Errorf("feed fetch: direct: %v; proxy: %w", err, perr)
	}
	res.route = "proxy"
	return res, nil
}

func (c *Client) do(ctx context.Context, target, etag string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && etag != "" {
		return response{notModified: true, etag: etag}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, errors.New(resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{body: body, etag: resp.Header.Get("ETag")}, nil
}

// redactURL keeps scheme and host only, for logging.
func redactURL(u string) string {
	p, err := url.Parse(u)
	if err != nil || p.Host == "" {
		return "feed://...(redacted)"
	}
	return p.Scheme + "://" + p.Host + "/...(redacted)"
}
