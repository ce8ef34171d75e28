// Package directory talks to a remote practice-management service that owns
// the skill, staff and client directories and the task definitions.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"demand-matrix/internal/period"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// ErrUnauthorized is returned when the service rejects the configured token.
var ErrUnauthorized = errors.New("directory authentication failed")

// ErrRateLimited is returned on HTTP 429.
var ErrRateLimited = errors.New("directory rate limit exceeded")

// Config holds the connection settings for the directory service.
type Config struct {
	BaseURL string
	Token   string

	// RequestDelay spaces out listing requests; single lookups are not throttled.
	RequestDelay time.Duration
	CacheTTL     time.Duration
}

// Entry is one directory record.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Client is an HTTP implementation of resolve.Lookup and tasks.Source.
type Client struct {
	cfg        Config
	httpClient *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time

	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       []byte
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

// NewClient builds a directory client.
func NewClient(cfg Config) *Client {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *Client) getFromCache(key string) ([]byte, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}
	return entry.Value, true
}

func (c *Client) addToCache(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
}

// throttle waits until RequestDelay has passed since the previous listing request.
func (c *Client) throttle(ctx context.Context, isLookup bool) error {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	if isLookup {
		c.lastRequest = time.Now()
		return nil
	}

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling directory request")
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *Client) authenticateRequest(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
	}
	req.Header.Set("Accept", "application/json")
}

// getJSON fetches path with params and decodes the body into out.
// Successful bodies are cached for the configured TTL.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, isLookup bool, out interface{}) error {
	target := c.cfg.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	if body, ok := c.getFromCache(target); ok {
		log.Trace().Str("url", target).Msg("Directory cache hit")
		return json.Unmarshal(body, out)
	}

	if err := c.throttle(ctx, isLookup); err != nil {
		return err
	}

	log.Debug().Str("url", target).Msg("Requesting from directory")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", path, resolve.ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w (%d); check DIRECTORY_TOKEN", ErrUnauthorized, resp.StatusCode)
		case http.StatusTooManyRequests:
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				return fmt.Errorf("%w; retry after %s seconds", ErrRateLimited, retryAfter)
			}
			return ErrRateLimited
		default:
			return fmt.Errorf("directory returned status %d for %s", resp.StatusCode, path)
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}

	c.addToCache(target, raw, c.cfg.CacheTTL)
	return nil
}

func collection(kind resolve.Kind) string {
	switch kind {
	case resolve.Staff:
		return "staff"
	case resolve.Client:
		return "clients"
	default:
		return "skills"
	}
}

// LookupName returns the display name of one identifier.
func (c *Client) LookupName(ctx context.Context, kind resolve.Kind, id string) (string, error) {
	var e Entry
	if err := c.getJSON(ctx, "/api/"+collection(kind)+"/"+url.PathEscape(id), nil, true, &e); err != nil {
		return "", err
	}
	if strings.TrimSpace(e.Name) == "" {
		return "", fmt.Errorf("%s %s: %w", kind, id, resolve.ErrNotFound)
	}
	return e.Name, nil
}

// LookupID returns the identifier of a display name, matched case-insensitively.
func (c *Client) LookupID(ctx context.Context, kind resolve.Kind, name string) (string, error) {
	params := url.Values{}
	params.Set("name", name)

	var entries []Entry
	if err := c.getJSON(ctx, "/api/"+collection(kind), params, true, &entries); err != nil {
		return "", err
	}
	for _, e := range entries {
		if tasks.FoldName(e.Name) == tasks.FoldName(name) {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("%s %q: %w", kind, name, resolve.ErrNotFound)
}

// ListNames returns the full directory for kind.
func (c *Client) ListNames(ctx context.Context, kind resolve.Kind) (map[string]string, error) {
	var entries []Entry
	if err := c.getJSON(ctx, "/api/"+collection(kind), nil, false, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.ID] = e.Name
	}
	log.Debug().Str("kind", string(kind)).Int("entries", len(out)).Msg("Directory listed")
	return out, nil
}

// ListTasks fetches the task snapshot for scope.
func (c *Client) ListTasks(ctx context.Context, scope tasks.Scope) ([]tasks.Task, error) {
	params := url.Values{}
	for _, id := range scope.ClientIDs {
		params.Add("clientId", id)
	}

	var out []tasks.Task
	if err := c.getJSON(ctx, "/api/tasks", params, false, &out); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	log.Info().Int("tasks", len(out)).Msg("Fetched tasks from directory")
	return out, nil
}

// ListPeriods fetches the forecast periods the service publishes.
func (c *Client) ListPeriods(ctx context.Context) ([]period.ForecastPeriod, error) {
	var out []period.ForecastPeriod
	if err := c.getJSON(ctx, "/api/forecast-periods", nil, false, &out); err != nil {
		return nil, fmt.Errorf("list forecast periods: %w", err)
	}
	return out, nil
}
