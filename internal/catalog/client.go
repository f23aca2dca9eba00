// Package catalog looks up vehicle reference data (makes, models, trims) from
// the CarQuery API and drives the cascading vehicle selection.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL   = "https://www.carqueryapi.com/api/0.3/"
	DefaultCacheSize = 512

	// FallbackTrim is offered when trims cannot be loaded.
	FallbackTrim = "Standard"

	// YearSpan is how many model years are offered, counting back from now.
	YearSpan = 35

	requestTimeout = 15 * time.Second
)

// Lookup is the read side of the catalog used by the selector and the API.
type Lookup interface {
	Makes(ctx context.Context, year string) ([]string, error)
	Models(ctx context.Context, year, mk string) ([]string, error)
	Trims(ctx context.Context, year, mk, model string) ([]string, error)
}

// Client handles CarQuery API calls. Successful answers are cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, []string]
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the CarQuery endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger for lookup failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a catalog client with an LRU of cacheSize entries.
func NewClient(cacheSize int, opts ...Option) (*Client, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Years lists the selectable model years, newest first.
func Years(now time.Time) []string {
	years := make([]string, 0, YearSpan)
	for i := range YearSpan {
		years = append(years, strconv.Itoa(now.Year()-i))
	}
	return years
}

type makeEntry struct {
	Display string `json:"make_display"`
}

type modelEntry struct {
	Name string `json:"model_name"`
}

type trimEntry struct {
	Trim         string   `json:"model_trim"`
	EngineCC     engineCC `json:"model_engine_cc"`
	Transmission string   `json:"model_transmission_type"`
}

// engineCC accepts displacement as a JSON string, number or null.
type engineCC float64

func (e *engineCC) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*e = 0
		return nil
	}
	*e = engineCC(v)
	return nil
}

// Makes returns the display names of makes sold in year, sorted.
func (c *Client) Makes(ctx context.Context, year string) ([]string, error) {
	if year == "" {
		return nil, errors.New("year is required")
	}
	q := url.Values{"cmd": {"getMakes"}, "year": {year}}

	return c.cached(ctx, q, func(body []byte) ([]string, error) {
		var result struct {
			Makes []makeEntry `json:"Makes"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode makes: %w", err)
		}
		names := make([]string, 0, len(result.Makes))
		for _, m := range result.Makes {
			names = append(names, m.Display)
		}
		return names, nil
	})
}

// Models returns the model names for a make and year, sorted.
func (c *Client) Models(ctx context.Context, year, mk string) ([]string, error) {
	if year == "" || mk == "" {
		return nil, errors.New("year and make are required")
	}
	q := url.Values{"cmd": {"getModels"}, "make": {strings.ToLower(mk)}, "year": {year}}

	return c.cached(ctx, q, func(body []byte) ([]string, error) {
		var result struct {
			Models []modelEntry `json:"Models"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
		names := make([]string, 0, len(result.Models))
		for _, m := range result.Models {
			names = append(names, m.Name)
		}
		return names, nil
	})
}

// Trims returns formatted trim labels such as "XLT - 3.5L - Automatic".
// Any lookup failure, an undecodable body or an empty list yields
// []string{FallbackTrim}; only a done context is reported as an error.
func (c *Client) Trims(ctx context.Context, year, mk, model string) ([]string, error) {
	if year == "" || mk == "" || model == "" {
		return nil, errors.New("year, make and model are required")
	}
	q := url.Values{"cmd": {"getTrims"}, "make": {strings.ToLower(mk)}, "model": {model}, "year": {year}}

	trims, err := c.cached(ctx, q, func(body []byte) ([]string, error) {
		var result struct {
			Trims []trimEntry `json:"Trims"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode trims: %w", err)
		}
		labels := make([]string, 0, len(result.Trims))
		for _, t := range result.Trims {
			labels = append(labels, FormatTrim(t.Trim, float64(t.EngineCC), t.Transmission))
		}
		if len(labels) == 0 {
			return nil, errors.New("no trims listed")
		}
		return labels, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().Err(err).Str("make", mk).Str("model", model).Str("year", year).Msg("trim lookup failed, using fallback")
		return []string{FallbackTrim}, nil
	}
	return trims, nil
}

// FormatTrim renders "<trim> - <litres>L - <transmission>". A blank trim reads
// "Base"; unknown displacement or transmission leave their slot empty.
func FormatTrim(trim string, cc float64, transmission string) string {
	if trim == "" {
		trim = "Base"
	}
	litres := ""
	if cc > 0 {
		litres = strconv.FormatFloat(cc/1000, 'f', -1, 64) + "L"
	}
	return fmt.Sprintf("%s - %s - %s", trim, litres, transmission)
}

// cached serves q from the LRU or fetches, decodes and sorts it.
func (c *Client) cached(ctx context.Context, q url.Values, decode func([]byte) ([]string, error)) ([]string, error) {
	key := q.Encode()
	if hit, ok := c.cache.Get(key); ok {
		return clone(hit), nil
	}

	body, err := c.doRequest(ctx, key)
	if err != nil {
		return nil, err
	}
	values, err := decode(body)
	if err != nil {
		return nil, err
	}
	sort.Strings(values)

	c.cache.Add(key, values)
	return clone(values), nil
}

func (c *Client) doRequest(ctx context.Context, query string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog API error: %s", resp.Status)
	}
	return body, nil
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
