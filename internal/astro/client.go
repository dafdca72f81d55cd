// Package astro talks to the ephemeris backend that does the actual
// astronomical math: chart calculation, transit lookups, and kuta
// matching. Responses are stored as returned; this service never
// re-derives positions itself.
package astro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the ephemeris backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// BirthInput locates a birth in time and space.
type BirthInput struct {
	Date      string  `json:"date"`
	Time      string  `json:"time,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// ChartData is a calculated chart, kept as the backend returned it.
type ChartData struct {
	Planets json.RawMessage `json:"planets"`
	Houses  json.RawMessage `json:"houses"`
	Dashas  json.RawMessage `json:"dashas"`
}

// TransitEvent is one significant transit hitting the natal chart.
type TransitEvent struct {
	Planet      string    `json:"planet"`
	TransitType string    `json:"transit_type"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// TransitData describes the sky relative to a natal chart on a date.
type TransitData struct {
	Summary string         `json:"summary"`
	Events  []TransitEvent `json:"events"`
}

// KutaResult is the outcome of matching two charts.
type KutaResult struct {
	Kutas      json.RawMessage `json:"kutas"`
	TotalScore float64         `json:"total_score"`
	MaxScore   float64         `json:"max_score"`
	Summary    string          `json:"summary"`
}

// CalculateChart computes the natal chart for a birth.
func (c *Client) CalculateChart(ctx context.Context, birth BirthInput) (*ChartData, error) {
	var out ChartData
	if err := c.post(ctx, "/v1/chart", map[string]interface{}{"birth": birth}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentTransits returns the transits touching the natal chart on the
// given date.
func (c *Client) CurrentTransits(ctx context.Context, birth BirthInput, date string) (*TransitData, error) {
	var out TransitData
	payload := map[string]interface{}{"birth": birth, "date": date}
	if err := c.post(ctx, "/v1/transits", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchKuta scores the compatibility of two births.
func (c *Client) MatchKuta(ctx context.Context, a, b BirthInput) (*KutaResult, error) {
	var out KutaResult
	payload := map[string]interface{}{"first": a, "second": b}
	if err := c.post(ctx, "/v1/kuta", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return utils.WrapError(err, utils.CodeInternal, "Internal server error")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return utils.WrapError(err, utils.CodeInternal, "Internal server error")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error(ctx).WithFields("error", err, "path", path).Logs("astro backend unreachable")
		return utils.NewError(utils.CodeUnavailable, "Astrology backend is unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.log.Error(ctx).WithFields("status", fmt.Sprint(resp.StatusCode), "path", path).Logs("astro backend error")
		return utils.NewError(utils.CodeUnavailable, "Astrology backend is unavailable")
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error(ctx).WithFields("status", fmt.Sprint(resp.StatusCode), "path", path).Logs("astro backend rejected request")
		return utils.NewError(utils.CodeBackendError, "Astrology backend request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error(ctx).WithFields("error", err, "path", path).Logs("astro backend returned malformed response")
		return utils.NewError(utils.CodeBackendError, "Astrology backend request failed")
	}
	return nil
}
