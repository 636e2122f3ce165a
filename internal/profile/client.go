package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/profilescout/profilescout/internal/metrics"
)

// Source retrieves canonical profile records. SearchByName is best effort
// and may return false negatives.
type Source interface {
	FetchProfile(ctx context.Context, profileURL string) (*Record, error)
	SearchByName(ctx context.Context, name string) (*Record, error)
}

// Client fetches profiles from the enrichment API and normalizes the
// responses.
type Client struct {
	apiKey  string
	apiHost string
	baseURL string
	client  *http.Client
	tracker *metrics.Tracker
}

// NewClient creates a profile API client. The tracker may be nil.
func NewClient(apiKey, apiHost string, tracker *metrics.Tracker) *Client {
	return &Client{
		apiKey:  apiKey,
		apiHost: apiHost,
		baseURL: "https://" + apiHost,
		client:  &http.Client{Timeout: 30 * time.Second},
		tracker: tracker,
	}
}

// SetBaseURL overrides the API base URL (used by tests).
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// FetchProfile retrieves and normalizes the profile behind a profile URL.
// Returns ErrNotFound when the provider has no record for it.
func (c *Client) FetchProfile(ctx context.Context, profileURL string) (*Record, error) {
	endpoint := c.baseURL + "/enrichment/profile?" + url.Values{"linkedInUrl": {profileURL}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating profile request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)

	start := time.Now()
	resp, err := c.client.Do(req)
	if c.tracker != nil {
		c.tracker.Record("profile_fetch", time.Since(start), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching profile %s: %w", profileURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading profile response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile API returned status %d: %s", resp.StatusCode, string(body))
	}
	return Normalize(body)
}

// SearchByName attempts to resolve a profile from a display name by deriving
// the conventional vanity URL (lowercase, spaces removed).
func (c *Client) SearchByName(ctx context.Context, name string) (*Record, error) {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	return c.FetchProfile(ctx, "https://linkedin.com/in/"+slug)
}
