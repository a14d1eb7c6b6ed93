// Package catalog is the client for the external track/metadata service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Track is one playable track as returned by the catalog.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	PreviewURL string `json:"previewUrl"`
	Cover      string `json:"cover,omitempty"`
	Year       int    `json:"year,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Lyrics     string `json:"lyrics,omitempty"`
}

// Filters narrows the random-track lookup.
type Filters struct {
	Genre      string
	Difficulty string
	Exclude    []string // track IDs already played this game
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// FetchTrack returns one random track matching the filters.
func (c *Client) FetchTrack(ctx context.Context, f Filters) (Track, error) {
	q := url.Values{}
	if f.Genre != "" {
		q.Set("genre", f.Genre)
	}
	if f.Difficulty != "" {
		q.Set("difficulty", f.Difficulty)
	}
	if len(f.Exclude) > 0 {
		q.Set("exclude", strings.Join(f.Exclude, ","))
	}

	endpoint := c.baseURL + "/tracks/random"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Track{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Track{}, fmt.Errorf("failed to fetch track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Track{}, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var track Track
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		return Track{}, fmt.Errorf("failed to decode track: %w", err)
	}
	if track.PreviewURL == "" {
		return Track{}, fmt.Errorf("catalog returned track %q without a preview", track.ID)
	}

	return track, nil
}
