// Package youtube is a read-through client for the latest uploads of a
// YouTube channel, backed by the YouTube Data API v3 search endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/tavola/internal/models"
)

// ErrNotConfigured is returned when the API key or channel id is missing.
var ErrNotConfigured = errors.New("youtube integration is not configured")

const defaultCacheTTL = 5 * time.Minute

// Client fetches channel uploads and caches them for a short time to keep
// API quota usage low.
type Client struct {
	baseURL    string
	maxResults int
	http       *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	videos    []models.YouTubeVideo
	fetchedAt time.Time
}

// New creates a Client. A nil httpClient gets a client with a 10s timeout.
func New(baseURL string, maxResults int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 12
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		http:       httpClient,
		ttl:        defaultCacheTTL,
		now:        time.Now,
		cache:      map[string]cacheEntry{},
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Latest returns the newest videos of channelID, newest first.
func (c *Client) Latest(ctx context.Context, apiKey, channelID string) ([]models.YouTubeVideo, error) {
	if apiKey == "" || channelID == "" {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	entry, ok := c.cache[channelID]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.videos, nil
	}

	videos, err := c.fetch(ctx, apiKey, channelID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[channelID] = cacheEntry{videos: videos, fetchedAt: c.now()}
	c.mu.Unlock()
	return videos, nil
}

func (c *Client) fetch(ctx context.Context, apiKey, channelID string) ([]models.YouTubeVideo, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("channelId", channelID)
	q.Set("order", "date")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(c.maxResults))
	q.Set("key", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build youtube request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read youtube response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("youtube api: %s: %s", resp.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("youtube api: %s", resp.Status)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode youtube response: %w", err)
	}

	videos := make([]models.YouTubeVideo, 0, len(sr.Items))
	for _, it := range sr.Items {
		if it.ID.VideoID == "" {
			continue
		}
		videos = append(videos, models.YouTubeVideo{
			ID:           it.ID.VideoID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			ThumbnailURL: bestThumbnail(it.Snippet.Thumbnails),
			PublishedAt:  it.Snippet.PublishedAt,
		})
	}
	return videos, nil
}

func bestThumbnail(thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range []string{"maxres", "high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
