package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/cache"
	"github.com/pulsedash/pulse/pkg/config"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

// ErrNotFound is returned when no channel can be resolved for an id or
// query. Callers must branch on it; it is not a transport failure.
var ErrNotFound = errors.New("youtube: channel not found")

var (
	channelIDPattern  = regexp.MustCompile(`^UC[0-9A-Za-z_-]{20,}$`)
	channelURLPattern = regexp.MustCompile(`(?i)youtube\.com/(?:channel/|@)([A-Za-z0-9_-]+)`)
)

// A URL-derived handle feeds back into resolution exactly once, so malformed
// input cannot recurse unboundedly.
const maxResolveAttempts = 2

// resolveCacheTTL bounds how long a free-text query sticks to a channel id
const resolveCacheTTL = 24 * time.Hour

// ChannelStats is a normalized view of a channel's public stats
type ChannelStats struct {
	ChannelID       string          `json:"channel_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Country         string          `json:"country"`
	Thumbnails      json.RawMessage `json:"thumbnails"`
	ViewCount       int64           `json:"view_count"`
	SubscriberCount int64           `json:"subscriber_count"`
	VideoCount      int64           `json:"video_count"`
}

// Client fetches channel stats and resolves free-text queries against the
// YouTube Data API using a service-level API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Cache
	logger  *zap.Logger
}

// New creates a new YouTube client. The resolution cache is optional; pass
// nil to resolve every query against the API.
func New(cfg *config.YouTubeConfig, resolutionCache *cache.Cache) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube api key is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "youtube-client"))

	client := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   resolutionCache,
		logger:  logger,
	}

	logger.Info("YouTube client initialized", zap.String("base_url", cfg.BaseURL))

	return client, nil
}

// channelListResponse mirrors the channels.list envelope. Statistics counts
// arrive as decimal strings.
type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string          `json:"title"`
			Description string          `json:"description"`
			Country     string          `json:"country"`
			Thumbnails  json.RawMessage `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount       string `json:"viewCount"`
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// searchListResponse mirrors the search.list envelope
type searchListResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}

// ChannelStats fetches current stats for a known channel id. A channel the
// API does not know yields ErrNotFound; transport failures propagate so the
// caller can decide retry vs. skip.
func (c *Client) ChannelStats(ctx context.Context, channelID string) (*ChannelStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtube.channel_stats")
	defer span.End()

	query := url.Values{}
	query.Set("id", strings.TrimSpace(channelID))
	query.Set("part", "snippet,statistics")

	var resp channelListResponse
	if err := c.get(ctx, "/channels", query, &resp); err != nil {
		return nil, fmt.Errorf("channels.list failed for id %s: %w", channelID, err)
	}
	if len(resp.Items) == 0 {
		c.logger.Warn("channels.list returned no items", zap.String("channel_id", channelID))
		return nil, ErrNotFound
	}

	return c.mapChannel(&resp, 0), nil
}

// Resolve turns a free-text query (native id, @handle, legacy username or
// channel URL) into channel stats. Strategies are tried in order and the
// chain stops at the first success; exhaustion yields ErrNotFound.
func (c *Client) Resolve(ctx context.Context, query string) (*ChannelStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtube.resolve")
	defer span.End()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrNotFound
	}

	// Previously resolved queries short-circuit to a direct lookup
	cacheKey := cache.HashKey("resolve", strings.ToLower(trimmed))
	if c.cache != nil {
		if id, err := c.cache.Get(cacheKey); err == nil && id != "" {
			if stats, err := c.ChannelStats(ctx, id); err == nil {
				return stats, nil
			}
		}
	}

	stats, err := c.resolve(ctx, trimmed, maxResolveAttempts)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(cacheKey, stats.ChannelID, resolveCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			c.logger.Warn("Failed to cache channel resolution", zap.Error(err))
		}
	}

	return stats, nil
}

func (c *Client) resolve(ctx context.Context, query string, attempts int) (*ChannelStats, error) {
	if attempts <= 0 {
		return nil, ErrNotFound
	}

	// Strategy 1: strict native-id shape resolves directly
	if channelIDPattern.MatchString(query) {
		return c.ChannelStats(ctx, query)
	}

	// Strategy 2: strip a leading handle marker and search
	handle := strings.TrimPrefix(query, "@")
	if id, err := c.searchChannelID(ctx, handle); err != nil {
		c.logger.Warn("search.list failed", zap.String("query", handle), zap.Error(err))
	} else if id != "" {
		return c.ChannelStats(ctx, id)
	}

	// Strategy 3: legacy lookup by username (older channels only)
	if stats, err := c.channelByUsername(ctx, handle); err != nil {
		c.logger.Warn("channels.list(forUsername) failed", zap.String("query", handle), zap.Error(err))
	} else if stats != nil {
		return stats, nil
	}

	// Strategy 4: extract an id or handle from a pasted URL and retry once
	if match := channelURLPattern.FindStringSubmatch(query); match != nil {
		token := match[1]
		if strings.HasPrefix(token, "UC") && len(token) > 20 {
			return c.ChannelStats(ctx, token)
		}
		return c.resolve(ctx, "@"+token, attempts-1)
	}

	return nil, ErrNotFound
}

// searchChannelID finds the best-matching channel id for a query, or ""
func (c *Client) searchChannelID(ctx context.Context, q string) (string, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "channel")
	query.Set("maxResults", "1")
	query.Set("part", "snippet")

	var resp searchListResponse
	if err := c.get(ctx, "/search", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID.ChannelID, nil
}

// channelByUsername looks a channel up by its legacy username
func (c *Client) channelByUsername(ctx context.Context, username string) (*ChannelStats, error) {
	query := url.Values{}
	query.Set("forUsername", username)
	query.Set("part", "snippet,statistics")

	var resp channelListResponse
	if err := c.get(ctx, "/channels", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return c.mapChannel(&resp, 0), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) mapChannel(resp *channelListResponse, i int) *ChannelStats {
	item := resp.Items[i]
	return &ChannelStats{
		ChannelID:       item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		Country:         item.Snippet.Country,
		Thumbnails:      item.Snippet.Thumbnails,
		ViewCount:       parseCount(item.Statistics.ViewCount),
		SubscriberCount: parseCount(item.Statistics.SubscriberCount),
		VideoCount:      parseCount(item.Statistics.VideoCount),
	}
}

// parseCount converts a stats string to int64, defaulting to 0
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
