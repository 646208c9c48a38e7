package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/pkg/config"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

// RawItem is one tweet as returned by the timeline endpoint: the columns the
// raw buffer needs up front, plus the untouched provider payload.
type RawItem struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Payload   json.RawMessage
}

// Client fetches recent user timelines from the Twitter v2 API. Requests are
// signed with OAuth 1.0a user context: the application's consumer key pair
// plus the per-identity access token pair.
type Client struct {
	baseURL  string
	oauth    *oauth1.Config
	pageSize int
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a new Twitter client
func New(cfg *config.TwitterConfig) (*Client, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("twitter consumer key and secret are required")
	}

	logger := logging.GetLogger().With(zap.String("component", "twitter-client"))

	client := &Client{
		baseURL:  cfg.BaseURL,
		oauth:    oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		pageSize: cfg.PageSize,
		timeout:  15 * time.Second,
		logger:   logger,
	}

	logger.Info("Twitter client initialized", zap.String("base_url", cfg.BaseURL))

	return client, nil
}

// timelineResponse mirrors the v2 user timeline envelope. Each element of
// data is kept as raw JSON so the buffer stores exactly what the provider
// sent.
type timelineResponse struct {
	Data []json.RawMessage `json:"data"`
}

// tweetHeader extracts only the columns the raw buffer stores alongside the
// opaque payload
type tweetHeader struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentTweets fetches the most recent page of tweets for the identity's
// timeline. The page is bounded by the configured page size and each item
// carries created_at and public_metrics. Transport, auth and decoding
// failures degrade to an empty page: the scheduler treats that the same as a
// quiet timeline and the next cycle retries naturally.
func (c *Client) RecentTweets(ctx context.Context, identity *models.Identity) []RawItem {
	ctx, span := telemetry.StartSpan(ctx, "twitter.recent_tweets")
	defer span.End()

	token := oauth1.NewToken(identity.AccessToken, identity.AccessTokenSecret.String)
	httpClient := c.oauth.Client(ctx, token)
	httpClient.Timeout = c.timeout

	endpoint := fmt.Sprintf("%s/2/users/%s/tweets", c.baseURL, url.PathEscape(identity.ProviderID))
	query := url.Values{}
	query.Set("max_results", strconv.Itoa(c.pageSize))
	query.Set("tweet.fields", "created_at,public_metrics")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		c.logger.Error("Failed to build timeline request",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		return nil
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Timeline fetch failed",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("Timeline fetch returned non-OK status",
			zap.Int64("user_id", identity.UserID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil
	}

	var timeline timelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		c.logger.Warn("Failed to decode timeline response",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		return nil
	}

	items := make([]RawItem, 0, len(timeline.Data))
	for _, raw := range timeline.Data {
		var header tweetHeader
		if err := json.Unmarshal(raw, &header); err != nil || header.ID == "" {
			c.logger.Warn("Skipping undecodable tweet in timeline",
				zap.Int64("user_id", identity.UserID),
				zap.Error(err))
			continue
		}
		items = append(items, RawItem{
			ID:        header.ID,
			Text:      header.Text,
			CreatedAt: header.CreatedAt,
			Payload:   raw,
		})
	}

	c.logger.Debug("Fetched timeline page",
		zap.Int64("user_id", identity.UserID),
		zap.Int("tweets", len(items)))

	return items
}
