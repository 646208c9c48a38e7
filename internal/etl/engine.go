package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

// ErrMalformedPayload is returned when a raw record's payload cannot be
// transformed into a processed post. It aborts the whole run before any row
// is written.
var ErrMalformedPayload = errors.New("etl: malformed raw payload")

// RawSource selects unprocessed raw records. The implementation must return
// only records whose natural id is not yet present among the processed
// posts, so repeated runs converge.
type RawSource interface {
	Unprocessed(ctx context.Context) ([]models.RawTweet, error)
}

// FactSink loads a run's worth of processed posts in one atomic unit and
// reports how many rows were newly inserted. Duplicate natural keys must be
// ignored, not errored.
type FactSink interface {
	LoadBatch(ctx context.Context, posts []models.ProcessedPost) (int, error)
}

// Engine is the Transform-Load stage: it normalizes buffered raw tweets into
// processed posts. Running it twice against the same buffer state yields the
// same post set; the second run is a no-op.
type Engine struct {
	source RawSource
	sink   FactSink
	logger *zap.Logger
}

// NewEngine creates a new ETL engine
func NewEngine(source RawSource, sink FactSink) *Engine {
	return &Engine{
		source: source,
		sink:   sink,
		logger: logging.GetLogger().With(zap.String("component", "etl")),
	}
}

// Run performs one extract-transform-load pass and returns the number of
// newly loaded posts. Transform failures abort before any write; load
// failures roll back the whole batch in the sink.
func (e *Engine) Run(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "etl.run")
	defer span.End()

	raw, err := e.source.Unprocessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to select unprocessed tweets: %w", err)
	}
	if len(raw) == 0 {
		e.logger.Debug("No new raw tweets to process")
		return 0, nil
	}

	posts := make([]models.ProcessedPost, 0, len(raw))
	for i := range raw {
		post, err := transformTweet(&raw[i])
		if err != nil {
			return 0, err
		}
		posts = append(posts, *post)
	}

	loaded, err := e.sink.LoadBatch(ctx, posts)
	if err != nil {
		return 0, fmt.Errorf("failed to load post batch: %w", err)
	}

	e.logger.Info("ETL run complete",
		zap.Int("selected", len(raw)),
		zap.Int("loaded", loaded))

	return loaded, nil
}

// tweetPayload validates and extracts only the fields the transform needs
// from the provider-native payload
type tweetPayload struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int64 `json:"like_count"`
		RetweetCount int64 `json:"retweet_count"`
		ReplyCount   int64 `json:"reply_count"`
		QuoteCount   int64 `json:"quote_count"`
	} `json:"public_metrics"`
}

// transformTweet maps a raw record's opaque payload into a processed post.
// Missing engagement counters default to zero; a payload without the natural
// id is malformed. Ownership is carried from the raw record, never
// re-derived.
func transformTweet(raw *models.RawTweet) (*models.ProcessedPost, error) {
	var payload tweetPayload
	if err := json.Unmarshal(raw.RawData, &payload); err != nil {
		return nil, fmt.Errorf("%w: tweet %s: %v", ErrMalformedPayload, raw.TweetID, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: tweet %s: payload has no id", ErrMalformedPayload, raw.TweetID)
	}

	// The buffered column is authoritative when the payload omits created_at
	createdAt := raw.TweetCreatedAt
	if payload.CreatedAt != "" {
		if parsed, err := parseTweetTime(payload.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	return &models.ProcessedPost{
		UserID:         raw.AuthorUserID,
		SourceProvider: models.ProviderTwitter,
		SourcePostID:   payload.ID,
		PostText:       payload.Text,
		PostCreatedAt:  createdAt,
		LikeCount:      payload.PublicMetrics.LikeCount,
		RetweetCount:   payload.PublicMetrics.RetweetCount,
		ReplyCount:     payload.PublicMetrics.ReplyCount,
		QuoteCount:     payload.PublicMetrics.QuoteCount,
	}, nil
}
