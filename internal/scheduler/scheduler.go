package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/internal/twitter"
	"github.com/pulsedash/pulse/pkg/config"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

// IdentitySource enumerates linked identities for a provider
type IdentitySource interface {
	ListByProvider(ctx context.Context, provider string) ([]*models.Identity, error)
}

// ActivityFetcher fetches a bounded page of recent activity for one
// identity. Failures degrade to an empty page inside the fetcher.
type ActivityFetcher interface {
	RecentTweets(ctx context.Context, identity *models.Identity) []twitter.RawItem
}

// RawBuffer persists one user's fetched page as a single atomic batch
type RawBuffer interface {
	BufferBatch(ctx context.Context, tweets []models.RawTweet) error
}

// ETLRunner runs the transform-load stage once
type ETLRunner interface {
	Run(ctx context.Context) (int, error)
}

// SnapshotRefresher re-captures stats for every tracked channel
type SnapshotRefresher interface {
	TrackedChannels(ctx context.Context) ([]string, error)
	Capture(ctx context.Context, channelID string) (*models.ChannelSnapshot, error)
}

// Scheduler drives the full pipeline on a fixed interval. It holds no state
// between cycles beyond what is in the store, so a restart resumes cleanly.
type Scheduler struct {
	identities   IdentitySource
	fetcher      ActivityFetcher
	buffer       RawBuffer
	etl          ETLRunner
	snapshots    SnapshotRefresher
	interval     time.Duration
	fetchTimeout time.Duration
	maxWorkers   int
	logger       *zap.Logger
}

// New creates a new scheduler. The snapshot refresher may be nil when the
// stats provider is disabled.
func New(cfg *config.SchedulerConfig, identities IdentitySource, fetcher ActivityFetcher, buffer RawBuffer, etl ETLRunner, snapshots SnapshotRefresher) *Scheduler {
	return &Scheduler{
		identities:   identities,
		fetcher:      fetcher,
		buffer:       buffer,
		etl:          etl,
		snapshots:    snapshots,
		interval:     cfg.Interval,
		fetchTimeout: cfg.FetchTimeout,
		maxWorkers:   cfg.MaxWorkers,
		logger:       logging.GetLogger().With(zap.String("component", "scheduler")),
	}
}

// Run executes one cycle immediately, then one per interval until the
// context is cancelled. Cycles run synchronously in this loop and never
// overlap: time.Ticker drops ticks that fire while a cycle is still
// running (skip-tick policy), and the next boundary after completion picks
// up naturally.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting pipeline scheduler", zap.Duration("interval", s.interval))

	s.RunCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full pipeline cycle: fetch-and-buffer for every
// linked identity, one ETL run over the whole buffer, then a snapshot
// refresh of all tracked channels. Per-unit failures are logged and
// absorbed; nothing aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.cycle")
	defer span.End()

	started := time.Now()
	s.logger.Info("Pipeline cycle starting")

	s.ingestActivity(ctx)

	if loaded, err := s.etl.Run(ctx); err != nil {
		// The next cycle retries naturally: selection is idempotent
		s.logger.Error("ETL run failed", zap.Error(err))
	} else if loaded > 0 {
		s.logger.Info("ETL loaded new posts", zap.Int("loaded", loaded))
	}

	s.refreshSnapshots(ctx)

	s.logger.Info("Pipeline cycle finished", zap.Duration("elapsed", time.Since(started)))
}

// ingestActivity fetches and buffers raw activity for every identity,
// fanning out over a bounded worker pool. Each user's batch is its own
// transaction; one user's failure never touches another's.
func (s *Scheduler) ingestActivity(ctx context.Context) {
	identities, err := s.identities.ListByProvider(ctx, models.ProviderTwitter)
	if err != nil {
		s.logger.Error("Failed to enumerate identities", zap.Error(err))
		return
	}

	s.logger.Info("Fetching activity", zap.Int("identities", len(identities)))

	sem := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup
	for _, identity := range identities {
		identity := identity
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.ingestUser(ctx, identity)
		}()
	}
	wg.Wait()
}

// ingestUser fetches one identity's recent activity and buffers it. A hung
// provider call is cut off by the per-call deadline and treated as a fetch
// failure for this user only.
func (s *Scheduler) ingestUser(ctx context.Context, identity *models.Identity) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	items := s.fetcher.RecentTweets(fetchCtx, identity)
	if len(items) == 0 {
		return
	}

	tweets := make([]models.RawTweet, 0, len(items))
	for _, item := range items {
		tweets = append(tweets, models.RawTweet{
			TweetID:        item.ID,
			AuthorUserID:   identity.UserID,
			TweetText:      item.Text,
			TweetCreatedAt: item.CreatedAt,
			RawData:        item.Payload,
		})
	}

	if err := s.buffer.BufferBatch(ctx, tweets); err != nil {
		s.logger.Error("Failed to buffer raw tweets",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		return
	}

	s.logger.Debug("Buffered raw tweets",
		zap.Int64("user_id", identity.UserID),
		zap.Int("tweets", len(tweets)))
}

// refreshSnapshots appends a fresh snapshot for every channel that already
// has history, keeping the time series dense without user interaction
func (s *Scheduler) refreshSnapshots(ctx context.Context) {
	if s.snapshots == nil {
		return
	}

	channels, err := s.snapshots.TrackedChannels(ctx)
	if err != nil {
		s.logger.Error("Failed to list tracked channels", zap.Error(err))
		return
	}

	for _, channelID := range channels {
		captureCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		if _, err := s.snapshots.Capture(captureCtx, channelID); err != nil {
			s.logger.Warn("Snapshot refresh failed",
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
		cancel()
	}
}
