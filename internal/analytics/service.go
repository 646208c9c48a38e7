package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/internal/youtube"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

const (
	// historyLimit caps how many snapshots feed a summary
	historyLimit = 60
	// Rolling windows are capture counts, not calendar days
	shortWindow = 7
	longWindow  = 30
)

// CPM band used for the monthly earnings estimate, dollars per 1000 views
const (
	cpmLow  = 0.5
	cpmHigh = 4.0
)

// StatsProvider fetches fresh channel stats and resolves free-text queries
type StatsProvider interface {
	ChannelStats(ctx context.Context, channelID string) (*youtube.ChannelStats, error)
	Resolve(ctx context.Context, query string) (*youtube.ChannelStats, error)
}

// SnapshotStore persists and reads append-only channel snapshot history
type SnapshotStore interface {
	Append(ctx context.Context, snapshot *models.ChannelSnapshot) error
	Latest(ctx context.Context, channelID string) (*models.ChannelSnapshot, error)
	History(ctx context.Context, channelID string, limit int) ([]models.ChannelSnapshot, error)
	DistinctChannelIDs(ctx context.Context) ([]string, error)
}

// EarningsEstimate is a monthly earnings band derived from the 30-capture
// view delta. It can be zero or negative when views declined; no floor is
// applied.
type EarningsEstimate struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
}

// HistoryPoint is one snapshot reduced to the fields charts need
type HistoryPoint struct {
	FetchedAt       time.Time `json:"fetched_at"`
	SubscriberCount int64     `json:"subscriber_count"`
	ViewCount       int64     `json:"view_count"`
	VideoCount      int64     `json:"video_count"`
}

// Summary is the derived view over a channel's snapshot history. It is
// recomputed on every read and never persisted.
type Summary struct {
	Latest                   *models.ChannelSnapshot `json:"latest"`
	Subs7                    int64                   `json:"subs_7"`
	Subs30                   int64                   `json:"subs_30"`
	Views30                  int64                   `json:"views_30"`
	EstimatedMonthlyEarnings EarningsEstimate        `json:"estimated_monthly_earnings"`
	Grade                    string                  `json:"grade"`
	History                  []HistoryPoint          `json:"history"`
}

// Service is the snapshot and aggregation engine for channel stats
type Service struct {
	provider StatsProvider
	store    SnapshotStore
	logger   *zap.Logger
}

// NewService creates a new analytics service
func NewService(provider StatsProvider, store SnapshotStore) *Service {
	return &Service{
		provider: provider,
		store:    store,
		logger:   logging.GetLogger().With(zap.String("component", "analytics")),
	}
}

// Capture fetches fresh stats and appends a new snapshot row. Every call
// produces a new time-series point, even if the values are unchanged.
func (s *Service) Capture(ctx context.Context, channelID string) (*models.ChannelSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "analytics.capture")
	defer span.End()

	stats, err := s.provider.ChannelStats(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for channel %s: %w", channelID, err)
	}

	snapshot := snapshotFromStats(stats)
	if err := s.store.Append(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to append snapshot for channel %s: %w", channelID, err)
	}

	s.logger.Debug("Captured snapshot",
		zap.String("channel_id", channelID),
		zap.Int64("subscribers", snapshot.SubscriberCount))

	return snapshot, nil
}

// Summarize computes the derived summary for a channel. A channel with no
// prior history triggers exactly one just-in-time capture; the error
// propagates only when the channel truly cannot be resolved.
func (s *Service) Summarize(ctx context.Context, channelID string) (*Summary, error) {
	ctx, span := telemetry.StartSpan(ctx, "analytics.summarize")
	defer span.End()

	latest, err := s.store.Latest(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	if latest == nil {
		if _, err := s.Capture(ctx, channelID); err != nil {
			return nil, err
		}
		latest, err = s.store.Latest(ctx, channelID)
		if err != nil {
			return nil, fmt.Errorf("failed to read bootstrapped snapshot: %w", err)
		}
		if latest == nil {
			return nil, youtube.ErrNotFound
		}
	}

	history, err := s.store.History(ctx, channelID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot history: %w", err)
	}

	views30 := windowDelta(history, longWindow, func(s *models.ChannelSnapshot) int64 { return s.ViewCount })

	return &Summary{
		Latest:  latest,
		Subs7:   windowDelta(history, shortWindow, func(s *models.ChannelSnapshot) int64 { return s.SubscriberCount }),
		Subs30:  windowDelta(history, longWindow, func(s *models.ChannelSnapshot) int64 { return s.SubscriberCount }),
		Views30: views30,
		EstimatedMonthlyEarnings: EarningsEstimate{
			Low:  estimateEarnings(views30, cpmLow),
			High: estimateEarnings(views30, cpmHigh),
		},
		Grade:   Grade(latest.SubscriberCount, latest.ViewCount),
		History: ascendingHistory(history),
	}, nil
}

// Track resolves a free-text query to a channel, records a first snapshot
// and returns its summary
func (s *Service) Track(ctx context.Context, query string) (*Summary, error) {
	ctx, span := telemetry.StartSpan(ctx, "analytics.track")
	defer span.End()

	stats, err := s.provider.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := s.store.Append(ctx, snapshotFromStats(stats)); err != nil {
		return nil, fmt.Errorf("failed to append snapshot for channel %s: %w", stats.ChannelID, err)
	}

	return s.Summarize(ctx, stats.ChannelID)
}

// History returns up to limit snapshots for presentation, newest first
func (s *Service) History(ctx context.Context, channelID string, limit int) ([]models.ChannelSnapshot, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	return s.store.History(ctx, channelID, limit)
}

// TrackedChannels lists every channel with snapshot history
func (s *Service) TrackedChannels(ctx context.Context) ([]string, error) {
	return s.store.DistinctChannelIDs(ctx)
}

// windowDelta measures movement across the last window captures of a
// newest-first history: the newest value minus the value window captures
// back, clamped to the oldest snapshot available. Fewer than 2 snapshots
// means no movement can be measured, so the delta is 0.
func windowDelta(history []models.ChannelSnapshot, window int, field func(*models.ChannelSnapshot) int64) int64 {
	if len(history) < 2 {
		return 0
	}
	oldest := window
	if oldest > len(history)-1 {
		oldest = len(history) - 1
	}
	return field(&history[0]) - field(&history[oldest])
}

// estimateEarnings converts a view delta into dollars at the given CPM
func estimateEarnings(viewDelta int64, cpm float64) int64 {
	return int64(math.Round(float64(viewDelta) / 1000 * cpm))
}

// Grade maps subscriber count to a tier. Thresholds are strict
// greater-than, evaluated top-down, first match wins. The view count is
// accepted for interface stability but does not currently influence the
// tier.
func Grade(subscribers, views int64) string {
	switch {
	case subscribers > 10000000:
		return "A+"
	case subscribers > 5000000:
		return "A"
	case subscribers > 1000000:
		return "A-"
	case subscribers > 500000:
		return "B+"
	case subscribers > 100000:
		return "B"
	case subscribers > 50000:
		return "B-"
	case subscribers > 10000:
		return "C+"
	case subscribers > 1000:
		return "C"
	default:
		return "D"
	}
}

// ascendingHistory reverses storage order for charting
func ascendingHistory(history []models.ChannelSnapshot) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		points = append(points, HistoryPoint{
			FetchedAt:       history[i].FetchedAt,
			SubscriberCount: history[i].SubscriberCount,
			ViewCount:       history[i].ViewCount,
			VideoCount:      history[i].VideoCount,
		})
	}
	return points
}

// snapshotFromStats builds a snapshot row from normalized provider stats
func snapshotFromStats(stats *youtube.ChannelStats) *models.ChannelSnapshot {
	return &models.ChannelSnapshot{
		ChannelID:       stats.ChannelID,
		Title:           stats.Title,
		Description:     stats.Description,
		Country:         sql.NullString{String: stats.Country, Valid: stats.Country != ""},
		Thumbnails:      stats.Thumbnails,
		ViewCount:       stats.ViewCount,
		SubscriberCount: stats.SubscriberCount,
		VideoCount:      stats.VideoCount,
	}
}
