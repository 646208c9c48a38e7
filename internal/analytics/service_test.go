package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/internal/youtube"
)

// fakeProvider serves canned stats and counts fetches
type fakeProvider struct {
	stats      map[string]*youtube.ChannelStats
	resolved   map[string]string // query -> channel id
	fetchCalls int
}

func (p *fakeProvider) ChannelStats(ctx context.Context, channelID string) (*youtube.ChannelStats, error) {
	p.fetchCalls++
	if stats, ok := p.stats[channelID]; ok {
		return stats, nil
	}
	return nil, youtube.ErrNotFound
}

func (p *fakeProvider) Resolve(ctx context.Context, query string) (*youtube.ChannelStats, error) {
	if id, ok := p.resolved[query]; ok {
		return p.stats[id], nil
	}
	return nil, youtube.ErrNotFound
}

// fakeSnapshotStore keeps per-channel history in memory, newest first
type fakeSnapshotStore struct {
	snapshots map[string][]models.ChannelSnapshot
	clock     time.Time
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		snapshots: make(map[string][]models.ChannelSnapshot),
		clock:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeSnapshotStore) Append(ctx context.Context, snapshot *models.ChannelSnapshot) error {
	s.clock = s.clock.Add(time.Hour)
	snapshot.FetchedAt = s.clock
	// Prepend to keep newest-first order
	s.snapshots[snapshot.ChannelID] = append([]models.ChannelSnapshot{*snapshot}, s.snapshots[snapshot.ChannelID]...)
	return nil
}

func (s *fakeSnapshotStore) Latest(ctx context.Context, channelID string) (*models.ChannelSnapshot, error) {
	history := s.snapshots[channelID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[0]
	return &latest, nil
}

func (s *fakeSnapshotStore) History(ctx context.Context, channelID string, limit int) ([]models.ChannelSnapshot, error) {
	history := s.snapshots[channelID]
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *fakeSnapshotStore) DistinctChannelIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

// seedHistory appends snapshots oldest-first so the given counts end up
// newest-first in storage order
func seedHistory(store *fakeSnapshotStore, channelID string, subscriberCounts []int64) {
	for i := len(subscriberCounts) - 1; i >= 0; i-- {
		store.Append(context.Background(), &models.ChannelSnapshot{
			ChannelID:       channelID,
			SubscriberCount: subscriberCounts[i],
			ViewCount:       subscriberCounts[i] * 100,
		})
	}
}

func TestWindowDelta(t *testing.T) {
	store := newFakeSnapshotStore()
	// Newest-first: index 0 = newest
	seedHistory(store, "ch", []int64{1000, 900, 800, 700, 600, 500, 400, 300})
	history, _ := store.History(context.Background(), "ch", 60)

	subs := func(s *models.ChannelSnapshot) int64 { return s.SubscriberCount }

	if got := windowDelta(history, 7, subs); got != 700 {
		t.Errorf("7-window delta = %d, want 700 (1000 - 300)", got)
	}
	// 30-window is capped by available history: newest 1000, oldest 300
	if got := windowDelta(history, 30, subs); got != 700 {
		t.Errorf("30-window delta = %d, want 700", got)
	}
	if got := windowDelta(history[:1], 7, subs); got != 0 {
		t.Errorf("Delta over a single snapshot = %d, want 0", got)
	}
	if got := windowDelta(nil, 7, subs); got != 0 {
		t.Errorf("Delta over empty history = %d, want 0", got)
	}
}

func TestWindowDelta_NegativeDecline(t *testing.T) {
	store := newFakeSnapshotStore()
	seedHistory(store, "ch", []int64{500, 800, 1000})
	history, _ := store.History(context.Background(), "ch", 60)

	got := windowDelta(history, 7, func(s *models.ChannelSnapshot) int64 { return s.SubscriberCount })
	if got != -500 {
		t.Errorf("Declining history delta = %d, want -500", got)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name        string
		subscribers int64
		expected    string
	}{
		{"ten million and one", 10000001, "A+"},
		{"exactly ten million", 10000000, "A"},
		{"above five million", 5000001, "A"},
		{"above one million", 1000001, "A-"},
		{"exactly one million falls to B+", 1000000, "B+"},
		{"above half million", 500001, "B+"},
		{"above hundred thousand", 100001, "B"},
		{"above fifty thousand", 50001, "B-"},
		{"above ten thousand", 10001, "C+"},
		{"above one thousand", 1001, "C"},
		{"exactly one thousand", 1000, "D"},
		{"zero", 0, "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The views argument is accepted but must not affect the tier
			if got := Grade(tt.subscribers, 999999999); got != tt.expected {
				t.Errorf("Grade(%d) = %s, want %s", tt.subscribers, got, tt.expected)
			}
		})
	}
}

func TestEstimateEarnings(t *testing.T) {
	if got := estimateEarnings(100000, cpmLow); got != 50 {
		t.Errorf("Low estimate for 100k views = %d, want 50", got)
	}
	if got := estimateEarnings(100000, cpmHigh); got != 400 {
		t.Errorf("High estimate for 100k views = %d, want 400", got)
	}
	// Declines stay negative, no clamping
	if got := estimateEarnings(-10000, cpmHigh); got != -40 {
		t.Errorf("Negative delta estimate = %d, want -40", got)
	}
	if got := estimateEarnings(0, cpmLow); got != 0 {
		t.Errorf("Zero delta estimate = %d, want 0", got)
	}
}

func TestCapture_AlwaysAppends(t *testing.T) {
	provider := &fakeProvider{stats: map[string]*youtube.ChannelStats{
		"ch": {ChannelID: "ch", Title: "Channel", SubscriberCount: 100, ViewCount: 1000},
	}}
	store := newFakeSnapshotStore()
	service := NewService(provider, store)

	// Unchanged values still produce a new time-series point per call
	for i := 0; i < 3; i++ {
		if _, err := service.Capture(context.Background(), "ch"); err != nil {
			t.Fatalf("Capture failed: %v", err)
		}
	}
	if len(store.snapshots["ch"]) != 3 {
		t.Errorf("Expected 3 snapshots, got %d", len(store.snapshots["ch"]))
	}
}

func TestCapture_UnknownChannel(t *testing.T) {
	service := NewService(&fakeProvider{stats: map[string]*youtube.ChannelStats{}}, newFakeSnapshotStore())
	if _, err := service.Capture(context.Background(), "ghost"); !errors.Is(err, youtube.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestSummarize_SelfBootstrap(t *testing.T) {
	provider := &fakeProvider{stats: map[string]*youtube.ChannelStats{
		"ch": {ChannelID: "ch", Title: "Channel", SubscriberCount: 1000001, ViewCount: 5000},
	}}
	store := newFakeSnapshotStore()
	service := NewService(provider, store)

	summary, err := service.Summarize(context.Background(), "ch")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if provider.fetchCalls != 1 {
		t.Errorf("Expected exactly one bootstrap fetch, got %d", provider.fetchCalls)
	}
	if len(store.snapshots["ch"]) != 1 {
		t.Errorf("Expected exactly one persisted snapshot, got %d", len(store.snapshots["ch"]))
	}
	if summary.Latest == nil || summary.Latest.SubscriberCount != 1000001 {
		t.Errorf("Unexpected latest snapshot: %+v", summary.Latest)
	}
	if summary.Grade != "A-" {
		t.Errorf("Expected grade A-, got %s", summary.Grade)
	}
	// Single point: all deltas zero
	if summary.Subs7 != 0 || summary.Subs30 != 0 || summary.Views30 != 0 {
		t.Errorf("Expected zero deltas for single snapshot, got %+v", summary)
	}
}

func TestSummarize_UnresolvableChannel(t *testing.T) {
	service := NewService(&fakeProvider{stats: map[string]*youtube.ChannelStats{}}, newFakeSnapshotStore())
	if _, err := service.Summarize(context.Background(), "ghost"); !errors.Is(err, youtube.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestSummarize_DerivedMetrics(t *testing.T) {
	provider := &fakeProvider{stats: map[string]*youtube.ChannelStats{}}
	store := newFakeSnapshotStore()
	service := NewService(provider, store)

	// Oldest to newest: views climb 1_000_000 -> 1_100_000 over 3 captures
	for i, views := range []int64{1000000, 1050000, 1100000} {
		store.Append(context.Background(), &models.ChannelSnapshot{
			ChannelID:       "ch",
			SubscriberCount: 600000 + int64(i)*1000,
			ViewCount:       views,
		})
	}

	summary, err := service.Summarize(context.Background(), "ch")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if provider.fetchCalls != 0 {
		t.Errorf("Existing history must not trigger a fetch, got %d calls", provider.fetchCalls)
	}
	if summary.Views30 != 100000 {
		t.Errorf("Views30 = %d, want 100000", summary.Views30)
	}
	if summary.Subs7 != 2000 {
		t.Errorf("Subs7 = %d, want 2000", summary.Subs7)
	}
	if summary.EstimatedMonthlyEarnings.Low != 50 || summary.EstimatedMonthlyEarnings.High != 400 {
		t.Errorf("Earnings = %+v, want {50 400}", summary.EstimatedMonthlyEarnings)
	}
	if summary.Grade != "B+" {
		t.Errorf("Grade = %s, want B+", summary.Grade)
	}

	// History is presented oldest-first
	if len(summary.History) != 3 {
		t.Fatalf("Expected 3 history points, got %d", len(summary.History))
	}
	if summary.History[0].ViewCount != 1000000 || summary.History[2].ViewCount != 1100000 {
		t.Errorf("History must ascend in time: %+v", summary.History)
	}
}

func TestTrack(t *testing.T) {
	provider := &fakeProvider{
		stats: map[string]*youtube.ChannelStats{
			"ch": {ChannelID: "ch", Title: "Channel", SubscriberCount: 2000, ViewCount: 100},
		},
		resolved: map[string]string{"@channel": "ch"},
	}
	store := newFakeSnapshotStore()
	service := NewService(provider, store)

	summary, err := service.Track(context.Background(), "@channel")
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if summary.Latest.ChannelID != "ch" {
		t.Errorf("Unexpected channel: %s", summary.Latest.ChannelID)
	}
	if summary.Grade != "C" {
		t.Errorf("Grade = %s, want C", summary.Grade)
	}
	if len(store.snapshots["ch"]) != 1 {
		t.Errorf("Track must persist one snapshot, got %d", len(store.snapshots["ch"]))
	}

	if _, err := service.Track(context.Background(), "nobody"); !errors.Is(err, youtube.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unresolvable query, got: %v", err)
	}
}
