package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsedash/pulse/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// IdentityRepository provides identity-related database operations.
// Identities are read-only to the pipeline.
type IdentityRepository struct {
	*Repository
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(repo *Repository) *IdentityRepository {
	return &IdentityRepository{Repository: repo}
}

// ListByProvider retrieves all identities linked for a provider
func (r *IdentityRepository) ListByProvider(ctx context.Context, provider string) ([]*models.Identity, error) {
	var identities []*models.Identity
	if err := r.db.WithContext(ctx).Where("provider = ?", provider).Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}

// GetByUserAndProvider retrieves a single identity for a user and provider
func (r *IdentityRepository) GetByUserAndProvider(ctx context.Context, userID int64, provider string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

// RawTweetRepository provides raw buffer database operations
type RawTweetRepository struct {
	*Repository
}

// NewRawTweetRepository creates a new raw tweet repository
func NewRawTweetRepository(repo *Repository) *RawTweetRepository {
	return &RawTweetRepository{Repository: repo}
}

// BufferBatch appends one user's fetched tweets to the raw buffer inside a
// single transaction. Duplicate tweet ids are silently ignored, so
// at-least-once delivery from the provider client is safe. Any other error
// rolls back the whole batch; batches already committed for other users are
// unaffected.
func (r *RawTweetRepository) BufferBatch(ctx context.Context, tweets []models.RawTweet) error {
	if len(tweets) == 0 {
		return nil
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to start transaction: %w", tx.Error)
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			panic(rec)
		}
	}()

	for i := range tweets {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tweet_id"}},
			DoNothing: true,
		}).Create(&tweets[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to buffer tweet %s: %w", tweets[i].TweetID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit raw tweet batch: %w", err)
	}
	return nil
}

// Unprocessed returns the raw tweets whose ids have not yet been loaded into
// processed_posts for the twitter provider. The anti-join makes the ETL
// stage safely re-runnable: already-loaded records never reappear.
func (r *RawTweetRepository) Unprocessed(ctx context.Context) ([]models.RawTweet, error) {
	var tweets []models.RawTweet
	sub := r.db.Model(&models.ProcessedPost{}).
		Select("source_post_id").
		Where("source_provider = ?", models.ProviderTwitter)
	if err := r.db.WithContext(ctx).
		Where("tweet_id NOT IN (?)", sub).
		Find(&tweets).Error; err != nil {
		return nil, err
	}
	return tweets, nil
}

// PostRepository provides processed post database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// LoadBatch inserts a run's worth of processed posts in one transaction and
// returns how many rows were actually inserted. Each insert targets the
// (source_provider, source_post_id) unique key with conflict-do-nothing, so
// concurrent or repeated runs over the same raw data never produce
// duplicates. Any unexpected error rolls back the entire run.
func (r *PostRepository) LoadBatch(ctx context.Context, posts []models.ProcessedPost) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", tx.Error)
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			panic(rec)
		}
	}()

	loaded := 0
	for i := range posts {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_provider"}, {Name: "source_post_id"}},
			DoNothing: true,
		}).Create(&posts[i])
		if res.Error != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to load post %s: %w", posts[i].SourcePostID, res.Error)
		}
		loaded += int(res.RowsAffected)
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("failed to commit post batch: %w", err)
	}
	return loaded, nil
}

// ListByUser retrieves a user's processed posts, newest first
func (r *PostRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.ProcessedPost, error) {
	var posts []*models.ProcessedPost
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("post_created_at DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// SnapshotRepository provides channel snapshot database operations
type SnapshotRepository struct {
	*Repository
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(repo *Repository) *SnapshotRepository {
	return &SnapshotRepository{Repository: repo}
}

// Append persists a new snapshot row. Every call produces a new time-series
// point; there is no deduplication against the previous snapshot.
func (r *SnapshotRepository) Append(ctx context.Context, snapshot *models.ChannelSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// Latest retrieves the most recent snapshot for a channel
func (r *SnapshotRepository) Latest(ctx context.Context, channelID string) (*models.ChannelSnapshot, error) {
	var snapshot models.ChannelSnapshot
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("fetched_at DESC").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// History retrieves up to limit snapshots for a channel, newest first
func (r *SnapshotRepository) History(ctx context.Context, channelID string, limit int) ([]models.ChannelSnapshot, error) {
	var snapshots []models.ChannelSnapshot
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("fetched_at DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// DistinctChannelIDs lists every channel id that has snapshot history
func (r *SnapshotRepository) DistinctChannelIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.ChannelSnapshot{}).
		Distinct("channel_id").
		Pluck("channel_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
