package models

import (
	"time"
)

// RawTweet is an unprocessed tweet payload exactly as received from the
// provider. The tweet id is the provider-assigned natural key; re-ingesting
// the same id is a no-op. Rows are immutable once written and are consumed
// (never deleted) by the ETL stage.
type RawTweet struct {
	TweetID        string    `gorm:"primaryKey;type:varchar(64);column:tweet_id"`
	AuthorUserID   int64     `gorm:"not null;index;column:author_user_id"`
	TweetText      string    `gorm:"type:text;not null;column:tweet_text"`
	TweetCreatedAt time.Time `gorm:"not null;column:tweet_created_at"`
	RawData        []byte    `gorm:"type:jsonb;not null;column:raw_data"`
	FetchedAt      time.Time `gorm:"not null;autoCreateTime;column:fetched_at"`
}

// TableName specifies the table name for RawTweet
func (RawTweet) TableName() string {
	return "raw_tweets"
}
