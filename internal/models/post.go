package models

import (
	"time"
)

// ProcessedPost is a normalized unit of social activity produced by the ETL
// stage. The (source provider, source post id) pair is the unique natural
// key; rows are append-only and never updated.
type ProcessedPost struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64     `gorm:"not null;index;column:user_id"`
	SourceProvider string    `gorm:"type:varchar(32);not null;uniqueIndex:processed_posts_ux1,priority:1;column:source_provider"`
	SourcePostID   string    `gorm:"type:varchar(64);not null;uniqueIndex:processed_posts_ux1,priority:2;column:source_post_id"`
	PostText       string    `gorm:"type:text;not null;column:post_text"`
	PostCreatedAt  time.Time `gorm:"not null;column:post_created_at"`
	LikeCount      int64     `gorm:"not null;default:0;column:like_count"`
	RetweetCount   int64     `gorm:"not null;default:0;column:retweet_count"`
	ReplyCount     int64     `gorm:"not null;default:0;column:reply_count"`
	QuoteCount     int64     `gorm:"not null;default:0;column:quote_count"`
	ProcessedAt    time.Time `gorm:"not null;autoCreateTime;column:processed_at"`
}

// TableName specifies the table name for ProcessedPost
func (ProcessedPost) TableName() string {
	return "processed_posts"
}
