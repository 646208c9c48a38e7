package models

import (
	"database/sql"
	"time"
)

// ChannelSnapshot is a point-in-time measurement of a YouTube channel's
// public stats. History for a channel is append-only and ordered by
// FetchedAt; snapshots are never mutated or deleted.
type ChannelSnapshot struct {
	ID              int64          `gorm:"primaryKey;autoIncrement;column:id"`
	ChannelID       string         `gorm:"type:varchar(64);not null;index;column:channel_id"`
	Title           string         `gorm:"type:varchar(255);not null;column:title"`
	Description     string         `gorm:"type:text;not null;default:'';column:description"`
	Country         sql.NullString `gorm:"type:varchar(8);column:country"`
	Thumbnails      []byte         `gorm:"type:jsonb;column:thumbnails"`
	ViewCount       int64          `gorm:"not null;default:0;column:view_count"`
	SubscriberCount int64          `gorm:"not null;default:0;column:subscriber_count"`
	VideoCount      int64          `gorm:"not null;default:0;column:video_count"`
	FetchedAt       time.Time      `gorm:"not null;autoCreateTime;index;column:fetched_at"`
}

// TableName specifies the table name for ChannelSnapshot
func (ChannelSnapshot) TableName() string {
	return "youtube_channel_snapshots"
}
