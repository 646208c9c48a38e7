package models

import (
	"database/sql"
	"time"
)

// Provider names as stored in the identities table
const (
	ProviderTwitter = "twitter"
	ProviderGoogle  = "google"
)

// Identity represents a user's linked credential for one external provider.
// Rows are created when an account is linked; the pipeline only ever reads
// them.
type Identity struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64  `gorm:"not null;index;uniqueIndex:identities_ux1,priority:1;column:user_id"`
	Provider    string `gorm:"type:varchar(32);not null;uniqueIndex:identities_ux1,priority:2;column:provider"`
	ProviderID  string `gorm:"type:varchar(255);not null;column:provider_id"`
	AccessToken string `gorm:"type:text;not null;column:access_token"`
	// OAuth 1.0a providers (Twitter) also carry a token secret
	AccessTokenSecret sql.NullString `gorm:"type:text;column:access_token_secret"`
	CreatedAt         time.Time      `gorm:"not null;autoCreateTime;column:created_at"`
}

// TableName specifies the table name for Identity
func (Identity) TableName() string {
	return "identities"
}
