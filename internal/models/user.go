package models

import (
	"database/sql"
	"time"
)

// User represents an application user
type User struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id"`
	DisplayName string         `gorm:"type:varchar(255);not null;column:display_name"`
	AvatarURL   sql.NullString `gorm:"type:varchar(1024);column:avatar_url"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;column:created_at"`

	// Relationships
	Identities []Identity `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
