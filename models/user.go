package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is a club member profile. Passwords are stored as bcrypt hashes only.
// Streak state lives here: Streak plus the calendar date of the last reading activity.
type User struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Username          string          `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email             string          `gorm:"size:255;index" json:"email"`
	PasswordHash      string          `gorm:"size:255" json:"-"`
	Provider          string          `gorm:"size:32" json:"provider"`
	ProviderID        string          `gorm:"size:255" json:"-"`
	RegisterIP        string          `gorm:"size:45" json:"-"`
	AvatarURL         string          `gorm:"size:1024" json:"avatar_url"`
	BirthMonth        int             `gorm:"default:0" json:"birth_month"`
	BirthDay          int             `gorm:"default:0" json:"birth_day"`
	Streak            int             `gorm:"not null;default:0" json:"streak"`
	LastActiveDate    *datatypes.Date `gorm:"index" json:"last_active_date"`
	LastSeenCommunity *time.Time      `json:"last_seen_community"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
