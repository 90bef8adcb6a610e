package models

import "time"

// XPEntry is one immutable row of the XP ledger. Negative amounts are penalties.
type XPEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_xp_user_created" json:"user_id"`
	Amount      int       `gorm:"not null" json:"amount"`
	Description string    `gorm:"size:255;not null" json:"description"`
	CreatedAt   time.Time `gorm:"index:idx_xp_user_created;index" json:"created_at"`
}

// TableName keeps the historical table name.
func (XPEntry) TableName() string {
	return "xp_ledger"
}

// MonthlyWinner snapshots the top XP earner of a finished calendar month.
type MonthlyWinner struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Month     string    `gorm:"size:7;not null;uniqueIndex" json:"month"` // YYYY-MM
	UserID    uint      `gorm:"not null" json:"user_id"`
	Username  string    `gorm:"size:64" json:"username"`
	AvatarURL string    `gorm:"size:1024" json:"avatar_url"`
	TotalXP   int       `json:"total_xp"`
	CreatedAt time.Time `json:"created_at"`
}
