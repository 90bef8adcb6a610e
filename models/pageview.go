package models

import "time"

// PageView counts SPA page loads per calendar day (YYYY-MM-DD in the app timezone) and path.
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_pv_day_path" json:"day"`
	Path      string    `gorm:"size:255;not null;uniqueIndex:idx_pv_day_path" json:"path"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
