package models

import "time"

// UserProgress is the per-(user, plan) reading position.
// Furthest* is the high-water mark and never decreases.
type UserProgress struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_progress_user_plan" json:"user_id"`
	PlanID          uint      `gorm:"not null;uniqueIndex:idx_progress_user_plan;index" json:"plan_id"`
	CurrentChapter  int       `gorm:"not null;default:0" json:"current_chapter"`
	CurrentPage     int       `gorm:"not null;default:0" json:"current_page"`
	FurthestChapter int       `gorm:"not null;default:0" json:"furthest_chapter"`
	FurthestPage    int       `gorm:"not null;default:0" json:"furthest_page"`
	IsCompleted     bool      `gorm:"not null;default:false" json:"is_completed"`
	LastReadAt      time.Time `gorm:"index" json:"last_read_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName keeps the historical table name.
func (UserProgress) TableName() string {
	return "user_progress"
}

// Position returns the current and furthest positions in the plan's unit.
func (p UserProgress) Position(pageMode bool) (current, furthest int) {
	if pageMode {
		return p.CurrentPage, p.FurthestPage
	}
	return p.CurrentChapter, p.FurthestChapter
}
