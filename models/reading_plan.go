package models

import "time"

// Plan categories.
const (
	CategoryGospel     = "Gospel"
	CategoryTheology   = "Theology"
	CategoryDevotional = "Devotional"
	CategoryBible      = "Bible"
)

// Categories lists every accepted plan category.
var Categories = []string{CategoryGospel, CategoryTheology, CategoryDevotional, CategoryBible}

// ReadingPlan is a book or bible book members read through.
// A plan with TotalPages > 0 is tracked by page, otherwise by chapter.
type ReadingPlan struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Author        string    `gorm:"size:255" json:"author"`
	Description   string    `gorm:"type:text" json:"description"`
	CoverImage    string    `gorm:"size:1024" json:"cover_image"`
	Category      string    `gorm:"size:32;index;not null" json:"category"`
	TotalChapters int       `gorm:"not null;default:0" json:"total_chapters"`
	TotalPages    int       `gorm:"not null;default:0" json:"total_pages"`
	DailyPageGoal int       `gorm:"not null;default:0" json:"daily_page_goal"`
	PDFURL        string    `gorm:"column:pdf_url;size:1024" json:"pdf_url"`
	BibleBook     string    `gorm:"size:64" json:"bible_book"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PageMode reports whether progress on this plan is counted in pages.
func (p ReadingPlan) PageMode() bool {
	return p.TotalPages > 0
}

// Total is the last reachable position in the plan's tracking unit.
func (p ReadingPlan) Total() int {
	if p.PageMode() {
		return p.TotalPages
	}
	return p.TotalChapters
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}
