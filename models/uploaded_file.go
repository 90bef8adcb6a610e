package models

import "time"

// Upload kinds.
const (
	UploadKindPDF    = "pdf"
	UploadKindCover  = "cover"
	UploadKindAvatar = "avatar"
)

// UploadedFile records an object written to asset storage. Rows that are never attached to a
// plan or profile are swept after a grace period.
type UploadedFile struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index" json:"user_id"`
	Kind       string     `gorm:"size:16;not null" json:"kind"`
	Key        string     `gorm:"size:512;not null" json:"key"`
	URL        string     `gorm:"size:1024;not null;index" json:"url"`
	Size       int64      `json:"size"`
	AttachedAt *time.Time `gorm:"index" json:"attached_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
