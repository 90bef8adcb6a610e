package models

import "time"

// DiscussionPrompt is an admin-authored question the community replies to.
type DiscussionPrompt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedByID uint      `gorm:"index" json:"created_by_id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// CommunityComment is a member reply to a prompt.
type CommunityComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PromptID  uint      `gorm:"index;not null" json:"prompt_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"author"`
}

// CommunityLike records that a user liked a prompt; at most one per (prompt, user).
type CommunityLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PromptID  uint      `gorm:"not null;uniqueIndex:idx_like_prompt_user" json:"prompt_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_prompt_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LiveSession is a scheduled online meeting.
type LiveSession struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventTime   time.Time `gorm:"index;not null" json:"event_time"`
	MeetingLink string    `gorm:"size:1024" json:"meeting_link"`
	Topic       string    `gorm:"size:255" json:"topic"`
	CreatedAt   time.Time `json:"created_at"`
}
