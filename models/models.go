package models

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&ReadingPlan{},
		&UserProgress{},
		&XPEntry{},
		&MonthlyWinner{},
		&DiscussionPrompt{},
		&CommunityComment{},
		&CommunityLike{},
		&LiveSession{},
		&JournalEntry{},
		&PageView{},
		&UploadedFile{},
	}
}
