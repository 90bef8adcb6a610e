package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

const untitledReflection = "Untitled Reflection"

// JournalController manages private reflections. Entries are only visible to their owner.
type JournalController struct {
	db *gorm.DB
}

func NewJournalController(db *gorm.DB) *JournalController {
	return &JournalController{db: db}
}

type journalRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// normalize sanitizes the request; ok is false when both title and content are empty.
func (r journalRequest) normalize() (title, content string, ok bool) {
	title = utils.SanitizeText(r.Title)
	content = utils.Sanitize(r.Content)
	if title == "" && content == "" {
		return "", "", false
	}
	if title == "" {
		title = untitledReflection
	}
	return title, content, true
}

// List returns the caller's entries, newest first.
func (j *JournalController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx)

	var total int64
	var entries []models.JournalEntry
	q := j.db.Model(&models.JournalEntry{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to count entries")
		return
	}
	if err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&entries).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to list entries")
		return
	}
	utils.Success(ctx, pageOf(entries, page, pageSize, total))
}

// Create saves a new entry.
func (j *JournalController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req journalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}
	title, content, ok := req.normalize()
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40081, "title or content is required")
		return
	}
	entry := models.JournalEntry{UserID: userID, Title: title, Content: content}
	if err := j.db.Create(&entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to save entry")
		return
	}
	utils.Success(ctx, entry)
}

// owned loads entry :id when it belongs to the caller and writes the error response otherwise.
func (j *JournalController) owned(ctx *gin.Context) (*models.JournalEntry, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40082, "invalid entry id")
		return nil, false
	}
	var entry models.JournalEntry
	if err := j.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40480, "entry not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to load entry")
		return nil, false
	}
	// someone else's entry is reported as missing
	if entry.UserID != userID {
		utils.Error(ctx, http.StatusNotFound, 40480, "entry not found")
		return nil, false
	}
	return &entry, true
}

// Get returns one entry.
func (j *JournalController) Get(ctx *gin.Context) {
	entry, ok := j.owned(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, entry)
}

// Update replaces an entry's title and content.
func (j *JournalController) Update(ctx *gin.Context) {
	entry, ok := j.owned(ctx)
	if !ok {
		return
	}
	var req journalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}
	title, content, ok := req.normalize()
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40081, "title or content is required")
		return
	}
	entry.Title, entry.Content = title, content
	if err := j.db.Save(entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50084, "failed to update entry")
		return
	}
	utils.Success(ctx, entry)
}

// Delete removes an entry.
func (j *JournalController) Delete(ctx *gin.Context) {
	entry, ok := j.owned(ctx)
	if !ok {
		return
	}
	if err := j.db.Delete(entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50085, "failed to delete entry")
		return
	}
	utils.Success(ctx, gin.H{"message": "entry deleted"})
}
