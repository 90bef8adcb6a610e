package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

const (
	defaultSessionTopic = "Weekly Review"
	upcomingSessionsMax = 5
)

// PromptThread is a prompt with its replies and like state.
type PromptThread struct {
	models.DiscussionPrompt
	Comments  []models.CommunityComment `json:"comments"`
	LikeCount int64                     `json:"like_count"`
	Liked     bool                      `json:"liked"`
}

// CommunityController manages discussion prompts, comments, likes and live sessions.
type CommunityController struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCommunityController creates a CommunityController.
func NewCommunityController(db *gorm.DB) *CommunityController {
	return &CommunityController{db: db, now: time.Now}
}

// Feed lists prompts newest first with comments oldest first. Signed-in callers get their
// liked flags and have last_seen_community moved to now.
func (c *CommunityController) Feed(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)

	var total int64
	if err := c.db.Model(&models.DiscussionPrompt{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count prompts")
		return
	}
	var prompts []models.DiscussionPrompt
	if err := c.db.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&prompts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list prompts")
		return
	}

	userID, authed := getUserID(ctx)
	threads, err := c.threads(prompts, userID)
	if err != nil {
		utils.Logger.Error("load community threads failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load comments")
		return
	}

	if authed {
		if err := c.db.Model(&models.User{}).Where("id = ?", userID).
			Update("last_seen_community", c.now()).Error; err != nil {
			utils.Logger.Warn("update last_seen_community failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	utils.Success(ctx, pageOf(threads, page, pageSize, total))
}

func (c *CommunityController) threads(prompts []models.DiscussionPrompt, userID uint) ([]PromptThread, error) {
	out := make([]PromptThread, 0, len(prompts))
	if len(prompts) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(prompts))
	for _, p := range prompts {
		ids = append(ids, p.ID)
	}

	var comments []models.CommunityComment
	if err := c.db.Preload("User").Where("prompt_id IN ?", ids).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	byPrompt := make(map[uint][]models.CommunityComment, len(ids))
	for _, cm := range comments {
		byPrompt[cm.PromptID] = append(byPrompt[cm.PromptID], cm)
	}

	var counts []struct {
		PromptID uint
		Total    int64
	}
	if err := c.db.Model(&models.CommunityLike{}).
		Select("prompt_id, COUNT(*) AS total").
		Where("prompt_id IN ?", ids).
		Group("prompt_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	likeCount := make(map[uint]int64, len(counts))
	for _, lc := range counts {
		likeCount[lc.PromptID] = lc.Total
	}

	liked := map[uint]bool{}
	if userID != 0 {
		var mine []uint
		if err := c.db.Model(&models.CommunityLike{}).
			Where("user_id = ? AND prompt_id IN ?", userID, ids).
			Pluck("prompt_id", &mine).Error; err != nil {
			return nil, err
		}
		for _, id := range mine {
			liked[id] = true
		}
	}

	for _, p := range prompts {
		cms := byPrompt[p.ID]
		if cms == nil {
			cms = []models.CommunityComment{}
		}
		out = append(out, PromptThread{
			DiscussionPrompt: p,
			Comments:         cms,
			LikeCount:        likeCount[p.ID],
			Liked:            liked[p.ID],
		})
	}
	return out, nil
}

// Status reports whether a prompt was posted since the caller last opened the feed.
func (c *CommunityController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var user models.User
	if err := c.db.Select("id", "last_seen_community").First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	q := c.db.Model(&models.DiscussionPrompt{})
	if user.LastSeenCommunity != nil {
		q = q.Where("created_at > ?", *user.LastSeenCommunity)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to check prompts")
		return
	}
	utils.Success(ctx, gin.H{"has_new_prompt": n > 0, "last_seen_community": user.LastSeenCommunity})
}

// CreateComment replies to a prompt.
func (c *CommunityController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	content := utils.Sanitize(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "content cannot be empty")
		return
	}

	promptID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid prompt id")
		return
	}
	var prompt models.DiscussionPrompt
	if err := c.db.First(&prompt, promptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "prompt not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to load prompt")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	comment := models.CommunityComment{
		PromptID: prompt.ID,
		UserID:   userID,
		Content:  content,
	}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to create comment")
		return
	}
	if err := c.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load comment")
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment allows the comment owner or admin to delete a comment
func (c *CommunityController) DeleteComment(ctx *gin.Context) {
	cid, ok := parseID(ctx, "commentId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40043, "missing comment id")
		return
	}
	var cmt models.CommunityComment
	if err := c.db.First(&cmt, cid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40441, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to load comment")
		return
	}

	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if cmt.UserID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40340, "you can only delete your own comment")
		return
	}
	if err := c.db.Delete(&cmt).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50048, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

// ToggleLike removes the caller's like on a prompt or adds one when absent.
func (c *CommunityController) ToggleLike(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	promptID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid prompt id")
		return
	}
	var prompt models.DiscussionPrompt
	if err := c.db.Select("id").First(&prompt, promptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "prompt not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to load prompt")
		return
	}

	liked := false
	err := c.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("prompt_id = ? AND user_id = ?", promptID, userID).Delete(&models.CommunityLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Create(&models.CommunityLike{PromptID: promptID, UserID: userID}).Error
	})
	if err != nil {
		utils.Logger.Warn("toggle like failed", zap.Uint("prompt_id", promptID), zap.Uint("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50049, "failed to update like")
		return
	}

	var count int64
	c.db.Model(&models.CommunityLike{}).Where("prompt_id = ?", promptID).Count(&count)
	utils.Success(ctx, gin.H{"liked": liked, "like_count": count})
}

// CreatePrompt lets an admin post a new discussion prompt.
func (c *CommunityController) CreatePrompt(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40044, "invalid request payload")
		return
	}
	content := utils.Sanitize(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "content cannot be empty")
		return
	}
	userID, _ := getUserID(ctx)
	prompt := models.DiscussionPrompt{Content: content, CreatedByID: userID}
	if err := c.db.Create(&prompt).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to create prompt")
		return
	}
	utils.Success(ctx, prompt)
}

// UpcomingSessions lists the next live sessions, soonest first.
func (c *CommunityController) UpcomingSessions(ctx *gin.Context) {
	var sessions []models.LiveSession
	if err := c.db.Where("event_time >= ?", c.now()).
		Order("event_time ASC").
		Limit(upcomingSessionsMax).
		Find(&sessions).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list sessions")
		return
	}
	utils.Success(ctx, gin.H{"items": sessions})
}

// CreateSession lets an admin schedule a live session.
func (c *CommunityController) CreateSession(ctx *gin.Context) {
	var req struct {
		EventTime   time.Time `json:"event_time" binding:"required"`
		MeetingLink string    `json:"meeting_link"`
		Topic       string    `json:"topic"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40045, "event_time (RFC 3339) is required")
		return
	}
	link := strings.TrimSpace(req.MeetingLink)
	if link != "" && !strings.HasPrefix(link, "https://") && !strings.HasPrefix(link, "http://") {
		utils.Error(ctx, http.StatusBadRequest, 40046, "meeting_link must be an http(s) url")
		return
	}
	topic := utils.SanitizeText(req.Topic)
	if topic == "" {
		topic = defaultSessionTopic
	}
	session := models.LiveSession{EventTime: req.EventTime, MeetingLink: link, Topic: topic}
	if err := c.db.Create(&session).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to create session")
		return
	}
	utils.Success(ctx, session)
}
