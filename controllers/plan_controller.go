package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

const latestPlansCacheKey = "cache:plans:latest"

// PlanView is a plan merged with the caller's progress on it.
type PlanView struct {
	models.ReadingPlan
	CurrentPage     int        `json:"current_page"`
	CurrentChapter  int        `json:"current_chapter"`
	FurthestPage    int        `json:"furthest_page"`
	FurthestChapter int        `json:"furthest_chapter"`
	IsCompleted     bool       `json:"is_completed"`
	LastReadAt      *time.Time `json:"last_read_at,omitempty"`
}

func planView(p models.ReadingPlan, rec *models.UserProgress) PlanView {
	v := PlanView{ReadingPlan: p}
	if rec != nil {
		v.CurrentPage, v.CurrentChapter = rec.CurrentPage, rec.CurrentChapter
		v.FurthestPage, v.FurthestChapter = rec.FurthestPage, rec.FurthestChapter
		v.IsCompleted = rec.IsCompleted
		if !rec.LastReadAt.IsZero() {
			t := rec.LastReadAt
			v.LastReadAt = &t
		}
	}
	return v
}

// PlanController serves reading plans.
type PlanController struct {
	db     *gorm.DB
	svc    *services.Services
	upload uploader
}

// NewPlanController creates a PlanController.
func NewPlanController(db *gorm.DB, svc *services.Services, st storage.Storage) *PlanController {
	return &PlanController{db: db, svc: svc, upload: uploader{db: db, store: st}}
}

// latestPerCategory returns the newest plan of every category, newest first.
func (p *PlanController) latestPerCategory() ([]models.ReadingPlan, error) {
	if b, ok := utils.CacheGetBytes(latestPlansCacheKey); ok {
		var cached []models.ReadingPlan
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
	}
	plans := make([]models.ReadingPlan, 0, len(models.Categories))
	for _, c := range models.Categories {
		var plan models.ReadingPlan
		err := p.db.Where("category = ?", c).Order("created_at DESC").Order("id DESC").First(&plan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	sortPlansNewestFirst(plans)
	utils.CacheSetJSON(latestPlansCacheKey, plans, time.Minute)
	return plans, nil
}

func sortPlansNewestFirst(plans []models.ReadingPlan) {
	sort.SliceStable(plans, func(i, j int) bool { return newer(plans[i], plans[j]) })
}

func newer(a, b models.ReadingPlan) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// progressByPlan loads the caller's progress keyed by plan; anonymous callers get nil.
func (p *PlanController) progressByPlan(ctx *gin.Context) (map[uint]*models.UserProgress, error) {
	userID, ok := getUserID(ctx)
	if !ok {
		return nil, nil
	}
	items, err := p.svc.Progress.List(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]*models.UserProgress, len(items))
	for i := range items {
		out[items[i].PlanID] = &items[i]
	}
	return out, nil
}

// ListPlans returns the current plan of each category.
func (p *PlanController) ListPlans(ctx *gin.Context) {
	plans, err := p.latestPerCategory()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load plans")
		return
	}
	progress, err := p.progressByPlan(ctx)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	items := make([]PlanView, 0, len(plans))
	for _, plan := range plans {
		items = append(items, planView(plan, progress[plan.ID]))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// GetPlan returns one plan with the caller's progress.
func (p *PlanController) GetPlan(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid plan id")
		return
	}
	plan, err := p.svc.Store.GetPlan(ctx.Request.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40420, "reading plan not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load plan")
		return
	}
	var rec *models.UserProgress
	if userID, ok := getUserID(ctx); ok {
		got, err := p.svc.Store.GetProgress(ctx.Request.Context(), userID, id)
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load progress")
			return
		}
		rec = got
	}
	utils.Success(ctx, planView(*plan, rec))
}

type createPlanRequest struct {
	Title         string `json:"title" binding:"required"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	Category      string `json:"category" binding:"required"`
	TotalPages    int    `json:"total_pages"`
	TotalChapters int    `json:"total_chapters"`
	PDFURL        string `json:"pdf_url"`
	CoverImage    string `json:"cover_image"`
	BibleBook     string `json:"bible_book"`
}

// buildPlan validates req and derives the stored plan.
func buildPlan(req createPlanRequest, cfg config.AppConfig) (models.ReadingPlan, string) {
	plan := models.ReadingPlan{
		Title:       utils.SanitizeText(req.Title),
		Author:      utils.SanitizeText(req.Author),
		Description: utils.Sanitize(req.Description),
		Category:    strings.TrimSpace(req.Category),
		PDFURL:      strings.TrimSpace(req.PDFURL),
		CoverImage:  strings.TrimSpace(req.CoverImage),
	}
	if plan.Title == "" {
		return plan, "title cannot be empty"
	}
	if !models.ValidCategory(plan.Category) {
		return plan, "invalid category"
	}
	if req.TotalPages < 0 || req.TotalChapters < 0 {
		return plan, "totals must not be negative"
	}
	if req.TotalPages == 0 && req.TotalChapters == 0 {
		return plan, "total_pages or total_chapters is required"
	}

	if req.TotalPages > 0 {
		days := cfg.PlanTargetDays
		if days <= 0 {
			days = 30
		}
		plan.TotalPages = req.TotalPages
		plan.TotalChapters = 0
		plan.DailyPageGoal = max(1, (req.TotalPages+days-1)/days)
	} else {
		plan.TotalChapters = req.TotalChapters
	}
	if plan.CoverImage == "" {
		plan.CoverImage = cfg.DefaultCoverImage
	}
	if plan.Category == models.CategoryBible {
		plan.BibleBook = utils.SanitizeText(req.BibleBook)
	}
	return plan, ""
}

// CreatePlan lets an admin publish a new plan; it becomes the current plan of its category.
func (p *PlanController) CreatePlan(ctx *gin.Context) {
	var req createPlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}
	plan, msg := buildPlan(req, config.Get())
	if msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40012, msg)
		return
	}
	if err := p.db.Create(&plan).Error; err != nil {
		utils.Logger.Error("create plan failed", zap.String("title", plan.Title), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to create plan")
		return
	}
	markAttached(p.db, plan.PDFURL, plan.CoverImage)
	utils.InvalidateByPrefix(latestPlansCacheKey)
	utils.Success(ctx, plan)
}

// UploadAsset stores a plan PDF or cover; kind is taken from the "kind" form field.
func (p *PlanController) UploadAsset(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	kind := strings.ToLower(strings.TrimSpace(ctx.PostForm("kind")))
	if kind != models.UploadKindPDF && kind != models.UploadKindCover {
		utils.Error(ctx, http.StatusBadRequest, 40063, "kind must be pdf or cover")
		return
	}
	rec := p.upload.save(ctx, userID, kind)
	if rec == nil {
		return
	}
	utils.Success(ctx, rec)
}
