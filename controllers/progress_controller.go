package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/utils"
)

// ProgressController exposes reading advancement, explicit position saves and the dashboard.
type ProgressController struct {
	svc *services.Services
}

// NewProgressController creates a ProgressController.
func NewProgressController(svc *services.Services) *ProgressController {
	return &ProgressController{svc: svc}
}

// Advance moves the caller one step forward in the plan.
// Partial failures come back as notices alongside the computed state.
func (p *ProgressController) Advance(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	planID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid plan id")
		return
	}
	res, err := p.svc.Progress.Advance(ctx.Request.Context(), userID, planID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// SavePosition records the page or chapter the reader stopped at.
func (p *ProgressController) SavePosition(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	planID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid plan id")
		return
	}
	var req struct {
		Position *int `json:"position" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "position is required")
		return
	}
	res, err := p.svc.Progress.SavePosition(ctx.Request.Context(), userID, planID, *req.Position)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// ListProgress returns the caller's progress records, most recent first.
func (p *ProgressController) ListProgress(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	items, err := p.svc.Progress.List(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Dashboard returns streak, XP, reading volume and badges.
func (p *ProgressController) Dashboard(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	d, err := p.svc.Dashboard.For(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, d)
}
