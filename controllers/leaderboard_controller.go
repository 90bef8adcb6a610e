package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/utils"
)

// LeaderboardController ranks members by XP earned this week or month.
type LeaderboardController struct {
	board *services.LeaderboardService
}

// NewLeaderboardController creates a LeaderboardController.
func NewLeaderboardController(board *services.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{board: board}
}

// Get returns the ranking for ?period=weekly (default) or monthly.
func (l *LeaderboardController) Get(ctx *gin.Context) {
	period := ctx.DefaultQuery("period", services.PeriodWeekly)
	if period != services.PeriodWeekly && period != services.PeriodMonthly {
		utils.Error(ctx, http.StatusBadRequest, 40070, "period must be weekly or monthly")
		return
	}
	board, err := l.board.Current(ctx.Request.Context(), period)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, board)
}

// PreviousWinner returns last month's top earner, or null when nobody earned XP.
func (l *LeaderboardController) PreviousWinner(ctx *gin.Context) {
	month, _, _ := l.board.PreviousMonth()
	w, err := l.board.PreviousMonthWinner(ctx.Request.Context())
	if errors.Is(err, services.ErrNotFound) {
		utils.Success(ctx, gin.H{"month": month, "winner": nil})
		return
	}
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"month": month, "winner": w})
}
