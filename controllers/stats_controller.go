package controllers

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StatsController provides club statistics and exports for admins.
type StatsController struct {
	db  *gorm.DB
	svc *services.Services
	now func() time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, svc *services.Services) *StatsController {
	return &StatsController{db: db, svc: svc, now: time.Now}
}

// GetStats returns member count, average streak, today's consistency and page views.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var activeToday int64
	var avgStreak float64
	var pageViews int64

	loc := config.Get().Location()
	now := s.now().In(loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to count users")
		return
	}
	if err := s.db.Model(&models.User{}).
		Select("COALESCE(AVG(streak),0)").
		Scan(&avgStreak).Error; err != nil {
		avgStreak = 0
	}
	if err := s.db.Model(&models.User{}).
		Where("last_active_date = ?", services.DateParam(today)).
		Count(&activeToday).Error; err != nil {
		activeToday = 0
	}
	// Use string date equality to avoid timezone/type mismatches with DATE column
	if err := s.db.Model(&models.PageView{}).
		Where("day = ?", now.Format("2006-01-02")).
		Select("COALESCE(SUM(count),0)").
		Scan(&pageViews).Error; err != nil {
		pageViews = 0
	}

	consistency := 0.0
	if userCount > 0 {
		consistency = math.Round(float64(activeToday)*1000/float64(userCount)) / 10
	}
	utils.Success(ctx, gin.H{
		"total_users":       userCount,
		"average_streak":    math.Round(avgStreak*10) / 10,
		"active_today":      activeToday,
		"daily_consistency": consistency,
		"page_views_today":  pageViews,
	})
}

// ExportXP downloads the running month's XP ledger and leaderboard as an .xlsx workbook.
func (s *StatsController) ExportXP(ctx *gin.Context) {
	var buf bytes.Buffer
	name, err := s.svc.Export.WriteMonthlyReport(ctx.Request.Context(), &buf)
	if err != nil {
		utils.Logger.Error("xp export failed", zap.Error(err))
		respondServiceError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
