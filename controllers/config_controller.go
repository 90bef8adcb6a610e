package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/utils"
)

// ConfigController serves static, environment-driven UI configuration.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetNotice returns announcement/notice content configured via config.
func (c *ConfigController) GetNotice(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"title": cfg.NoticeTitle,
		"html":  cfg.NoticeHTML,
	})
}

// GetBadges returns the badge catalog.
func (c *ConfigController) GetBadges(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"items": services.Catalog})
}

// GetCategories returns plan categories and the reward rules the UI displays.
func (c *ConfigController) GetCategories(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"categories":              models.Categories,
		"default_daily_page_goal": cfg.DefaultDailyPageGoal,
		"page_xp":                 cfg.PageXP,
		"chapter_xp":              cfg.ChapterXP,
		"missed_day_penalty":      cfg.MissedDayPenalty,
		"timezone":                cfg.Location().String(),
	})
}
