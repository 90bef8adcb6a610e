package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

// PageViewRecorder counts successful SPA page loads per calendar day (in loc) and path.
func PageViewRecorder(db *gorm.DB, loc *time.Location) gin.HandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}
		path := c.Request.URL.Path
		if !countsAsPageView(path) {
			return
		}

		now := time.Now()
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("page_views.count + 1"),
				"updated_at": now,
			}),
		}).Create(&models.PageView{Day: now.In(loc).Format("2006-01-02"), Path: path, Count: 1}).Error
		if err != nil {
			utils.Logger.Debug("page view not recorded", zap.String("path", path), zap.Error(err))
		}
	}
}

// countsAsPageView skips API calls, assets and probes.
func countsAsPageView(path string) bool {
	switch {
	case path == "/health", path == "/favicon.ico":
		return false
	case strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/static/"), strings.HasPrefix(path, "/assets/"):
		return false
	}
	return true
}
