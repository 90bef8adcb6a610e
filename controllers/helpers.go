package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/middleware"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

func parsePagination(ctx *gin.Context) (int, int) {
	page := 1
	pageSize := 10
	if p := ctx.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if ps := ctx.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	return page, pageSize
}

// pageOf wraps one page of items with the pagination block clients expect.
func pageOf(items interface{}, page, pageSize int, total int64) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// isAdmin checks the caller's email against AdminEmails and username against AdminUsernames.
func isAdmin(ctx *gin.Context) bool {
	return isAdminIdentity(ctx.GetString(middleware.ContextUsernameKey), ctx.GetString(middleware.ContextEmailKey))
}

func isAdminIdentity(username, email string) bool {
	cfg := config.Get()
	if e := strings.TrimSpace(email); e != "" {
		for _, a := range cfg.AdminEmails {
			if strings.EqualFold(strings.TrimSpace(a), e) {
				return true
			}
		}
	}
	if u := strings.TrimSpace(username); u != "" {
		for _, a := range cfg.AdminUsernames {
			if strings.EqualFold(strings.TrimSpace(a), u) {
				return true
			}
		}
	}
	return false
}

// AdminRequired lets only configured admins through. It must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !isAdmin(ctx) {
			utils.AbortError(ctx, http.StatusForbidden, 40301, "admin privileges required")
			return
		}
		ctx.Next()
	}
}

// respondServiceError maps service errors onto the envelope.
func respondServiceError(ctx *gin.Context, err error) {
	var perr *services.PersistenceError
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, services.ErrPlanNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "reading plan not found")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	case errors.Is(err, services.ErrInvalidPosition):
		utils.Error(ctx, http.StatusBadRequest, 40020, "position must not be negative")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40300, "forbidden")
	case errors.As(err, &perr):
		utils.Logger.Error("persistence failure", zap.String("op", perr.Op), zap.Error(perr.Err))
		utils.Error(ctx, http.StatusInternalServerError, 50020, "storage unavailable")
	default:
		utils.Logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

var uploadContentTypes = map[string][]string{
	models.UploadKindPDF:    {"application/pdf"},
	models.UploadKindCover:  {"image/jpeg", "image/png", "image/webp", "image/gif"},
	models.UploadKindAvatar: {"image/jpeg", "image/png", "image/webp", "image/gif"},
}

// uploader writes multipart files to asset storage and records them as UploadedFile rows.
type uploader struct {
	db    *gorm.DB
	store storage.Storage
}

// save stores the "file" form field as kind. It writes the error response itself and
// returns nil when the upload was rejected.
func (u uploader) save(ctx *gin.Context, userID uint, kind string) *models.UploadedFile {
	if u.store == nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50310, "asset storage not configured")
		return nil
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "file is required")
		return nil
	}
	limit := int64(config.Get().MaxUploadMB) * 1024 * 1024
	if limit > 0 && fh.Size > limit {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
		return nil
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(fh.Header.Get("Content-Type"), ";")[0]))
	if !allowedContentType(kind, contentType) {
		utils.Error(ctx, http.StatusBadRequest, 40061, "unsupported file type")
		return nil
	}

	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40062, "failed to read file")
		return nil
	}
	defer f.Close()

	obj, err := u.store.Put(ctx.Request.Context(), storage.ObjectKey(kind, fh.Filename, time.Now()), f, contentType)
	if errors.Is(err, storage.ErrTooLarge) {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
		return nil
	}
	if err != nil {
		utils.Logger.Error("upload failed", zap.String("kind", kind), zap.Uint("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to store file")
		return nil
	}

	rec := models.UploadedFile{UserID: userID, Kind: kind, Key: obj.Key, URL: obj.URL, Size: obj.Size}
	if err := u.db.Create(&rec).Error; err != nil {
		_ = u.store.Delete(ctx.Request.Context(), obj.Key)
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to record upload")
		return nil
	}
	return &rec
}

func allowedContentType(kind, contentType string) bool {
	for _, ct := range uploadContentTypes[kind] {
		if ct == contentType {
			return true
		}
	}
	return false
}

// markAttached flags uploads referenced by urls so the orphan sweep keeps them.
func markAttached(db *gorm.DB, urls ...string) {
	var keep []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			keep = append(keep, u)
		}
	}
	if len(keep) == 0 {
		return
	}
	now := time.Now()
	if err := db.Model(&models.UploadedFile{}).
		Where("url IN ? AND attached_at IS NULL", keep).
		Update("attached_at", now).Error; err != nil {
		utils.Logger.Warn("mark uploads attached failed", zap.Error(err))
	}
}
