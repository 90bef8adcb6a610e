package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/middleware"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

// AuthController handles member accounts: sign-up, sign-in, profile and avatar.
// Social sign-in lives in oauth_controller.go.
type AuthController struct {
	db     *gorm.DB
	upload uploader
}

// NewAuthController creates an AuthController. st may be nil when uploads are disabled.
func NewAuthController(db *gorm.DB, st storage.Storage) *AuthController {
	return &AuthController{db: db, upload: uploader{db: db, store: st}}
}

type registerRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	BirthMonth int    `json:"birth_month"`
	BirthDay   int    `json:"birth_day"`
}

// check normalizes the request in place and returns a message for the first invalid field.
func (r *registerRequest) check() string {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	switch {
	case !validUsername(r.Username):
		return "username must be 2-64 letters, digits, spaces, '-' or '_'"
	case !validEmail(r.Email):
		return "invalid email address"
	case !utils.ValidPassword(r.Password):
		return fmt.Sprintf("password must be at least %d characters", utils.MinPasswordLength)
	case !validBirthday(r.BirthMonth, r.BirthDay):
		return "invalid birth month or day"
	}
	return ""
}

// Register creates a local member and signs them in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if msg := req.check(); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40002, msg)
		return
	}

	var taken int64
	if err := a.db.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&taken).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to check user")
		return
	}
	if taken > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username or email already registered")
		return
	}

	ip := ctx.ClientIP()
	if !utils.RegistrationCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many requests, please retry later")
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42921, "daily registration limit reached")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	member := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Provider:     "local",
		RegisterIP:   ip,
		BirthMonth:   req.BirthMonth,
		BirthDay:     req.BirthDay,
	}
	if err := a.db.Create(&member).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}
	utils.RegistrationDailyIncrement(ip)

	a.signIn(ctx, member)
}

// Login accepts either a username or an email together with the password.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	ident := strings.TrimSpace(fallback(req.Username, req.Email))
	if ident == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "username or email is required")
		return
	}

	column := "username"
	if strings.Contains(ident, "@") {
		column, ident = "email", strings.ToLower(ident)
	}
	var member models.User
	if err := a.db.Where(column+" = ?", ident).First(&member).Error; err != nil ||
		!utils.CheckPassword(member.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	a.signIn(ctx, member)
}

// signIn answers with a fresh token and the member's profile.
func (a *AuthController) signIn(ctx *gin.Context, member models.User) {
	token, err := utils.GenerateToken(member.ID, member.Username, member.Email, config.Get().TokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": profileView(member, true)})
}

// Logout blacklists the presented token until it would have expired anyway.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}
	utils.BlacklistToken(token, utils.TokenRemaining(claims))
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// current loads the caller's profile row and writes the error response when it cannot.
func (a *AuthController) current(ctx *gin.Context) (*models.User, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return nil, false
	}
	var member models.User
	if err := a.db.First(&member, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return nil, false
	}
	return &member, true
}

// Me returns the caller's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	member, ok := a.current(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, profileView(*member, true))
}

// profilePatch carries the editable profile fields; nil means unchanged.
type profilePatch struct {
	Username   *string `json:"username"`
	AvatarURL  *string `json:"avatar_url"`
	BirthMonth *int    `json:"birth_month"`
	BirthDay   *int    `json:"birth_day"`
}

// UpdateProfile edits username, avatar url and birthday.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var patch profilePatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	member, ok := a.current(ctx)
	if !ok {
		return
	}

	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if !validUsername(name) {
			utils.Error(ctx, http.StatusBadRequest, 40031, "invalid username")
			return
		}
		if name != member.Username {
			var clash int64
			a.db.Model(&models.User{}).Where("username = ? AND id <> ?", name, member.ID).Count(&clash)
			if clash > 0 {
				utils.Error(ctx, http.StatusConflict, 40902, "username already exists")
				return
			}
			member.Username = name
		}
	}
	if patch.AvatarURL != nil {
		member.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
	}
	month, day := member.BirthMonth, member.BirthDay
	if patch.BirthMonth != nil {
		month = *patch.BirthMonth
	}
	if patch.BirthDay != nil {
		day = *patch.BirthDay
	}
	if !validBirthday(month, day) {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid birth month or day")
		return
	}
	member.BirthMonth, member.BirthDay = month, day

	if err := a.db.Save(member).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	markAttached(a.db, member.AvatarURL)
	// boards embed username and avatar
	utils.InvalidateByPrefix("cache:leaderboard:")
	utils.Success(ctx, profileView(*member, true))
}

// UploadAvatar stores an image and makes it the caller's avatar.
func (a *AuthController) UploadAvatar(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	rec := a.upload.save(ctx, userID, models.UploadKindAvatar)
	if rec == nil {
		return
	}
	if err := a.db.Model(&models.User{}).Where("id = ?", userID).Update("avatar_url", rec.URL).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	markAttached(a.db, rec.URL)
	utils.InvalidateByPrefix("cache:leaderboard:")
	utils.Success(ctx, gin.H{"avatar_url": rec.URL, "upload": rec})
}

// ListUsers pages through members, newest first.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)

	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to count users")
		return
	}
	var members []models.User
	if err := a.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&members).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to retrieve users")
		return
	}

	items := make([]gin.H, 0, len(members))
	for _, m := range members {
		items = append(items, profileView(m, false))
	}
	utils.Success(ctx, pageOf(items, page, pageSize, total))
}

// profileView is the public shape of a member; withAdmin adds is_admin for the member's own view.
func profileView(member models.User, withAdmin bool) gin.H {
	view := gin.H{
		"id":               member.ID,
		"username":         member.Username,
		"email":            member.Email,
		"provider":         member.Provider,
		"avatar_url":       member.AvatarURL,
		"birth_month":      member.BirthMonth,
		"birth_day":        member.BirthDay,
		"streak":           member.Streak,
		"last_active_date": member.LastActiveDate,
		"created_at":       member.CreatedAt,
	}
	if withAdmin {
		view["is_admin"] = isAdminIdentity(member.Username, member.Email)
	}
	return view
}

// validUsername allows 2-64 letters, digits, spaces, dots, dashes and underscores.
func validUsername(s string) bool {
	if n := len([]rune(s)); n < 2 || n > 64 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == ' ' || r == '.' ||
			r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) < 0
}

func validEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t") && strings.Contains(s[at:], ".")
}

// validBirthday accepts an unset birthday (0/0) or a real month/day pair.
func validBirthday(month, day int) bool {
	if month == 0 && day == 0 {
		return true
	}
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// 2024 is a leap year so 29 February is accepted
	return day <= time.Date(2024, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
