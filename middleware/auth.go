package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/bookclub/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextEmailKey stores the email claim, used for admin checks.
	ContextEmailKey = "email"
	// ContextTokenKey keeps the raw bearer token so logout can revoke it.
	ContextTokenKey = "token"
)

// bearerToken extracts the token from the Authorization header; code is 0 on success.
func bearerToken(ctx *gin.Context) (string, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", 40101, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", 40102, "invalid authorization header format"
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", 40103, "empty bearer token"
	}
	return tokenString, 0, ""
}

func authenticate(ctx *gin.Context, tokenString string) (int, string) {
	if utils.IsTokenBlacklisted(tokenString) {
		return 40104, "token revoked"
	}
	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return 40105, "invalid token"
	}
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextEmailKey, claims.Email)
	ctx.Set(ContextTokenKey, tokenString)
	return 0, ""
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, code, msg := bearerToken(ctx)
		if code == 0 {
			code, msg = authenticate(ctx, tokenString)
		}
		if code != 0 {
			utils.AbortError(ctx, http.StatusUnauthorized, code, msg)
			return
		}
		ctx.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets anonymous
// requests through otherwise. Public listings use it to merge per-user state.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if tokenString, code, _ := bearerToken(ctx); code == 0 {
			_, _ = authenticate(ctx, tokenString)
		}
		ctx.Next()
	}
}
