package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/pkg/jwt"
	"github.com/ratepoint/core/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyRoleID = "role_id"
)

// Auth returns a middleware that enforces bearer-token authentication.
// A 401 here makes the dashboard invalidate its stored token.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRoleID, claims.RoleID)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not
// block the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := jwt.Parse(extractToken(c)); err == nil {
			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyRoleID, claims.RoleID)
		}
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context (0 = anonymous).
func CurrentUserID(c *gin.Context) int64 {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(int64)
	return id
}

// CurrentRoleID extracts the authenticated user's role ID from context.
func CurrentRoleID(c *gin.Context) int64 {
	v, _ := c.Get(ContextKeyRoleID)
	id, _ := v.(int64)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != 0
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips the optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
