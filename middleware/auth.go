package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/services"
)

const (
	UserKey = "userID"
	RoleKey = "role"
)

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*services.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's id
// and role on the context.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			abort(c, apperrors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(tokenStr))
		if err != nil {
			abort(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			abort(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		c.Set(UserKey, userID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			abort(c, apperrors.Forbidden("access denied"))
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(UserKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

func abort(c *gin.Context, err *apperrors.Error) {
	c.AbortWithStatusJSON(err.Code, err.Public())
}
