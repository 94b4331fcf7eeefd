package jwt

import (
	"net/http"
	"strings"

	"friend-chat/internal/apperr"
	"friend-chat/pkg/logger"
	"friend-chat/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ContextUserIDKey 用户ID在gin.Context中的键名
	ContextUserIDKey = "user_id"
	// CookieName 浏览器会话使用的 cookie 名
	CookieName = "jwt"
)

// TokenFromRequest 依次从 Authorization: Bearer、jwt cookie 中提取令牌
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware JWT认证中间件
// 验证token并将用户ID存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c.Request)
		if tokenString == "" {
			response.FromError(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		userID, err := s.ValidateToken(tokenString)
		if err != nil {
			logger.Debug("JWT验证失败",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			response.FromError(c, apperr.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// GetUserID 从gin.Context中获取用户ID，未认证时返回0
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := userID.(uint); ok {
			return id
		}
	}
	return 0
}
