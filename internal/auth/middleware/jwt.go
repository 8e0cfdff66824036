package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/auth"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	ContextSubject = "subject"
	ContextScope   = "scope"
)

// JWTAuth JWT 认证中间件；manager 为 nil 时不做认证
func JWTAuth(manager *auth.JWTManager, log *logger.Logger) gin.HandlerFunc {
	if manager == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		var token string

		// 优先从 Authorization header 获取 token
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			var err error
			token, err = auth.ExtractTokenFromHeader(authHeader)
			if err != nil {
				response.AbortWithError(c, apperrors.NewUnauthorizedError(err.Error()))
				return
			}
		} else {
			// 如果 header 没有,尝试从查询参数获取 (用于 SSE)
			token = c.Query("token")
			if token == "" {
				response.AbortWithError(c, apperrors.NewUnauthorizedError("missing authorization"))
				return
			}
		}

		claims, err := manager.VerifyToken(token)
		if err != nil {
			log.WithContext(c.Request.Context()).Warn("invalid access token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			response.AbortWithError(c, apperrors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextScope, claims.Scope)
		c.Next()
	}
}

// GetSubject 从上下文获取调用方标识
func GetSubject(c *gin.Context) (string, bool) {
	subject := c.GetString(ContextSubject)
	return subject, subject != ""
}
