package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

const actorKey = "actor"

// TokenParser 解析 Bearer token
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

// Auth JWT 认证中间件
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Not authorized, no token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := parser.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "Not authorized, token failed")
			return
		}

		c.Set(actorKey, service.Actor{ID: claims.UserID, IsAdmin: claims.IsAdmin})
		c.Next()
	}
}

// Admin 需在 Auth 之后使用
func Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Unauthorized(c, "Not authorized")
			return
		}
		if !actor.IsAdmin {
			response.Forbidden(c, "Not authorized as an admin")
			return
		}
		c.Next()
	}
}

// ActorFromContext 取出当前用户
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}
