package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/pkg/logger"
	"github.com/d60-Lab/hijabworld/pkg/response"
)

// Recovery 捕获 panic 与 5xx 错误并上报 Sentry（未配置 DSN 时只记日志）
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)

		defer func() {
			if rec := recover(); rec != nil {
				eventID := hub.RecoverWithContext(c.Request.Context(), rec)
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				if eventID != nil {
					c.Header("X-Sentry-Event", string(*eventID))
				}
				response.InternalError(c, fmt.Errorf("panic: %v", rec))
			}
		}()

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		for _, e := range c.Errors {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("route", c.FullPath())
				if actor, ok := ActorFromContext(c); ok {
					scope.SetUser(sentry.User{ID: actor.ID})
				}
				hub.CaptureException(e.Err)
			})
		}
	}
}
