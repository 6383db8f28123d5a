package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/models"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit log entry after each successful request. The
// resource id is taken from the :id path parameter.
func Audit(repo auditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				userID := claims.UserID
				entry.UserID = &userID
			}
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.Details, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		if err := repo.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
		}
	}
}
