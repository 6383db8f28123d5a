package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-results-api/internal/models"
	appErrors "github.com/noah-isme/exam-results-api/pkg/errors"
	"github.com/noah-isme/exam-results-api/pkg/response"
)

// RequireRoles only lets requests through whose JWT claims carry one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
