package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-results-api/internal/middleware"
	"github.com/noah-isme/exam-results-api/internal/models"
)

// claimsFromContext returns the JWT claims stored by the auth middleware, or nil
// when the request is unauthenticated.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
