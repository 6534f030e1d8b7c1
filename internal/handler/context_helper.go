package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merch-batch-api/internal/middleware"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/response"
)

// actorFromContext returns the merchandiser behind the request. When the JWT
// middleware left no claims it writes a 401 and reports false, so batch and
// record mutations never run without an author to stamp on them.
func actorFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}
