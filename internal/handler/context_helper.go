package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/middleware"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
)

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

// actorFromContext returns the verified caller. Request bodies never carry identity.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func studentIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("studentID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	return id, nil
}

func documentTypeParam(c *gin.Context) models.DocumentType {
	return models.DocumentType(c.Param("documentType"))
}
