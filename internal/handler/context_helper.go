package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siswa-gateway/internal/middleware"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
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

// actorID is the user id for log fields, empty for anonymous callers.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func int64Param(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

func actionParam(c *gin.Context) (selection.Kind, error) {
	kind, ok := selection.ParseKind(strings.ToLower(c.Param("action")))
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown action "+c.Param("action"))
	}
	return kind, nil
}
