package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siswa-gateway/internal/models"
	appErrors "github.com/noah-isme/siswa-gateway/pkg/errors"
	"github.com/noah-isme/siswa-gateway/pkg/response"
)

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRolesForAction applies RBAC only when the :action path parameter
// equals action. Other actions on the same route pass through.
func RequireRolesForAction(action string, roles ...models.UserRole) gin.HandlerFunc {
	check := RBAC(roles...)
	return func(c *gin.Context) {
		if c.Param("action") != action {
			c.Next()
			return
		}
		check(c)
	}
}
