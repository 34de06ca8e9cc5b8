package middleware

import (
	"net/http"

	"statusboard/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired checks that the authenticated worker has the admin role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != string(domain.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether the authenticated worker is an admin.
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == string(domain.RoleAdmin)
}
