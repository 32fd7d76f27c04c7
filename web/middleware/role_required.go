package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/web/session"
)

// RoleRequired lets the request through only for a logged-in user holding
// one of roles.
func RoleRequired(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool)
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Login required"})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Forbidden"})
			return
		}
		c.Set("role", string(user.Role))
		c.Next()
	}
}
