package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DomainValidatorMiddleware answers 403 unless the request Host is domain.
func DomainValidatorMiddleware(domain string) gin.HandlerFunc {
	domain = strings.ToLower(domain)
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if strings.ToLower(host) != domain {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Forbidden"})
			return
		}

		c.Next()
	}
}
