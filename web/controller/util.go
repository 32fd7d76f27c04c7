package controller

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/entity"
)

// getRemoteIp extracts the real IP address from the request headers or remote address.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// jsonObj answers 200 with success set and the given fields merged in.
func jsonObj(c *gin.Context, obj gin.H) {
	body := gin.H{"success": true}
	for k, v := range obj {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// jsonError answers with the status mapped from err.
func jsonError(c *gin.Context, action string, err error) {
	status, msg := errorStatus(err)
	jsonErrorMsg(c, action, status, msg, err)
}

func jsonErrorMsg(c *gin.Context, action string, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		logger.Warningf("%s failed: %v", action, err)
	} else {
		logger.Debugf("%s rejected: %v", action, err)
	}
	pureJsonMsg(c, status, msg)
}

// pureJsonMsg sends a failure body with a custom status code.
func pureJsonMsg(c *gin.Context, statusCode int, msg string) {
	c.JSON(statusCode, entity.ErrorMsg{
		Success: false,
		Error:   msg,
	})
}
