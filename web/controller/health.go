package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/middleware"
	"github.com/mhsanaei/csc-portal/web/relay"
)

const pingTimeout = 3 * time.Second

// Pinger is the storage liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports liveness and exposes recent logs to operators.
type HealthController struct {
	store Pinger
	hub   *relay.Hub
}

func NewHealthController(g *gin.RouterGroup, store Pinger, hub *relay.Hub) *HealthController {
	a := &HealthController{store: store, hub: hub}
	a.initRouter(g)
	return a
}

func (a *HealthController) initRouter(g *gin.RouterGroup) {
	g.GET("/health", a.health)
	g.GET("/logs", middleware.RoleRequired(model.RoleOperator), a.logs)
}

func (a *HealthController) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	body := gin.H{"version": config.GetVersion()}
	if a.hub != nil {
		body["relay"] = a.hub.Stats()
	}
	if err := a.store.Ping(ctx); err != nil {
		logger.Warning("health check failed:", err)
		body["success"] = false
		body["error"] = "Storage unavailable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	jsonObj(c, body)
}

// logs returns up to count recent entries at or above level, newest first.
func (a *HealthController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "100"))
	if err != nil || count < 1 {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid count")
		return
	}
	if count > 1000 {
		count = 1000
	}
	jsonObj(c, gin.H{"logs": logger.GetLogs(count, c.DefaultQuery("level", "DEBUG"))})
}
