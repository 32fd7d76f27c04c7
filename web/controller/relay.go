package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RelayController upgrades call participants onto the relay hub.
type RelayController struct {
	hub *relay.Hub
}

func NewRelayController(g *gin.RouterGroup, hub *relay.Hub) *RelayController {
	w := &RelayController{hub: hub}
	w.initRouter(g)
	return w
}

func (w *RelayController) initRouter(g *gin.RouterGroup) {
	g.GET("/ws", w.handleWebSocket)
}

// handleWebSocket serves the connection until the peer goes away.
func (w *RelayController) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed:", err)
		return
	}
	w.hub.Serve(conn)
}
