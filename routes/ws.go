package routes

import (
	"github.com/gin-gonic/gin"

	"court-booking-server/middleware"
	ws "court-booking-server/websocket"
)

func (api *API) serveWS(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	ws.ServeWebSocket(api.Hub, api.Upgrader, c.Writer, c.Request, actor.ID, string(actor.Role))
}
