// Package relay is the protocol layer: it accepts client connections
// (WebSocket, with an HTTP request fallback), authorizes inbound
// named events through the identity guard, dispatches them to the
// meeting manager, and fans the effects out to the originating
// client, the meeting's members, or every connected client.
package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/meeting"
	"github.com/campusdesk/meeting-gateway/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the OriginFilter middleware.
		return true
	},
}

// Gateway wires the hub, connection registry and dispatcher behind
// the transport endpoints.
type Gateway struct {
	hub        *Hub
	registry   *Registry
	dispatcher *Dispatcher
	jwtSecret  string
}

func NewGateway(meetings *meeting.Manager, jwtSecret string) *Gateway {
	hub := NewHub()
	return &Gateway{
		hub:        hub,
		registry:   NewRegistry(),
		dispatcher: NewDispatcher(meetings, hub),
		jwtSecret:  jwtSecret,
	}
}

// HandleWS upgrades the connection and runs the client's pumps. The
// token travels in the "token" query parameter; browsers cannot set
// headers on WebSocket handshakes.
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	identity, err := auth.ParseToken(g.jwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := newClient(conn, identity)
	g.hub.Add(client)

	count := g.registry.Connect()
	g.hub.BroadcastGlobal(models.EventUsers, models.UsersPayload{Count: count})
	log.Info().
		Str("clientId", client.ID).
		Str("userId", identity.UserID).
		Int("users", count).
		Msg("client connected")

	go client.writePump()
	go client.readPump(g)
}
