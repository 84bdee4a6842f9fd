package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/models"
)

const fallbackReplyBuffer = 16

// HandleEventFallback is the request-mode transport: one inbound
// event per POST, same guard and dispatch table as the WebSocket
// path. Unicast replies come back in the response body; broadcasts
// still fan out to connected WebSocket clients. Fallback callers are
// not registered with the hub, so they hold no meeting membership.
func (g *Gateway) HandleEventFallback(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	event := c.Param("event")
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		Send:     make(chan []byte, fallbackReplyBuffer),
	}

	g.dispatcher.Dispatch(c.Request.Context(), client, models.Envelope{
		Event: event,
		Data:  data,
	})

	var replies []models.Envelope
drain:
	for {
		select {
		case frame := <-client.Send:
			var env models.Envelope
			if err := json.Unmarshal(frame, &env); err == nil {
				replies = append(replies, env)
			}
		default:
			break drain
		}
	}

	if len(replies) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}
