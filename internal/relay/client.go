package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/auth"
	"github.com/campusdesk/meeting-gateway/internal/models"
)

const (
	sendBufferSize = 256
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// Client is one connected relay client.
type Client struct {
	ID       string
	Identity auth.Identity
	Conn     *websocket.Conn
	Send     chan []byte
}

func newClient(conn *websocket.Conn, identity auth.Identity) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// Emit sends a named event to this client alone.
func (c *Client) Emit(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event payload")
		return
	}
	frame, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event frame")
		return
	}
	c.push(frame)
}

// push enqueues a pre-marshaled frame, dropping it if the client's
// buffer is full rather than blocking the relay.
func (c *Client) push(frame []byte) {
	select {
	case c.Send <- frame:
	default:
		log.Warn().Str("clientId", c.ID).Msg("client send buffer full, dropping frame")
	}
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.hub.Remove(c)
		c.Conn.Close()

		count := g.registry.Disconnect()
		g.hub.BroadcastGlobal(models.EventUsers, models.UsersPayload{Count: count})
		log.Info().Str("clientId", c.ID).Int("users", count).Msg("client disconnected")
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("clientId", c.ID).Msg("websocket read error")
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().Err(err).Str("clientId", c.ID).Msg("failed to parse event frame")
			continue
		}

		g.dispatcher.Dispatch(context.Background(), c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("clientId", c.ID).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
