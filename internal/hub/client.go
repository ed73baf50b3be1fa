package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/domain"
)

// Dispatcher processes one raw envelope frame read off a client's
// connection and is responsible for writing any reply onto
// client.send itself.
type Dispatcher interface {
	Dispatch(client *Client, message []byte)
}

// Client is one websocket connection, bound to the AgentID it
// authenticated as. It has no notion of which rooms it's subscribed
// to — that's the Hub's bookkeeping — and it runs an optional close
// callback when the connection ends. The websocket dispatcher passes a
// callback that does nothing, so a disconnect without room.leave
// leaves the agent's session unchanged.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	agent      domain.AgentID
	trusted    bool
	dispatcher Dispatcher
	onClose    func(*Client)
	send       chan []byte
}

func NewClient(h *Hub, conn *websocket.Conn, agent domain.AgentID, trusted bool, dispatcher Dispatcher, onClose func(*Client)) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		agent:      agent,
		trusted:    trusted,
		dispatcher: dispatcher,
		onClose:    onClose,
		send:       make(chan []byte, 256),
	}
}

func (c *Client) AgentID() domain.AgentID { return c.agent }

// IsTrusted reports whether Auth verified this connection's agent as a
// trusted service account, spec.md §4.B.
func (c *Client) IsTrusted() bool { return c.trusted }

// Send queues payload for delivery to the client, dropping it (with a
// log line) if the client's outbound buffer is full rather than
// blocking the caller.
func (c *Client) Send(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logrus.WithField("agent", c.agent.String()).Warn("client send buffer full, dropping message")
	}
}

// Run starts the client's read and write pumps and blocks until the
// connection closes.
func (c *Client) Run() {
	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump()
	<-done
}

func (c *Client) readPump() {
	logCtx := logrus.WithField("agent", c.agent.String())
	defer func() {
		c.hub.UnsubscribeAll(c)
		if c.onClose != nil {
			c.onClose(c)
		}
		close(c.send)
		c.conn.Close()
		logCtx.Info("client connection closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatcher.Dispatch(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("agent", c.agent.String()).WithError(err).Warn("failed to write message")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
