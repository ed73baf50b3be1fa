// Package hub fans broadcast events out to the websocket clients
// connected to this process, backed by Redis pub/sub so a
// multi-instance deployment still delivers every event to every
// subscriber regardless of which instance accepted the connection.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	redisstate "github.com/foxford/event/internal/infra/state/redis"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 128 * 1024
)

// topicWatch is the local fan-out registry plus the cancel func for
// the background goroutine draining that topic's Redis subscription.
type topicWatch struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Hub tracks, per process, which local clients are listening on which
// rooms/{room_id}/events and audiences/{audience}/events topics.
type Hub struct {
	state *redisstate.StateRepository

	roomsMu sync.Mutex
	rooms   map[uuid.UUID]*topicWatch

	audiencesMu sync.Mutex
	audiences   map[string]*topicWatch
}

func NewHub(state *redisstate.StateRepository) *Hub {
	if state == nil {
		panic("StateRepository cannot be nil for Hub")
	}
	return &Hub{
		state:     state,
		rooms:     make(map[uuid.UUID]*topicWatch),
		audiences: make(map[string]*topicWatch),
	}
}

// SubscribeRoom registers client to receive rooms/{roomID}/events,
// starting the underlying Redis subscription if this is the first
// local listener for that room.
func (h *Hub) SubscribeRoom(roomID uuid.UUID, client *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	w, ok := h.rooms[roomID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		w = &topicWatch{clients: make(map[*Client]bool), cancel: cancel}
		h.rooms[roomID] = w
		go h.pumpRoom(ctx, roomID, w)
	}
	w.clients[client] = true
}

func (h *Hub) UnsubscribeRoom(roomID uuid.UUID, client *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	w, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(w.clients, client)
	if len(w.clients) == 0 {
		w.cancel()
		delete(h.rooms, roomID)
	}
}

func (h *Hub) SubscribeAudience(audience string, client *Client) {
	h.audiencesMu.Lock()
	defer h.audiencesMu.Unlock()

	w, ok := h.audiences[audience]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		w = &topicWatch{clients: make(map[*Client]bool), cancel: cancel}
		h.audiences[audience] = w
		go h.pumpAudience(ctx, audience, w)
	}
	w.clients[client] = true
}

func (h *Hub) UnsubscribeAudience(audience string, client *Client) {
	h.audiencesMu.Lock()
	defer h.audiencesMu.Unlock()

	w, ok := h.audiences[audience]
	if !ok {
		return
	}
	delete(w.clients, client)
	if len(w.clients) == 0 {
		w.cancel()
		delete(h.audiences, audience)
	}
}

// UnsubscribeAll drops client from every topic it's registered on,
// called once from the connection's cleanup path.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.roomsMu.Lock()
	for roomID, w := range h.rooms {
		if w.clients[client] {
			delete(w.clients, client)
			if len(w.clients) == 0 {
				w.cancel()
				delete(h.rooms, roomID)
			}
		}
	}
	h.roomsMu.Unlock()

	h.audiencesMu.Lock()
	for audience, w := range h.audiences {
		if w.clients[client] {
			delete(w.clients, client)
			if len(w.clients) == 0 {
				w.cancel()
				delete(h.audiences, audience)
			}
		}
	}
	h.audiencesMu.Unlock()
}

// PublishRoom publishes payload to rooms/{roomID}/events.
func (h *Hub) PublishRoom(ctx context.Context, roomID uuid.UUID, payload []byte) error {
	return h.state.PublishRoomEvent(ctx, roomID, payload)
}

// PublishAudience publishes payload to audiences/{audience}/events.
func (h *Hub) PublishAudience(ctx context.Context, audience string, payload []byte) error {
	return h.state.PublishAudienceEvent(ctx, audience, payload)
}

func (h *Hub) pumpRoom(ctx context.Context, roomID uuid.UUID, w *topicWatch) {
	sub := h.state.SubscribeRoom(ctx, roomID)
	defer sub.Close()
	h.pump(ctx, sub, w, logrus.WithField("room_id", roomID))
}

func (h *Hub) pumpAudience(ctx context.Context, audience string, w *topicWatch) {
	sub := h.state.SubscribeAudience(ctx, audience)
	defer sub.Close()
	h.pump(ctx, sub, w, logrus.WithField("audience", audience))
}

func (h *Hub) pump(ctx context.Context, sub *redis.PubSub, w *topicWatch, logCtx *logrus.Entry) {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.fanOut(w, []byte(msg.Payload), logCtx)
		}
	}
}

func (h *Hub) fanOut(w *topicWatch, payload []byte, logCtx *logrus.Entry) {
	for client := range w.clients {
		select {
		case client.send <- payload:
		default:
			logCtx.Warn("client send buffer full, dropping broadcast")
		}
	}
}
