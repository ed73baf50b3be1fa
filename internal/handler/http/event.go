package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/hub"
	"github.com/foxford/event/internal/middleware"
	"github.com/foxford/event/internal/service"
)

// EventHandler mirrors event.{create,list} over plain HTTP, spec.md §6.
type EventHandler struct {
	room  *service.RoomService
	event *service.EventService
	hub   *hub.Hub
}

func NewEventHandler(room *service.RoomService, event *service.EventService, h *hub.Hub) *EventHandler {
	return &EventHandler{room: room, event: event, hub: h}
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		HandleServiceError(c, apperr.New(apperr.AccessDenied, "missing agent identity"))
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	room, err := h.room.ReadRoom(c.Request.Context(), req.RoomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	event, err := h.event.CreateEvent(c.Request.Context(), service.CreateEventParams{
		Room:           room,
		Agent:          agent,
		IsTrustedAgent: middleware.IsTrustedFromContext(c),
		Kind:           req.Kind,
		Set:            req.Set,
		Label:          req.Label,
		Attribute:      req.Attribute,
		Data:           req.Data,
		OccurredAt:     req.OccurredAt,
		IsPersistent:   req.IsPersistent,
		IsClaim:        req.IsClaim,
		Now:            time.Now(),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.EventFromDomain(*event)
	publish(c, h.hub, req.RoomID, "event.create", resp)
	if req.IsClaim {
		publishAudience(c, h.hub, room.Audience, "event.create", resp)
	}
	SuccessResponse(c, http.StatusOK, resp)
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	roomID, err := uuid.Parse(c.Query("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	params := service.ListEventsParams{
		Room:      roomID,
		Kind:      c.Query("type"),
		Set:       c.Query("set"),
		Label:     c.Query("label"),
		Direction: c.DefaultQuery("direction", "backward"),
	}
	if v := c.Query("last_occurred_at"); v != "" {
		cursor, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "last_occurred_at must be an integer"))
			return
		}
		params.Cursor = &cursor
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "limit must be an integer"))
			return
		}
		params.Limit = limit
	}
	if v := c.Query("removed"); v != "" {
		removed, err := strconv.ParseBool(v)
		if err != nil {
			HandleServiceError(c, apperr.New(apperr.InvalidPayload, "removed must be a boolean"))
			return
		}
		params.Removed = &removed
	}
	events, err := h.event.ListEvents(c.Request.Context(), params)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.ListEventsResponse{Events: dto.EventsFromDomain(events)})
}
