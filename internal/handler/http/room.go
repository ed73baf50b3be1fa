package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/hub"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
)

// RoomHandler mirrors room.{create,read,update,adjust,dump_events,
// locked_types,whiteboard_access} over plain HTTP for callers that
// don't hold a live websocket connection, spec.md §6.
type RoomHandler struct {
	room        *service.RoomService
	event       *service.EventService
	adjust      *service.AdjustService
	hub         *hub.Hub
	asynqClient *asynq.Client
}

func NewRoomHandler(room *service.RoomService, event *service.EventService, adjust *service.AdjustService, h *hub.Hub, asynqClient *asynq.Client) *RoomHandler {
	return &RoomHandler{room: room, event: event, adjust: adjust, hub: h, asynqClient: asynqClient}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	if req.OpenedAt.IsZero() {
		req.OpenedAt = time.Now()
	}
	room, err := h.room.CreateRoom(c.Request.Context(), service.CreateRoomParams{
		Audience:        req.Audience,
		OpenedAt:        req.OpenedAt,
		ClosedAt:        req.ClosedAt,
		Tags:            req.Tags,
		PreserveHistory: req.PreserveHistory,
		Kind:            req.Kind,
		ClassroomID:     req.ClassroomID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.RoomFromDomain(room)
	publishAudience(c, h.hub, room.Audience, "room.create", resp)
	SuccessResponse(c, http.StatusOK, resp)
}

func (h *RoomHandler) ReadRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	room, err := h.room.ReadRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.RoomFromDomain(room))
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	room, err := h.room.UpdateRoom(c.Request.Context(), roomID, service.UpdateRoomParams{
		ClosedAt: req.ClosedAt,
		Tags:     req.Tags,
	}, time.Now())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.RoomFromDomain(room)
	publishAudience(c, h.hub, room.Audience, "room.update", resp)
	publish(c, h.hub, room.ID, "room.update", resp)
	SuccessResponse(c, http.StatusOK, resp)
}

func (h *RoomHandler) AdjustRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	var req dto.AdjustRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}

	adjustReq := service.AdjustRequest{RoomID: roomID, StartedAt: req.StartedAt, Segments: req.Segments, OffsetMs: req.OffsetMs}
	if _, err := h.adjust.Validate(c.Request.Context(), adjustReq); err != nil {
		HandleServiceError(c, err)
		return
	}

	payload, err := tasks.NewRoomAdjustTask(tasks.RoomAdjustPayload{RoomID: roomID, StartedAt: req.StartedAt, Segments: req.Segments, OffsetMs: req.OffsetMs})
	if err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue adjust task", err))
		return
	}
	if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), asynq.NewTask(tasks.TypeRoomAdjust, payload), asynq.Queue("critical")); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.MessageHandlingFailed, "failed to enqueue adjust task", err))
		return
	}
	SuccessResponse(c, http.StatusAccepted, dto.AdjustNotification{Status: "accepted", SourceRoomID: roomID})
}

func (h *RoomHandler) DumpEvents(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	room, err := h.room.ReadRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	events, err := h.event.ListEvents(c.Request.Context(), service.ListEventsParams{Room: roomID, Direction: "forward"})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.ListEventsResponse{Events: dto.EventsFromDomain(events)}
	publishAudience(c, h.hub, room.Audience, "room.dump_events", resp)
	SuccessResponse(c, http.StatusAccepted, dto.AdjustNotification{Status: "accepted", SourceRoomID: roomID})
}

func (h *RoomHandler) SetLockedTypes(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	var req struct {
		LockedTypes map[string]interface{} `json:"locked_types"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	room, err := h.room.UpdateRoom(c.Request.Context(), roomID, service.UpdateRoomParams{LockedTypes: req.LockedTypes}, time.Now())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.RoomFromDomain(room)
	publish(c, h.hub, room.ID, "room.update", resp)
	SuccessResponse(c, http.StatusOK, resp)
}

func (h *RoomHandler) SetWhiteboardAccess(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	var req struct {
		WhiteboardAccess map[string]interface{} `json:"whiteboard_access"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	room, err := h.room.UpdateRoom(c.Request.Context(), roomID, service.UpdateRoomParams{WhiteboardAccess: req.WhiteboardAccess}, time.Now())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := dto.RoomFromDomain(room)
	publish(c, h.hub, room.ID, "room.update", resp)
	SuccessResponse(c, http.StatusOK, resp)
}
