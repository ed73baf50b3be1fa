package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foxford/event/internal/agentid"
	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/dto"
	"github.com/foxford/event/internal/hub"
	"github.com/foxford/event/internal/service"
)

// PresenceHandler mirrors agent.{list,update} over plain HTTP. Entering
// and leaving a room require a live websocket session and have no HTTP
// counterpart, spec.md §4.D.
type PresenceHandler struct {
	room     *service.RoomService
	presence *service.PresenceService
	hub      *hub.Hub
}

func NewPresenceHandler(room *service.RoomService, presence *service.PresenceService, h *hub.Hub) *PresenceHandler {
	return &PresenceHandler{room: room, presence: presence, hub: h}
}

func (h *PresenceHandler) ListAgents(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	sessions, err := h.presence.ListActive(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	out := make([]dto.AgentResponse, len(sessions))
	for i, s := range sessions {
		out[i] = dto.AgentFromDomain(s)
	}
	SuccessResponse(c, http.StatusOK, dto.ListAgentsResponse{Agents: out})
}

func (h *PresenceHandler) UpdateAgent(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "room_id must be a uuid"))
		return
	}
	var req struct {
		AgentID string `json:"agent_id" binding:"required"`
		Ban     *bool  `json:"ban,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleServiceError(c, apperr.Wrap(apperr.InvalidPayload, "invalid request body", err))
		return
	}
	if req.Ban == nil || !*req.Ban {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "only ban=true is supported by agent.update"))
		return
	}
	target, err := agentid.Parse(req.AgentID)
	if err != nil {
		HandleServiceError(c, apperr.New(apperr.InvalidPayload, "agent_id is not a valid agent identifier"))
		return
	}
	room, err := h.room.ReadRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if err := h.presence.Ban(c.Request.Context(), roomID, domain.AgentID(target), time.Now()); err != nil {
		HandleServiceError(c, err)
		return
	}
	resp := gin.H{"room_id": roomID, "agent_id": target.String(), "banned": true}
	publish(c, h.hub, roomID, "agent.update", resp)
	publishAudience(c, h.hub, room.Audience, "agent.ban", resp)
	SuccessResponse(c, http.StatusOK, resp)
}
