package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

type EnterRoomRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
}

type LeaveRoomRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
}

type AgentUpdateRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
	Ban    *bool     `json:"ban,omitempty"`
}

type AgentResponse struct {
	AgentID string    `json:"agent_id"`
	RoomID  uuid.UUID `json:"room_id"`
	Status  string    `json:"status"`
	Since   time.Time `json:"since"`
}

func AgentFromDomain(s domain.AgentSession) AgentResponse {
	return AgentResponse{
		AgentID: s.AgentID.String(),
		RoomID:  s.RoomID,
		Status:  string(s.Status),
		Since:   s.CreatedAt,
	}
}

type ListAgentsRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
}

type ListAgentsResponse struct {
	Agents []AgentResponse `json:"agents"`
}
