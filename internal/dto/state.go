package dto

import "github.com/google/uuid"

type ReadStateRequest struct {
	RoomID             uuid.UUID `json:"room_id" binding:"required"`
	Sets               []string  `json:"sets" binding:"required"`
	OccurredAt         *int64    `json:"occurred_at,omitempty"`
	OriginalOccurredAt *int64    `json:"original_occurred_at,omitempty"`
	Direction          string    `json:"direction,omitempty"`
	Limit              int       `json:"limit,omitempty"`
}

type StateSetResponse struct {
	Set     string          `json:"set"`
	Events  []EventResponse `json:"events"`
	HasNext bool            `json:"has_next,omitempty"`
}

type ReadStateResponse map[string]StateSetResponse
