package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/foxford/event/internal/domain"
)

type CreateEventRequest struct {
	RoomID       uuid.UUID      `json:"room_id" binding:"required"`
	Kind         string         `json:"type" binding:"required"`
	Set          string         `json:"set,omitempty"`
	Label        *string        `json:"label,omitempty"`
	Attribute    *string        `json:"attribute,omitempty"`
	Data         datatypes.JSON `json:"data,omitempty"`
	OccurredAt   *int64         `json:"occurred_at,omitempty"`
	IsPersistent bool           `json:"is_persistent"`
	IsClaim      bool           `json:"is_claim,omitempty"`
}

type EventResponse struct {
	ID                 uuid.UUID      `json:"id"`
	RoomID             uuid.UUID      `json:"room_id"`
	Kind               string         `json:"type"`
	Set                string         `json:"set"`
	Label              *string        `json:"label,omitempty"`
	Data               datatypes.JSON `json:"data,omitempty"`
	OccurredAt         int64          `json:"occurred_at"`
	OriginalOccurredAt int64          `json:"original_occurred_at"`
	CreatedBy          string         `json:"created_by"`
	CreatedAt          time.Time      `json:"created_at"`
	Removed            bool           `json:"removed"`
}

func EventFromDomain(e domain.Event) EventResponse {
	return EventResponse{
		ID:                 e.ID,
		RoomID:             e.RoomID,
		Kind:               e.Kind,
		Set:                e.Set,
		Label:              e.Label,
		Data:               e.Data,
		OccurredAt:         e.OccurredAt,
		OriginalOccurredAt: e.OriginalOccurredAt,
		CreatedBy:          e.CreatedBy.String(),
		CreatedAt:          e.CreatedAt,
		Removed:            e.Removed,
	}
}

func EventsFromDomain(events []domain.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = EventFromDomain(e)
	}
	return out
}

type ListEventsRequest struct {
	RoomID    uuid.UUID `json:"room_id" binding:"required"`
	Kind      string    `json:"type,omitempty"`
	Set       string    `json:"set,omitempty"`
	Label     string    `json:"label,omitempty"`
	Removed   *bool     `json:"removed,omitempty"`
	LastOccurredAt *int64 `json:"last_occurred_at,omitempty"`
	Direction string    `json:"direction,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}
