package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/foxford/event/internal/domain"
)

type CreateRoomRequest struct {
	Audience         string            `json:"audience" binding:"required"`
	OpenedAt         time.Time         `json:"time"`
	ClosedAt         *time.Time        `json:"closed_at,omitempty"`
	Tags             datatypes.JSON    `json:"tags,omitempty"`
	PreserveHistory  bool              `json:"preserve_history,omitempty"`
	ClassroomID      *uuid.UUID        `json:"classroom_id,omitempty"`
	Kind             string            `json:"kind,omitempty"`
}

type UpdateRoomRequest struct {
	Time             *time.Time        `json:"time,omitempty"`
	ClosedAt         *time.Time        `json:"closed_at,omitempty"`
	Tags             datatypes.JSON    `json:"tags,omitempty"`
	ClassroomID      *uuid.UUID        `json:"classroom_id,omitempty"`
	LockedTypes      datatypes.JSONMap `json:"locked_types,omitempty"`
	WhiteboardAccess datatypes.JSONMap `json:"whiteboard_access,omitempty"`
}

type RoomResponse struct {
	ID              uuid.UUID      `json:"id"`
	Audience        string         `json:"audience"`
	SourceRoomID    *uuid.UUID     `json:"source_room_id,omitempty"`
	OpenedAt        time.Time      `json:"time"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
	Tags            datatypes.JSON `json:"tags,omitempty"`
	PreserveHistory bool           `json:"preserve_history"`
	Kind            string         `json:"kind,omitempty"`
}

func RoomFromDomain(r *domain.Room) RoomResponse {
	return RoomResponse{
		ID:              r.ID,
		Audience:        r.Audience,
		SourceRoomID:    r.SourceRoomID,
		OpenedAt:        r.OpenedAt,
		ClosedAt:        r.ClosedAt,
		Tags:            r.Tags,
		PreserveHistory: r.PreserveHistory,
		Kind:            r.Kind,
	}
}

// AdjustRoomRequest is room.adjust's payload, spec.md §4.E.
type AdjustRoomRequest struct {
	StartedAt time.Time         `json:"started_at" binding:"required"`
	Segments  []domain.Segment  `json:"segments" binding:"required"`
	OffsetMs  int64             `json:"offset,omitempty"`
}

// AdjustNotification is the payload published on the audience topic
// when a room.adjust background task completes.
type AdjustNotification struct {
	Status           string           `json:"status"`
	SourceRoomID     uuid.UUID        `json:"source_room_id"`
	OriginalRoomID   uuid.UUID        `json:"original_room_id,omitempty"`
	ModifiedRoomID   uuid.UUID        `json:"modified_room_id,omitempty"`
	ModifiedSegments []domain.Segment `json:"modified_segments,omitempty"`
}
