package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/foxford/event/internal/domain"
)

type CreateEditionRequest struct {
	SourceRoomID uuid.UUID `json:"source_room_id" binding:"required"`
}

type EditionResponse struct {
	ID           uuid.UUID `json:"id"`
	SourceRoomID uuid.UUID `json:"source_room_id"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func EditionFromDomain(e domain.Edition) EditionResponse {
	return EditionResponse{ID: e.ID, SourceRoomID: e.SourceRoomID, CreatedBy: e.CreatedBy.String(), CreatedAt: e.CreatedAt}
}

func EditionsFromDomain(editions []domain.Edition) []EditionResponse {
	out := make([]EditionResponse, len(editions))
	for i, e := range editions {
		out[i] = EditionFromDomain(e)
	}
	return out
}

type ListEditionsRequest struct {
	SourceRoomID uuid.UUID `json:"source_room_id" binding:"required"`
}

type CreateChangeRequest struct {
	EditionID     uuid.UUID       `json:"edition_id" binding:"required"`
	Kind          domain.ChangeKind `json:"kind" binding:"required"`
	EventID       *uuid.UUID      `json:"event_id,omitempty"`
	NewKind       *string         `json:"type,omitempty"`
	NewSet        *string         `json:"set,omitempty"`
	NewLabel      *string         `json:"label,omitempty"`
	NewData       datatypes.JSON  `json:"data,omitempty"`
	NewOccurredAt *int64          `json:"occurred_at,omitempty"`
	NewCreatedBy  *string         `json:"created_by,omitempty"`
}

type ChangeResponse struct {
	ID        uuid.UUID         `json:"id"`
	EditionID uuid.UUID         `json:"edition_id"`
	Kind      domain.ChangeKind `json:"kind"`
	EventID   *uuid.UUID        `json:"event_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func ChangeFromDomain(c domain.Change) ChangeResponse {
	return ChangeResponse{ID: c.ID, EditionID: c.EditionID, Kind: c.Kind, EventID: c.EventID, CreatedAt: c.CreatedAt}
}

func ChangesFromDomain(changes []domain.Change) []ChangeResponse {
	out := make([]ChangeResponse, len(changes))
	for i, c := range changes {
		out[i] = ChangeFromDomain(c)
	}
	return out
}

type ListChangesRequest struct {
	EditionID uuid.UUID `json:"edition_id" binding:"required"`
}

type CommitEditionRequest struct {
	EditionID uuid.UUID `json:"edition_id" binding:"required"`
	OffsetMs  int64     `json:"offset,omitempty"`
}

// CommitNotification is published as edition.commit on the audience
// topic once the background commit task finishes.
type CommitNotification struct {
	Status           string           `json:"status"`
	SourceRoomID     uuid.UUID        `json:"source_room_id"`
	CommittedRoomID  uuid.UUID        `json:"committed_room_id,omitempty"`
	ModifiedSegments []domain.Segment `json:"modified_segments,omitempty"`
}
