package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// RoomRepository is the durable store's room-facing primitive set,
// spec.md §4.A.
type RoomRepository interface {
	// FindByID returns ErrNotFound if the room does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)

	// Create persists a new room.
	Create(ctx context.Context, room *domain.Room) error

	// Update writes the room's current fields. It applies no room.update
	// rule itself: RoomService.UpdateRoom rejects updates to a closed
	// room and never changes OpenedAt before calling it.
	Update(ctx context.Context, room *domain.Room) error

	// FindBySourceRoomID lists rooms derived from a given source room
	// (original/modified rooms produced by adjust or commit).
	FindBySourceRoomID(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Room, error)

	// DetachSourceRoom nulls SourceRoomID on every room referencing
	// sourceRoomID, implementing the weak back-reference's
	// ON DELETE SET NULL semantics from spec.md §9.
	DetachSourceRoom(ctx context.Context, sourceRoomID uuid.UUID) error
}
