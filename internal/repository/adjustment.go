package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// AdjustmentRepository stores the per-room adjust singleton, spec.md §4.E.
type AdjustmentRepository interface {
	FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Adjustment, error)

	// Create fails with ErrDuplicateEntry if the room was already
	// adjusted, enforcing the "at most once" invariant.
	Create(ctx context.Context, adjustment *domain.Adjustment) error
}
