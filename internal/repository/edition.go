package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// EditionRepository stores staged edit batches, spec.md §4.F.
type EditionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Edition, error)

	Create(ctx context.Context, edition *domain.Edition) error

	Delete(ctx context.Context, id uuid.UUID) error

	ListBySourceRoom(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Edition, error)
}

// ChangeRepository stores the individual staged edits belonging to an
// Edition.
type ChangeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Change, error)

	Create(ctx context.Context, change *domain.Change) error

	Delete(ctx context.Context, id uuid.UUID) error

	// ListByEdition returns every change belonging to an edition ordered
	// by creation time, the order the commit engine applies them in.
	ListByEdition(ctx context.Context, editionID uuid.UUID) ([]domain.Change, error)
}
