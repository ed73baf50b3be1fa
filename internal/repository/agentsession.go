package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// AgentSessionRepository backs the presence/subscription state machine
// from spec.md §4.D.
type AgentSessionRepository interface {
	FindActive(ctx context.Context, roomID uuid.UUID, agent domain.AgentID) (*domain.AgentSession, error)

	Create(ctx context.Context, session *domain.AgentSession) error

	// UpdateStatus performs a compare-and-swap on Status, returning
	// ErrNotFound if no row matches (id, fromStatus).
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus domain.SessionStatus) error

	ListByRoom(ctx context.Context, roomID uuid.UUID, status domain.SessionStatus) ([]domain.AgentSession, error)

	// DeleteStaleReady closes out "ready" sessions whose agent has not
	// been seen since before cutoff, used by the periodic sweep in
	// SPEC_FULL.md §4.G.
	DeleteStaleReady(ctx context.Context, cutoffUnixNano int64) (int64, error)
}
