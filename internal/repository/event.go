package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// EventQuery narrows EventsInRoomRange / LatestPerLabel results.
// Zero values mean "unbounded" for the corresponding field.
type EventQuery struct {
	RoomID uuid.UUID

	Kind  string
	SetID string
	Label string

	// LastOccurredAt bounds EventsInRoomRange's cursor pagination.
	LastOccurredAt *int64

	// OccurredAtPivot restricts LatestPerLabel's "latest per label" to
	// rows with occurred_at <= pivot, spec.md §4.C's state_read pivot
	// parameter.
	OccurredAtPivot *int64

	// OriginalOccurredAtCursor bounds LatestPerLabel's pagination:
	// results are strictly less than (backward) or greater than
	// (forward) the cursor, per spec.md §4.C.
	OriginalOccurredAtCursor *int64

	// Direction selects ordering of the cursor pagination.
	Direction string // "forward" | "backward"
	Limit     int

	// Removed filters on the removed flag: nil means both.
	Removed *bool
}

// EventRepository is the durable store's event-facing primitive set,
// spec.md §4.A / §4.C.
type EventRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)

	Create(ctx context.Context, event *domain.Event) error

	// EventsInRoomRange lists raw events in a room ordered by
	// (occurred_at) honoring the query's cursor and limit.
	EventsInRoomRange(ctx context.Context, q EventQuery) ([]domain.Event, error)

	// LatestPerLabel implements the state_read primitive from spec.md
	// §4.C: for each label in (room, set), the row maximizing
	// (occurred_at, created_at) among non-deleted rows not exceeding
	// OccurredAtPivot when set, with removed labels hidden entirely and
	// results ordered by (original_occurred_at, occurred_at).
	LatestPerLabel(ctx context.Context, q EventQuery) ([]domain.Event, error)

	// EventsForAdjust returns every non-deleted event in a room ordered
	// by occurred_at ascending, including removed ones (they are still
	// carried into derived rooms), the raw material for the adjust
	// engine.
	EventsForAdjust(ctx context.Context, roomID uuid.UUID) ([]domain.Event, error)

	// EventsForKind returns non-removed events of a single kind in a
	// room ordered by occurred_at, used to fetch stream cut commands.
	EventsForKind(ctx context.Context, roomID uuid.UUID, kind string) ([]domain.Event, error)

	// BulkInsertEvents inserts events produced by an edition commit or
	// an adjust operation in a single batch, inside the caller's
	// transaction.
	BulkInsertEvents(ctx context.Context, events []domain.Event) error

	// StampOriginal performs the original-tracking protocol update
	// (spec.md §4.B): it must run under the caller-held distributed
	// lock keyed by (room_id, set, label) and sets original_occurred_at /
	// original_created_by on the target event.
	StampOriginal(ctx context.Context, id uuid.UUID, originalOccurredAt int64, originalCreatedBy domain.AgentID) error

	// FindOriginalCandidate locates the event this new one should
	// inherit original_occurred_at/original_created_by from: the
	// earliest event (by occurred_at) sharing (room_id, set_id, label),
	// grounded on original_source's OriginalEventQuery, which applies
	// no removed or occurred_at bound of its own.
	FindOriginalCandidate(ctx context.Context, roomID uuid.UUID, setID, label string) (*domain.Event, error)

	// RoomOpenedAt returns the nanoseconds elapsed between the room's
	// opened_at and at. CreateEvent does not call it; it derives
	// occurred_at from the room it already holds.
	RoomOpenedAt(ctx context.Context, roomID uuid.UUID, at time.Time) (int64, error)
}
