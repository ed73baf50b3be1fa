package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// EventRepository is the GORM-backed repository.EventRepository.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	if db == nil {
		panic("gorm: nil db passed to NewEventRepository")
	}
	return &EventRepository{db: db}
}

func (r *EventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find event %s: %w", id, err)
	}
	return &event, nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create event %s: %w", event.ID, err)
	}
	return nil
}

func (r *EventRepository) EventsInRoomRange(ctx context.Context, q repository.EventQuery) ([]domain.Event, error) {
	tx := r.db.WithContext(ctx).Where("room_id = ?", q.RoomID)
	tx = applyEventFilters(tx, q)

	desc := q.Direction == "backward"
	tx = tx.Order(orderClause("occurred_at", desc))

	if q.LastOccurredAt != nil {
		if desc {
			tx = tx.Where("occurred_at < ?", *q.LastOccurredAt)
		} else {
			tx = tx.Where("occurred_at > ?", *q.LastOccurredAt)
		}
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var events []domain.Event
	if err := tx.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("gorm: events in room range for room %s: %w", q.RoomID, err)
	}
	return events, nil
}

// LatestPerLabel implements spec.md §4.C's state_read: within (room,
// set), the row maximizing (occurred_at, created_at) per label, using
// a ROW_NUMBER() window since MySQL has no native DISTINCT ON. A
// label is hidden entirely when its latest row has removed=true,
// mirroring the whole-label tombstone spec.md describes rather than
// merely skipping the removed row itself.
func (r *EventRepository) LatestPerLabel(ctx context.Context, q repository.EventQuery) ([]domain.Event, error) {
	inner := r.db.WithContext(ctx).
		Table("event").
		Select("*, ROW_NUMBER() OVER (PARTITION BY label ORDER BY occurred_at DESC, created_at DESC) AS rn").
		Where("room_id = ? AND `set` = ? AND deleted_at IS NULL", q.RoomID, q.SetID)
	if q.OccurredAtPivot != nil {
		inner = inner.Where("occurred_at <= ?", *q.OccurredAtPivot)
	}

	tx := r.db.WithContext(ctx).
		Table("(?) AS ranked", inner).
		Where("rn = 1 AND removed = ?", false)

	desc := q.Direction == "backward"
	tx = tx.Order(orderClause("original_occurred_at", desc)).
		Order(orderClause("occurred_at", desc))

	if q.OriginalOccurredAtCursor != nil {
		if desc {
			tx = tx.Where("original_occurred_at < ?", *q.OriginalOccurredAtCursor)
		} else {
			tx = tx.Where("original_occurred_at > ?", *q.OriginalOccurredAtCursor)
		}
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var events []domain.Event
	if err := tx.Scan(&events).Error; err != nil {
		return nil, fmt.Errorf("gorm: latest per label for room %s set %q: %w", q.RoomID, q.SetID, err)
	}
	return events, nil
}

// EventsForAdjust returns the full ordered traversal of a room's event
// log: every non-soft-deleted row, including removed ones, since the
// derived-room pipelines carry removed events over rather than
// dropping them.
func (r *EventRepository) EventsForAdjust(ctx context.Context, roomID uuid.UUID) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND deleted_at IS NULL", roomID).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: events for adjust in room %s: %w", roomID, err)
	}
	return events, nil
}

func (r *EventRepository) EventsForKind(ctx context.Context, roomID uuid.UUID, kind string) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND kind = ? AND removed = ?", roomID, kind, false).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: events for kind %q in room %s: %w", kind, roomID, err)
	}
	return events, nil
}

func (r *EventRepository) BulkInsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(events, 500).Error; err != nil {
		return fmt.Errorf("gorm: bulk insert %d events: %w", len(events), err)
	}
	return nil
}

func (r *EventRepository) StampOriginal(ctx context.Context, id uuid.UUID, originalOccurredAt int64, originalCreatedBy domain.AgentID) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"original_occurred_at": originalOccurredAt,
			"original_created_by":  originalCreatedBy.String(),
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: stamp original on event %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EventRepository) FindOriginalCandidate(ctx context.Context, roomID uuid.UUID, setID, label string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND `set` = ? AND label = ? AND deleted_at IS NULL", roomID, setID, label).
		Order("occurred_at ASC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find original candidate in room %s: %w", roomID, err)
	}
	return &event, nil
}

func (r *EventRepository) RoomOpenedAt(ctx context.Context, roomID uuid.UUID, at time.Time) (int64, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).Select("opened_at").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("gorm: room opened_at %s: %w", roomID, err)
	}
	return at.Sub(room.OpenedAt).Nanoseconds(), nil
}

func applyEventFilters(tx *gorm.DB, q repository.EventQuery) *gorm.DB {
	if q.Kind != "" {
		tx = tx.Where("kind = ?", q.Kind)
	}
	if q.SetID != "" {
		tx = tx.Where("`set` = ?", q.SetID)
	}
	if q.Label != "" {
		tx = tx.Where("label = ?", q.Label)
	}
	if q.Removed != nil {
		tx = tx.Where("removed = ?", *q.Removed)
	}
	return tx
}

func orderClause(column string, desc bool) string {
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}
