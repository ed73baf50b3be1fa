package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// AdjustmentRepository is the GORM-backed repository.AdjustmentRepository.
type AdjustmentRepository struct {
	db *gorm.DB
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	if db == nil {
		panic("gorm: nil db passed to NewAdjustmentRepository")
	}
	return &AdjustmentRepository{db: db}
}

func (r *AdjustmentRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Adjustment, error) {
	var adjustment domain.Adjustment
	if err := r.db.WithContext(ctx).First(&adjustment, "room_id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find adjustment for room %s: %w", roomID, err)
	}
	return &adjustment, nil
}

// Create relies on Adjustment.RoomID being the table's primary key to
// enforce the "at most one adjustment per room" invariant at the
// storage layer.
func (r *AdjustmentRepository) Create(ctx context.Context, adjustment *domain.Adjustment) error {
	if err := r.db.WithContext(ctx).Create(adjustment).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create adjustment for room %s: %w", adjustment.RoomID, err)
	}
	return nil
}
