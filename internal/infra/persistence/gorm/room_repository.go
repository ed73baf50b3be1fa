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

// RoomRepository is the GORM-backed repository.RoomRepository.
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	if db == nil {
		panic("gorm: nil db passed to NewRoomRepository")
	}
	return &RoomRepository{db: db}
}

func (r *RoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room %s: %w", id, err)
	}
	return &room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %s: %w", room.ID, err)
	}
	return nil
}

func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	room.PruneMapsToTrue()
	result := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", room.ID).Updates(room)
	if result.Error != nil {
		return fmt.Errorf("gorm: update room %s: %w", room.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) FindBySourceRoomID(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).Where("source_room_id = ?", sourceRoomID).Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("gorm: find rooms by source_room_id %s: %w", sourceRoomID, err)
	}
	return rooms, nil
}

func (r *RoomRepository) DetachSourceRoom(ctx context.Context, sourceRoomID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("source_room_id = ?", sourceRoomID).
		Update("source_room_id", nil).Error
	if err != nil {
		return fmt.Errorf("gorm: detach source room %s: %w", sourceRoomID, err)
	}
	return nil
}
