package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// RoomBanRepository is the GORM-backed repository.RoomBanRepository.
type RoomBanRepository struct {
	db *gorm.DB
}

func NewRoomBanRepository(db *gorm.DB) *RoomBanRepository {
	if db == nil {
		panic("gorm: nil db passed to NewRoomBanRepository")
	}
	return &RoomBanRepository{db: db}
}

func (r *RoomBanRepository) Find(ctx context.Context, roomID uuid.UUID, accountLabel string) (*domain.RoomBan, error) {
	var ban domain.RoomBan
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND account_label = ?", roomID, accountLabel).
		First(&ban).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find ban for %s in room %s: %w", accountLabel, roomID, err)
	}
	return &ban, nil
}

func (r *RoomBanRepository) Upsert(ctx context.Context, ban *domain.RoomBan) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_label"}, {Name: "room_id"}}, DoNothing: true}).
		Create(ban).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert ban for %s in room %s: %w", ban.AccountLabel, ban.RoomID, err)
	}
	return nil
}

func (r *RoomBanRepository) Delete(ctx context.Context, roomID uuid.UUID, accountLabel string) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND account_label = ?", roomID, accountLabel).
		Delete(&domain.RoomBan{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete ban for %s in room %s: %w", accountLabel, roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoomBanRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.RoomBan, error) {
	var bans []domain.RoomBan
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Find(&bans).Error; err != nil {
		return nil, fmt.Errorf("gorm: list bans for room %s: %w", roomID, err)
	}
	return bans, nil
}
