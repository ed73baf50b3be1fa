package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// EditionRepository is the GORM-backed repository.EditionRepository.
type EditionRepository struct {
	db *gorm.DB
}

func NewEditionRepository(db *gorm.DB) *EditionRepository {
	if db == nil {
		panic("gorm: nil db passed to NewEditionRepository")
	}
	return &EditionRepository{db: db}
}

func (r *EditionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Edition, error) {
	var edition domain.Edition
	if err := r.db.WithContext(ctx).First(&edition, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find edition %s: %w", id, err)
	}
	return &edition, nil
}

func (r *EditionRepository) Create(ctx context.Context, edition *domain.Edition) error {
	if err := r.db.WithContext(ctx).Create(edition).Error; err != nil {
		return fmt.Errorf("gorm: create edition %s: %w", edition.ID, err)
	}
	return nil
}

func (r *EditionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.Edition{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete edition %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *EditionRepository) ListBySourceRoom(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Edition, error) {
	var editions []domain.Edition
	err := r.db.WithContext(ctx).
		Where("source_room_id = ?", sourceRoomID).
		Order("created_at ASC").
		Find(&editions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list editions for source room %s: %w", sourceRoomID, err)
	}
	return editions, nil
}

// ChangeRepository is the GORM-backed repository.ChangeRepository.
type ChangeRepository struct {
	db *gorm.DB
}

func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	if db == nil {
		panic("gorm: nil db passed to NewChangeRepository")
	}
	return &ChangeRepository{db: db}
}

func (r *ChangeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Change, error) {
	var change domain.Change
	if err := r.db.WithContext(ctx).First(&change, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find change %s: %w", id, err)
	}
	return &change, nil
}

func (r *ChangeRepository) Create(ctx context.Context, change *domain.Change) error {
	if err := change.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(change).Error; err != nil {
		return fmt.Errorf("gorm: create change %s: %w", change.ID, err)
	}
	return nil
}

func (r *ChangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.Change{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete change %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ChangeRepository) ListByEdition(ctx context.Context, editionID uuid.UUID) ([]domain.Change, error) {
	var changes []domain.Change
	err := r.db.WithContext(ctx).
		Where("edition_id = ?", editionID).
		Order("created_at ASC").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list changes for edition %s: %w", editionID, err)
	}
	return changes, nil
}
