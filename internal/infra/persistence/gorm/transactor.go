package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/foxford/event/internal/repository"
)

// Transactor is the GORM-backed repository.Transactor.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	if db == nil {
		panic("gorm: nil db passed to NewTransactor")
	}
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.Repos{
			Room:       NewRoomRepository(tx),
			Event:      NewEventRepository(tx),
			Adjustment: NewAdjustmentRepository(tx),
			Edition:    NewEditionRepository(tx),
			Change:     NewChangeRepository(tx),
		}
		return fn(ctx, repos)
	})
	if err != nil {
		return fmt.Errorf("gorm: transaction failed: %w", err)
	}
	return nil
}
