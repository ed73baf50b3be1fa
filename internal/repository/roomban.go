package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

// RoomBanRepository stores per-room bans keyed by (room_id, account_label).
type RoomBanRepository interface {
	Find(ctx context.Context, roomID uuid.UUID, accountLabel string) (*domain.RoomBan, error)

	Upsert(ctx context.Context, ban *domain.RoomBan) error

	Delete(ctx context.Context, roomID uuid.UUID, accountLabel string) error

	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.RoomBan, error)
}
