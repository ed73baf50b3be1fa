package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomBan is a unique (account, room) pair recording that an account is
// banned from a room, per spec.md §4.D's agent.update(ban=true) flow.
type RoomBan struct {
	AccountLabel string    `gorm:"size:191;primaryKey"`
	RoomID       uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (RoomBan) TableName() string { return "room_ban" }
