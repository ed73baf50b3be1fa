package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// RoomService implements room.{create,read,update} and the room
// lifecycle checks the rest of the service layer relies on.
type RoomService struct {
	roomRepo repository.RoomRepository
}

func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoomParams carries the caller-supplied fields for room.create.
type CreateRoomParams struct {
	Audience         string
	OpenedAt         time.Time
	ClosedAt         *time.Time
	Tags             []byte
	PreserveHistory  bool
	Kind             string
	ClassroomID      *uuid.UUID
	ValidateWhiteboardAccess bool
}

func (s *RoomService) CreateRoom(ctx context.Context, p CreateRoomParams) (*domain.Room, error) {
	logCtx := logrus.WithField("audience", p.Audience)

	if p.ClosedAt != nil && !p.ClosedAt.After(p.OpenedAt) {
		return nil, apperr.New(apperr.InvalidRoomTime, "closed_at must be after opened_at")
	}

	room := &domain.Room{
		ID:                       uuid.New(),
		Audience:                 p.Audience,
		OpenedAt:                 p.OpenedAt,
		ClosedAt:                 p.ClosedAt,
		Tags:                     p.Tags,
		PreserveHistory:          p.PreserveHistory,
		Kind:                     p.Kind,
		ClassroomID:              p.ClassroomID,
		ValidateWhiteboardAccess: p.ValidateWhiteboardAccess,
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		logCtx.WithError(err).Error("failed to create room")
		return nil, mapDuplicate(err, apperr.InvalidPayload, "room already exists")
	}

	logCtx.WithField("room_id", room.ID).Info("room created")
	return room, nil
}

func (s *RoomService) ReadRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, apperr.RoomNotFound, "room not found")
	}
	return room, nil
}

// UpdateRoomParams carries the room.update partial-update fields;
// nil means "leave unchanged".
type UpdateRoomParams struct {
	ClosedAt                 *time.Time
	Tags                     []byte
	LockedTypes              map[string]interface{}
	WhiteboardAccess         map[string]interface{}
	ValidateWhiteboardAccess *bool
}

// UpdateRoom applies a partial update. Per SPEC_FULL.md §9's Open
// Question resolution, ClosedAt may be extended or shortened while the
// room is still open (an already-closed room's ClosedAt is immutable);
// callers never get to move OpenedAt once a room exists.
func (s *RoomService) UpdateRoom(ctx context.Context, id uuid.UUID, p UpdateRoomParams, now time.Time) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, apperr.RoomNotFound, "room not found")
	}

	if room.IsClosed(now) {
		return nil, apperr.New(apperr.RoomClosed, "room is closed")
	}

	if p.ClosedAt != nil {
		room.ClosedAt = p.ClosedAt
	}
	if p.Tags != nil {
		room.Tags = p.Tags
	}
	if p.LockedTypes != nil {
		if room.LockedTypes == nil {
			room.LockedTypes = map[string]interface{}{}
		}
		for k, v := range p.LockedTypes {
			room.LockedTypes[k] = v
		}
	}
	if p.WhiteboardAccess != nil {
		if room.WhiteboardAccess == nil {
			room.WhiteboardAccess = map[string]interface{}{}
		}
		for k, v := range p.WhiteboardAccess {
			room.WhiteboardAccess[k] = v
		}
	}
	if p.ValidateWhiteboardAccess != nil {
		room.ValidateWhiteboardAccess = *p.ValidateWhiteboardAccess
	}

	if err := s.roomRepo.Update(ctx, room); err != nil {
		return nil, mapNotFound(err, apperr.RoomNotFound, "room not found")
	}
	return room, nil
}

// EnsureOpen returns RoomClosed if the room isn't open at now, used by
// every write path that mutates room-scoped state.
func (s *RoomService) EnsureOpen(room *domain.Room, now time.Time) error {
	if !room.IsOpen(now) {
		return apperr.New(apperr.RoomClosed, "room is closed")
	}
	return nil
}
