package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/foxford/event/internal/agentid"
)

// Room is the scope events live in: identity, audience, an optional weak
// back-reference to a source room, and a half-open time interval during
// which the room accepts writes.
type Room struct {
	ID                     uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Audience               string          `gorm:"size:191;index;not null"`
	SourceRoomID           *uuid.UUID      `gorm:"type:char(36);index"` // weak back-reference, ON DELETE SET NULL
	OpenedAt               time.Time       `gorm:"not null"`
	ClosedAt               *time.Time      // nil == unbounded
	Tags                   datatypes.JSON
	CreatedAt              time.Time       `gorm:"autoCreateTime"`
	PreserveHistory        bool            `gorm:"not null;default:false"`
	ClassroomID            *uuid.UUID      `gorm:"type:char(36);index"`
	Kind                   string          `gorm:"size:64"`
	LockedTypes            datatypes.JSONMap
	WhiteboardAccess       datatypes.JSONMap
	ValidateWhiteboardAccess bool          `gorm:"not null;default:false"`
}

func (Room) TableName() string { return "room" }

// IsOpen reports whether now falls within [OpenedAt, ClosedAt).
func (r *Room) IsOpen(now time.Time) bool {
	if now.Before(r.OpenedAt) {
		return false
	}
	if r.ClosedAt == nil {
		return true
	}
	return now.Before(*r.ClosedAt)
}

// IsClosed is the complement of IsOpen.
func (r *Room) IsClosed(now time.Time) bool {
	return !r.IsOpen(now)
}

// EventShouldAuthzRoomUpdate reports whether creating an event of the
// given kind on behalf of accountLabel requires the caller to hold room
// update authorization, beyond the plain "agent must be ready" check.
//
// Grounded on original_source's room::event_should_authz_room_update:
// a locked type always requires authz; draw/draw_lock additionally
// require per-account whiteboard access when the room enforces it.
func (r *Room) EventShouldAuthzRoomUpdate(kind, accountLabel string) bool {
	if locked, ok := r.LockedTypes[kind]; ok {
		if b, ok := locked.(bool); ok && b {
			return true
		}
	}
	if kind != "draw" && kind != "draw_lock" {
		return false
	}
	if !r.ValidateWhiteboardAccess {
		return false
	}
	if allowed, ok := r.WhiteboardAccess[accountLabel]; ok {
		if b, ok := allowed.(bool); ok && b {
			return false
		}
	}
	return true
}

// PruneMapsToTrue drops every false entry from LockedTypes and
// WhiteboardAccess before a write, bounding row growth over the room's
// lifetime the same way original_source's UpdateQuery does.
func (r *Room) PruneMapsToTrue() {
	r.LockedTypes = pruneTrue(r.LockedTypes)
	r.WhiteboardAccess = pruneTrue(r.WhiteboardAccess)
}

func pruneTrue(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		if b, ok := v.(bool); ok && b {
			out[k] = true
		}
	}
	return out
}

// AgentID is a convenience alias so callers of this package don't need
// to import agentid directly just to reference the type.
type AgentID = agentid.AgentID
