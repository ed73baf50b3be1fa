package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event is one append-only row in a room's event log. Exactly one of
// Data / BinaryData is populated. Updates never happen after insert;
// "edits" are new rows sharing (RoomID, Set, Label).
type Event struct {
	ID                 uuid.UUID `gorm:"type:char(36);primaryKey"`
	RoomID             uuid.UUID `gorm:"type:char(36);not null;index:idx_event_state,priority:1"`
	Kind               string    `gorm:"size:191;not null;index"`
	Set                string    `gorm:"size:191;not null;index:idx_event_state,priority:2"`
	Label              *string   `gorm:"size:191;index:idx_event_state,priority:3"`
	Data               datatypes.JSON
	BinaryData         []byte
	OccurredAt         int64     `gorm:"not null;index:idx_event_state,priority:5"`
	CreatedBy          AgentID   `gorm:"size:191;not null"`
	CreatedAt          time.Time `gorm:"not null"`
	OriginalOccurredAt int64     `gorm:"not null;index:idx_event_state,priority:4"`
	OriginalCreatedBy  AgentID   `gorm:"size:191;not null"`
	DeletedAt          *time.Time `gorm:"index"`
	Priority           *int
	Removed            bool    `gorm:"not null;default:false"`
	Attribute          *string `gorm:"size:191;index"`
	EntityType         *string `gorm:"size:191"`
	EntityEventID      *uuid.UUID `gorm:"type:char(36)"`
	SourceCommandID    *uuid.UUID `gorm:"type:char(36)"`
}

func (Event) TableName() string { return "event" }

// EffectiveSet returns Set, defaulting to Kind when the caller left it
// unset, matching the create_event contract in spec.md §4.B.
func (e *Event) EffectiveSet() string {
	if e.Set != "" {
		return e.Set
	}
	return e.Kind
}

// CutCommand extracts the "cut" field from a stream event's data
// payload ("start"/"stop"), or "" if absent/not a stream event.
func (e *Event) CutCommand() string {
	if e.Kind != "stream" || len(e.Data) == 0 {
		return ""
	}
	var payload struct {
		Cut string `json:"cut"`
	}
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return ""
	}
	return payload.Cut
}
