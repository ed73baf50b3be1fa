package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Edition is a staged batch of changes against a source room, committed
// atomically by the edition commit engine (spec.md §4.F).
type Edition struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	SourceRoomID uuid.UUID `gorm:"type:char(36);not null;index"`
	CreatedBy    AgentID   `gorm:"size:191;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
}

func (Edition) TableName() string { return "edition" }

// ChangeKind is the kind of edit a Change describes.
type ChangeKind string

const (
	ChangeAddition     ChangeKind = "addition"
	ChangeModification ChangeKind = "modification"
	ChangeRemoval      ChangeKind = "removal"
)

// Change is one staged edit belonging to an Edition. Field population
// depends on Kind: addition requires the New* fields and no EventID;
// modification requires EventID plus at least one New* override;
// removal requires only EventID.
type Change struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey"`
	EditionID uuid.UUID  `gorm:"type:char(36);not null;index"`
	Kind      ChangeKind `gorm:"size:16;not null"`
	EventID   *uuid.UUID `gorm:"type:char(36);index"`

	NewKind       *string
	NewSet        *string
	NewLabel      *string
	NewData       datatypes.JSON
	NewOccurredAt *int64
	NewCreatedBy  *AgentID `gorm:"size:191"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Change) TableName() string { return "change" }

// Validate checks that the change's field population matches its Kind,
// per spec.md §3's Change invariants.
func (c *Change) Validate() error {
	switch c.Kind {
	case ChangeAddition:
		if c.EventID != nil {
			return errInvalidChange("addition must not reference an event_id")
		}
		if c.NewKind == nil || c.NewOccurredAt == nil || c.NewCreatedBy == nil {
			return errInvalidChange("addition requires kind, occurred_at and created_by")
		}
	case ChangeModification:
		if c.EventID == nil {
			return errInvalidChange("modification requires an event_id")
		}
		if c.NewKind == nil && c.NewSet == nil && c.NewLabel == nil &&
			c.NewData == nil && c.NewOccurredAt == nil && c.NewCreatedBy == nil {
			return errInvalidChange("modification requires at least one override field")
		}
	case ChangeRemoval:
		if c.EventID == nil {
			return errInvalidChange("removal requires an event_id")
		}
	default:
		return errInvalidChange("unknown change kind: " + string(c.Kind))
	}
	return nil
}

type invalidChangeError string

func (e invalidChangeError) Error() string { return string(e) }

func errInvalidChange(msg string) error { return invalidChangeError(msg) }
