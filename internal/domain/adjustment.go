package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Segment is a half-open millisecond interval describing one capture
// window, e.g. [0, 45000).
type Segment struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
}

// Len returns the segment's duration in milliseconds.
func (s Segment) Len() int64 { return s.Stop - s.Start }

// Segments is a slice of Segment stored as a single JSON column.
type Segments []Segment

func (s Segments) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Segments) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain: unsupported Segments scan type %T", value)
	}
	return json.Unmarshal(raw, s)
}

// Adjustment is the per-room singleton record of a completed room.adjust
// run; its mere presence prevents a second adjust on the same room.
type Adjustment struct {
	RoomID    uuid.UUID `gorm:"type:char(36);primaryKey"`
	StartedAt time.Time `gorm:"not null"`
	Segments  Segments  `gorm:"not null"`
	Offset    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Adjustment) TableName() string { return "adjustment" }
