// Package tasks defines the asynq payloads for the two long-running
// background operations the service exposes over 202-Accepted
// endpoints: room adjustment and edition commit.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/domain"
)

const (
	TypeRoomAdjust      = "room:adjust"
	TypeEditionCommit   = "edition:commit"
	TypeSweepSessions   = "sessions:sweep"
)

// RoomAdjustPayload carries room.adjust's inputs into the worker,
// spec.md §4.E.
type RoomAdjustPayload struct {
	RoomID    uuid.UUID        `json:"room_id"`
	StartedAt time.Time        `json:"started_at"`
	Segments  []domain.Segment `json:"segments"`
	OffsetMs  int64            `json:"offset_ms"`
}

func NewRoomAdjustTask(p RoomAdjustPayload) ([]byte, error) {
	return json.Marshal(p)
}

// EditionCommitPayload carries edition.commit's inputs into the
// worker, spec.md §4.F.
type EditionCommitPayload struct {
	EditionID uuid.UUID `json:"edition_id"`
	OffsetMs  int64     `json:"offset_ms"`
}

func NewEditionCommitTask(p EditionCommitPayload) ([]byte, error) {
	return json.Marshal(p)
}

// SweepSessionsPayload holds the sweep's age threshold (zero means the
// handler's five-minute default); the handler always sweeps every room's
// stale ready sessions, the same restart-time recovery original_source
// runs once at boot and this service instead runs periodically.
type SweepSessionsPayload struct {
	OlderThan time.Duration `json:"older_than_ns"`
}

func NewSweepSessionsTask(p SweepSessionsPayload) ([]byte, error) {
	return json.Marshal(p)
}
