package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/dto"
	redisstate "github.com/foxford/event/internal/infra/state/redis"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
)

func publishBroadcast(ctx context.Context, state *redisstate.StateRepository, audience, label string, payload interface{}) error {
	buf, err := json.Marshal(dto.BroadcastEvent{Label: label, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := state.PublishAudienceEvent(ctx, audience, buf); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// RoomAdjustHandler runs the gap-collapse algorithm and publishes its
// outcome on the source room's audience topic, spec.md §4.E.
type RoomAdjustHandler struct {
	adjust   *service.AdjustService
	roomRepo repository.RoomRepository
	state    *redisstate.StateRepository
}

func NewRoomAdjustHandler(adjust *service.AdjustService, roomRepo repository.RoomRepository, state *redisstate.StateRepository) *RoomAdjustHandler {
	return &RoomAdjustHandler{adjust: adjust, roomRepo: roomRepo, state: state}
}

func (h *RoomAdjustHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.RoomAdjustPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("failed to unmarshal room adjust payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	room, err := h.roomRepo.FindByID(ctx, payload.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("room adjust: source room lookup failed, cannot notify audience")
		return fmt.Errorf("source room lookup failed: %w", err)
	}

	result, err := h.adjust.Run(ctx, service.AdjustRequest{
		RoomID:    payload.RoomID,
		StartedAt: payload.StartedAt,
		Segments:  payload.Segments,
		OffsetMs:  payload.OffsetMs,
	})
	if err != nil {
		logCtx.WithError(err).Error("room adjust task failed")
		notification := dto.AdjustNotification{Status: "failure", SourceRoomID: payload.RoomID}
		if pubErr := publishBroadcast(ctx, h.state, room.Audience, "room.adjust", notification); pubErr != nil {
			logCtx.WithError(pubErr).Error("failed to publish room.adjust failure notification")
		}
		return err
	}

	notification := dto.AdjustNotification{
		Status:           "success",
		SourceRoomID:     result.SourceRoomID,
		OriginalRoomID:   result.OriginalRoomID,
		ModifiedRoomID:   result.ModifiedRoomID,
		ModifiedSegments: result.ModifiedSegments,
	}
	return publishBroadcast(ctx, h.state, room.Audience, "room.adjust", notification)
}

// EditionCommitHandler runs the edition commit engine and publishes
// its outcome, spec.md §4.F.
type EditionCommitHandler struct {
	edition     *service.EditionService
	editionRepo repository.EditionRepository
	roomRepo    repository.RoomRepository
	state       *redisstate.StateRepository
}

func NewEditionCommitHandler(edition *service.EditionService, editionRepo repository.EditionRepository, roomRepo repository.RoomRepository, state *redisstate.StateRepository) *EditionCommitHandler {
	return &EditionCommitHandler{edition: edition, editionRepo: editionRepo, roomRepo: roomRepo, state: state}
}

func (h *EditionCommitHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.EditionCommitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("failed to unmarshal edition commit payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("edition_id", payload.EditionID)

	edition, err := h.editionRepo.FindByID(ctx, payload.EditionID)
	if err != nil {
		logCtx.WithError(err).Error("edition commit: edition lookup failed, cannot notify audience")
		return fmt.Errorf("edition lookup failed: %w", err)
	}
	room, err := h.roomRepo.FindByID(ctx, edition.SourceRoomID)
	if err != nil {
		logCtx.WithError(err).Error("edition commit: source room lookup failed, cannot notify audience")
		return fmt.Errorf("source room lookup failed: %w", err)
	}

	result, err := h.edition.Commit(ctx, payload.EditionID, payload.OffsetMs)
	if err != nil {
		logCtx.WithError(err).Error("edition commit task failed")
		notification := dto.CommitNotification{Status: "failure", SourceRoomID: edition.SourceRoomID}
		if pubErr := publishBroadcast(ctx, h.state, room.Audience, "edition.commit", notification); pubErr != nil {
			logCtx.WithError(pubErr).Error("failed to publish edition.commit failure notification")
		}
		return err
	}

	notification := dto.CommitNotification{
		Status:           "success",
		SourceRoomID:     result.SourceRoomID,
		CommittedRoomID:  result.CommittedRoomID,
		ModifiedSegments: result.ModifiedSegments,
	}
	return publishBroadcast(ctx, h.state, room.Audience, "edition.commit", notification)
}

// SweepSessionsHandler closes out ready sessions whose agent has gone
// silent past OlderThan, the periodic analogue of original_source's
// restart-time sweep, run here on a schedule instead of once at boot
// since this service runs as a long-lived, horizontally scaled fleet.
type SweepSessionsHandler struct {
	sessionRepo repository.AgentSessionRepository
}

func NewSweepSessionsHandler(sessionRepo repository.AgentSessionRepository) *SweepSessionsHandler {
	return &SweepSessionsHandler{sessionRepo: sessionRepo}
}

func (h *SweepSessionsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.SweepSessionsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 5 * time.Minute
	}
	cutoff := time.Now().Add(-payload.OlderThan).UnixNano()

	n, err := h.sessionRepo.DeleteStaleReady(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep stale sessions: %w", err)
	}
	logrus.WithField("closed", n).Info("swept stale ready sessions")
	return nil
}
