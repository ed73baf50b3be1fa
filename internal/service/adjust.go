package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/adjust"
	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// AdjustService implements room.adjust's validation and its background
// algorithm, spec.md §4.E.
type AdjustService struct {
	roomRepo       repository.RoomRepository
	adjustmentRepo repository.AdjustmentRepository
	transactor     repository.Transactor
	minSegmentMs   int64
}

func NewAdjustService(roomRepo repository.RoomRepository, adjustmentRepo repository.AdjustmentRepository, transactor repository.Transactor, minSegmentMs int64) *AdjustService {
	if roomRepo == nil || adjustmentRepo == nil || transactor == nil {
		panic("all dependencies must be non-nil for AdjustService")
	}
	if minSegmentMs <= 0 {
		minSegmentMs = 10_000
	}
	return &AdjustService{roomRepo: roomRepo, adjustmentRepo: adjustmentRepo, transactor: transactor, minSegmentMs: minSegmentMs}
}

// AdjustRequest carries room.adjust's inputs.
type AdjustRequest struct {
	RoomID    uuid.UUID
	StartedAt time.Time
	Segments  []domain.Segment
	OffsetMs  int64
}

// Validate implements step 1 of the algorithm: room must exist, must
// not already have been adjusted, and segments must be non-empty,
// sorted, and non-overlapping once sorted.
func (s *AdjustService) Validate(ctx context.Context, req AdjustRequest) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, req.RoomID)
	if err != nil {
		return nil, mapNotFound(err, apperr.RoomNotFound, "room not found")
	}

	if _, err := s.adjustmentRepo.FindByRoomID(ctx, req.RoomID); err == nil {
		return nil, apperr.New(apperr.InvalidPayload, "room was already adjusted")
	}

	if len(req.Segments) == 0 {
		return nil, apperr.New(apperr.InvalidPayload, "segments must not be empty")
	}
	sorted := append([]domain.Segment(nil), req.Segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].Stop {
			return nil, apperr.New(apperr.InvalidPayload, "segments must be non-overlapping")
		}
	}
	return room, nil
}

// AdjustResult is the payload published to the audience topic on
// completion.
type AdjustResult struct {
	SourceRoomID   uuid.UUID
	OriginalRoomID uuid.UUID
	ModifiedRoomID uuid.UUID
	ModifiedSegments []domain.Segment
}

// Run executes the full gap-collapse algorithm inside one transaction:
// clone the source room twice (original and modified), shift and
// bulk-insert its events into each, persist the Adjustment row, and
// return the summary the caller publishes as room.adjust.
func (s *AdjustService) Run(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	logCtx := logrus.WithField("room_id", req.RoomID)

	segmentsMs := make([]adjust.Segment, len(req.Segments))
	totalSegmentsMs := int64(0)
	sorted := append([]domain.Segment(nil), req.Segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i, seg := range sorted {
		segmentsMs[i] = adjust.Segment{Start: seg.Start, Stop: seg.Stop}
		totalSegmentsMs += seg.Len()
	}

	var result AdjustResult
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		room, err := repos.Room.FindByID(ctx, req.RoomID)
		if err != nil {
			return mapNotFound(err, apperr.RoomNotFound, "room not found")
		}

		events, err := repos.Event.EventsForAdjust(ctx, req.RoomID)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to load events for adjust", err)
		}

		deltaNs := room.OpenedAt.Sub(req.StartedAt).Nanoseconds()
		segmentGapsNs := toNanoGaps(adjust.InvertSegments(segmentsMs, totalSegmentsMs, s.minSegmentMs))

		originalRoom := &domain.Room{
			ID:              uuid.New(),
			Audience:        room.Audience,
			SourceRoomID:    &room.ID,
			Tags:            room.Tags,
			OpenedAt:        req.StartedAt.Add(time.Duration(req.OffsetMs) * time.Millisecond),
			PreserveHistory: true,
		}
		originalDuration := time.Duration(totalSegmentsMs) * time.Millisecond
		closedAt := originalRoom.OpenedAt.Add(originalDuration)
		originalRoom.ClosedAt = &closedAt
		if err := repos.Room.Create(ctx, originalRoom); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create original room", err)
		}

		originalEvents := make([]domain.Event, 0, len(events))
		var cutEvents []adjust.CutEvent
		var nonCut []domain.Event
		for _, e := range events {
			shiftedNs := e.OccurredAt + deltaNs
			collapsedNs := adjust.CollapseGaps(shiftedNs, segmentGapsNs, 0)

			clone := e
			clone.ID = uuid.New()
			clone.RoomID = originalRoom.ID
			clone.OccurredAt = collapsedNs

			if cmd := clone.CutCommand(); cmd != "" {
				cutEvents = append(cutEvents, adjust.CutEvent{OccurredAt: collapsedNs, Cut: cmd})
			} else {
				nonCut = append(nonCut, clone)
			}
			originalEvents = append(originalEvents, clone)
		}

		monotonizeNonStream(originalEvents)
		if err := repos.Event.BulkInsertEvents(ctx, originalEvents); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to populate original room", err)
		}

		cutGaps, err := adjust.CutEventsToGaps(cutEvents)
		if err != nil {
			return apperr.New(apperr.InvalidPayload, "invalid stream cut sequence")
		}

		offsetNs := req.OffsetMs * adjust.NanosPerMillisecond
		modifiedEvents := make([]domain.Event, 0, len(nonCut))
		for _, e := range nonCut {
			clone := e
			clone.ID = uuid.New()
			clone.RoomID = uuid.Nil // set below once modifiedRoom exists
			clone.OccurredAt = adjust.CollapseGaps(e.OccurredAt, cutGaps, offsetNs)
			modifiedEvents = append(modifiedEvents, clone)
		}

		monotonizeNonStream(modifiedEvents)

		modifiedSegmentsMs := adjust.InvertSegments(toMilliGaps(cutGaps), totalSegmentsMs, s.minSegmentMs)
		var modifiedDurationMs int64
		for _, seg := range modifiedSegmentsMs {
			modifiedDurationMs += seg.Len()
		}

		modifiedRoom := &domain.Room{
			ID:              uuid.New(),
			Audience:        room.Audience,
			SourceRoomID:    &room.ID,
			Tags:            room.Tags,
			OpenedAt:        originalRoom.OpenedAt,
			PreserveHistory: true,
		}
		modifiedClosedAt := modifiedRoom.OpenedAt.Add(time.Duration(modifiedDurationMs) * time.Millisecond)
		modifiedRoom.ClosedAt = &modifiedClosedAt
		if err := repos.Room.Create(ctx, modifiedRoom); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create modified room", err)
		}
		for i := range modifiedEvents {
			modifiedEvents[i].RoomID = modifiedRoom.ID
		}
		if err := repos.Event.BulkInsertEvents(ctx, modifiedEvents); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to populate modified room", err)
		}

		if err := repos.Adjustment.Create(ctx, &domain.Adjustment{
			RoomID:    req.RoomID,
			StartedAt: req.StartedAt,
			Segments:  domain.Segments(sorted),
			Offset:    req.OffsetMs,
		}); err != nil {
			return mapDuplicate(err, apperr.InvalidPayload, "room was already adjusted")
		}

		result = AdjustResult{
			SourceRoomID:     req.RoomID,
			OriginalRoomID:   originalRoom.ID,
			ModifiedRoomID:   modifiedRoom.ID,
			ModifiedSegments: toDomainSegments(modifiedSegmentsMs),
		}
		return nil
	})
	if err != nil {
		logCtx.WithError(err).Error("adjust run failed")
		return nil, err
	}
	return &result, nil
}

// monotonizeNonStream applies adjust.MonotonizeNonStream to a slice of
// already-collapsed events in place, so non-stream events that landed
// on the same occurred_at after CollapseGaps get nudged apart by
// CreatedAt-ordered rank, matching clone_events's tie-break pass.
func monotonizeNonStream(events []domain.Event) {
	cloned := make([]adjust.ClonedEvent, len(events))
	for i, e := range events {
		cloned[i] = adjust.ClonedEvent{
			Kind:       e.Kind,
			OccurredAt: e.OccurredAt,
			CreatedAt:  e.CreatedAt.UnixNano(),
		}
	}
	adjust.MonotonizeNonStream(cloned)
	for i := range events {
		events[i].OccurredAt = cloned[i].OccurredAt
	}
}

func toNanoGaps(gapsMs []adjust.Segment) []adjust.Segment {
	gaps := make([]adjust.Segment, len(gapsMs))
	for i, g := range gapsMs {
		gaps[i] = adjust.Segment{Start: g.Start * adjust.NanosPerMillisecond, Stop: g.Stop * adjust.NanosPerMillisecond}
	}
	return gaps
}

func toMilliGaps(gapsNs []adjust.Segment) []adjust.Segment {
	gaps := make([]adjust.Segment, len(gapsNs))
	for i, g := range gapsNs {
		gaps[i] = adjust.Segment{Start: g.Start / adjust.NanosPerMillisecond, Stop: g.Stop / adjust.NanosPerMillisecond}
	}
	return gaps
}

func toDomainSegments(segments []adjust.Segment) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	for i, s := range segments {
		out[i] = domain.Segment{Start: s.Start, Stop: s.Stop}
	}
	return out
}
