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

// EditionService implements edition.{create,delete,commit,list} and
// change.{create,delete,list}, spec.md §4.F.
type EditionService struct {
	editionRepo repository.EditionRepository
	changeRepo  repository.ChangeRepository
	roomRepo    repository.RoomRepository
	adjustRepo  repository.AdjustmentRepository
	transactor  repository.Transactor
	minSegmentMs int64
}

func NewEditionService(editionRepo repository.EditionRepository, changeRepo repository.ChangeRepository, roomRepo repository.RoomRepository, adjustRepo repository.AdjustmentRepository, transactor repository.Transactor, minSegmentMs int64) *EditionService {
	if editionRepo == nil || changeRepo == nil || roomRepo == nil || adjustRepo == nil || transactor == nil {
		panic("all dependencies must be non-nil for EditionService")
	}
	if minSegmentMs <= 0 {
		minSegmentMs = 10_000
	}
	return &EditionService{editionRepo: editionRepo, changeRepo: changeRepo, roomRepo: roomRepo, adjustRepo: adjustRepo, transactor: transactor, minSegmentMs: minSegmentMs}
}

func (s *EditionService) CreateEdition(ctx context.Context, sourceRoomID uuid.UUID, createdBy domain.AgentID) (*domain.Edition, error) {
	if _, err := s.roomRepo.FindByID(ctx, sourceRoomID); err != nil {
		return nil, mapNotFound(err, apperr.RoomNotFound, "source room not found")
	}
	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: sourceRoomID, CreatedBy: createdBy}
	if err := s.editionRepo.Create(ctx, edition); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create edition", err)
	}
	return edition, nil
}

func (s *EditionService) DeleteEdition(ctx context.Context, id uuid.UUID) error {
	if err := s.editionRepo.Delete(ctx, id); err != nil {
		return mapNotFound(err, apperr.EditionNotFound, "edition not found")
	}
	return nil
}

func (s *EditionService) ListEditions(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Edition, error) {
	editions, err := s.editionRepo.ListBySourceRoom(ctx, sourceRoomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to list editions", err)
	}
	return editions, nil
}

func (s *EditionService) CreateChange(ctx context.Context, change *domain.Change) error {
	if err := change.Validate(); err != nil {
		return apperr.Wrap(apperr.InvalidPayload, "invalid change", err)
	}
	change.ID = uuid.New()
	if _, err := s.editionRepo.FindByID(ctx, change.EditionID); err != nil {
		return mapNotFound(err, apperr.EditionNotFound, "edition not found")
	}
	if err := s.changeRepo.Create(ctx, change); err != nil {
		return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create change", err)
	}
	return nil
}

func (s *EditionService) DeleteChange(ctx context.Context, id uuid.UUID) error {
	if err := s.changeRepo.Delete(ctx, id); err != nil {
		return mapNotFound(err, apperr.ChangeNotFound, "change not found")
	}
	return nil
}

func (s *EditionService) ListChanges(ctx context.Context, editionID uuid.UUID) ([]domain.Change, error) {
	changes, err := s.changeRepo.ListByEdition(ctx, editionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to list changes", err)
	}
	return changes, nil
}

// CommitResult is the payload published as edition.commit.
type CommitResult struct {
	SourceRoomID     uuid.UUID
	CommittedRoomID  uuid.UUID
	ModifiedSegments []domain.Segment
}

// Commit runs the edition commit engine, spec.md §4.F: build the
// event set from source-room events plus staged changes, apply the
// prior adjustment's shift with the caller's offset, and bulk-insert
// into a freshly created derived room.
func (s *EditionService) Commit(ctx context.Context, editionID uuid.UUID, offsetMs int64) (*CommitResult, error) {
	logCtx := logrus.WithField("edition_id", editionID)

	var result CommitResult
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		edition, err := repos.Edition.FindByID(ctx, editionID)
		if err != nil {
			return mapNotFound(err, apperr.EditionNotFound, "edition not found")
		}
		sourceRoom, err := repos.Room.FindByID(ctx, edition.SourceRoomID)
		if err != nil {
			return mapNotFound(err, apperr.RoomNotFound, "source room not found")
		}
		changes, err := repos.Change.ListByEdition(ctx, editionID)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to load changes", err)
		}
		sourceEvents, err := repos.Event.EventsForAdjust(ctx, sourceRoom.ID)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to load source events", err)
		}
		priorAdjustment, err := repos.Adjustment.FindByRoomID(ctx, sourceRoom.ID)
		if err != nil {
			return mapNotFound(err, apperr.InvalidPayload, "source room has no prior adjustment")
		}

		final := applyChanges(sourceEvents, changes)

		committedRoom := &domain.Room{
			ID:              uuid.New(),
			Audience:        sourceRoom.Audience,
			SourceRoomID:    &sourceRoom.ID,
			Tags:            sourceRoom.Tags,
			OpenedAt:        priorAdjustment.StartedAt.Add(time.Duration(offsetMs) * time.Millisecond),
			PreserveHistory: true,
		}

		segmentsMs := make([]adjust.Segment, len(priorAdjustment.Segments))
		var totalSegmentsMs int64
		for i, seg := range priorAdjustment.Segments {
			segmentsMs[i] = adjust.Segment{Start: seg.Start, Stop: seg.Stop}
			totalSegmentsMs += seg.Len()
		}
		gapsNs := toNanoGaps(adjust.InvertSegments(segmentsMs, totalSegmentsMs, s.minSegmentMs))
		offsetNs := offsetMs * adjust.NanosPerMillisecond

		out := make([]domain.Event, 0, len(final))
		for _, e := range final {
			clone := e
			clone.ID = uuid.New()
			clone.OccurredAt = adjust.CollapseGaps(e.OccurredAt, gapsNs, offsetNs)
			out = append(out, clone)
		}

		monotonizeNonStream(out)

		modifiedSegmentsMs := adjust.InvertSegments(segmentsMs, totalSegmentsMs, s.minSegmentMs)

		if err := repos.Room.Create(ctx, committedRoom); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create committed room", err)
		}
		for i := range out {
			out[i].RoomID = committedRoom.ID
		}
		if err := repos.Event.BulkInsertEvents(ctx, out); err != nil {
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to populate committed room", err)
		}

		result = CommitResult{
			SourceRoomID:     sourceRoom.ID,
			CommittedRoomID:  committedRoom.ID,
			ModifiedSegments: toDomainSegments(modifiedSegmentsMs),
		}
		return nil
	})
	if err != nil {
		logCtx.WithError(err).Error("edition commit failed")
		return nil, err
	}
	return &result, nil
}

// applyChanges implements step 3-4 of the commit algorithm: removals
// drop the source event, modifications apply field overrides in
// created_at order (later wins), additions append new events.
// Grounded on spec.md §4.F's determinism rule.
func applyChanges(sourceEvents []domain.Event, changes []domain.Change) []domain.Event {
	removed := make(map[uuid.UUID]bool)
	modsByEvent := make(map[uuid.UUID][]domain.Change)
	var additions []domain.Change

	sorted := append([]domain.Change(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	for _, c := range sorted {
		switch c.Kind {
		case domain.ChangeRemoval:
			removed[*c.EventID] = true
		case domain.ChangeModification:
			modsByEvent[*c.EventID] = append(modsByEvent[*c.EventID], c)
		case domain.ChangeAddition:
			additions = append(additions, c)
		}
	}

	out := make([]domain.Event, 0, len(sourceEvents)+len(additions))
	for _, e := range sourceEvents {
		if removed[e.ID] {
			continue
		}
		for _, c := range modsByEvent[e.ID] {
			applyOverride(&e, c)
		}
		out = append(out, e)
	}
	for _, c := range additions {
		out = append(out, newEventFromAddition(c))
	}
	return out
}

func applyOverride(e *domain.Event, c domain.Change) {
	if c.NewKind != nil {
		e.Kind = *c.NewKind
	}
	if c.NewSet != nil {
		e.Set = *c.NewSet
	}
	if c.NewLabel != nil {
		e.Label = c.NewLabel
	}
	if c.NewData != nil {
		e.Data = c.NewData
	}
	if c.NewOccurredAt != nil {
		e.OccurredAt = *c.NewOccurredAt
	}
	if c.NewCreatedBy != nil {
		e.CreatedBy = *c.NewCreatedBy
	}
}

func newEventFromAddition(c domain.Change) domain.Event {
	e := domain.Event{
		ID:         uuid.New(),
		Kind:       *c.NewKind,
		Data:       c.NewData,
		OccurredAt: *c.NewOccurredAt,
		CreatedBy:  *c.NewCreatedBy,
		CreatedAt:  c.CreatedAt,
		Label:      c.NewLabel,
	}
	e.OriginalOccurredAt = e.OccurredAt
	e.OriginalCreatedBy = e.CreatedBy
	if c.NewSet != nil {
		e.Set = *c.NewSet
	} else {
		e.Set = e.Kind
	}
	return e
}
