package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
)

// StateService implements state.read, spec.md §4.C.
type StateService struct {
	eventRepo repository.EventRepository
}

func NewStateService(eventRepo repository.EventRepository) *StateService {
	if eventRepo == nil {
		panic("EventRepository cannot be nil for StateService")
	}
	return &StateService{eventRepo: eventRepo}
}

const maxStateSets = 10

// ReadStateParams mirrors state_read's inputs.
type ReadStateParams struct {
	RoomID             uuid.UUID
	Sets               []string
	OccurredAtPivot    *int64
	OriginalOccurredAt *int64
	Direction          string
	Limit              int
}

// StateResult is one requested set's page of latest-per-label events.
type StateResult struct {
	Set      string
	Events   []domain.Event
	HasNext  bool
}

func (s *StateService) ReadState(ctx context.Context, p ReadStateParams) ([]StateResult, error) {
	if len(p.Sets) == 0 || len(p.Sets) > maxStateSets {
		return nil, apperr.New(apperr.InvalidStateSets, "sets must contain between 1 and 10 entries")
	}
	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	results := make([]StateResult, 0, len(p.Sets))
	for _, set := range p.Sets {
		queryLimit := limit
		single := len(p.Sets) == 1
		if single {
			queryLimit++
		}

		events, err := s.eventRepo.LatestPerLabel(ctx, repository.EventQuery{
			RoomID:                   p.RoomID,
			SetID:                    set,
			OccurredAtPivot:          p.OccurredAtPivot,
			OriginalOccurredAtCursor: p.OriginalOccurredAt,
			Direction:                p.Direction,
			Limit:                    queryLimit,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to read state", err)
		}

		hasNext := false
		if single && len(events) > limit {
			hasNext = true
			events = events[:limit]
		}
		results = append(results, StateResult{Set: set, Events: events, HasNext: hasNext})
	}
	return results, nil
}
