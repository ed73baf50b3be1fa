package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	redisstate "github.com/foxford/event/internal/infra/state/redis"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/retry"
)

// EventService implements event.create and event.list, spec.md §4.A/§4.B.
type EventService struct {
	eventRepo   repository.EventRepository
	sessionRepo repository.AgentSessionRepository
	redis       *redis.Client
	lockPrefix  string
}

func NewEventService(eventRepo repository.EventRepository, sessionRepo repository.AgentSessionRepository, redisClient *redis.Client, lockPrefix string) *EventService {
	if eventRepo == nil || sessionRepo == nil {
		panic("EventRepository and AgentSessionRepository cannot be nil for EventService")
	}
	return &EventService{eventRepo: eventRepo, sessionRepo: sessionRepo, redis: redisClient, lockPrefix: lockPrefix}
}

// CreateEventParams mirrors the create_event contract's inputs.
type CreateEventParams struct {
	Room           *domain.Room
	Agent          domain.AgentID
	IsTrustedAgent bool
	Kind           string
	Set            string
	Label          *string
	Attribute      *string
	Data           []byte
	BinaryData     []byte
	OccurredAt     *int64
	IsPersistent   bool
	IsClaim        bool
	Now            time.Time
}

const maxPayloadBytes = 100 * 1024

// CreateEvent runs the original-tracking protocol from spec.md §4.B
// and returns the stored (or transient) event.
func (s *EventService) CreateEvent(ctx context.Context, p CreateEventParams) (*domain.Event, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": p.Room.ID, "kind": p.Kind})

	if !p.Room.IsOpen(p.Now) {
		return nil, apperr.New(apperr.RoomClosed, "room is closed")
	}
	if len(p.Data) > 0 && len(p.BinaryData) > 0 {
		return nil, apperr.New(apperr.InvalidPayload, "exactly one of data or binary_data must be set")
	}
	if len(p.Data)+len(p.BinaryData) >= maxPayloadBytes {
		return nil, apperr.New(apperr.InvalidPayload, "payload exceeds 100 KiB")
	}

	if !p.IsTrustedAgent {
		session, err := s.sessionRepo.FindActive(ctx, p.Room.ID, p.Agent)
		if err != nil {
			return nil, mapNotFound(err, apperr.AgentNotEnteredTheRoom, "agent has not entered the room")
		}
		if session.Status != domain.SessionReady {
			return nil, apperr.New(apperr.AgentNotEnteredTheRoom, "agent is not ready in this room")
		}
	}

	set := p.Set
	if set == "" {
		set = p.Kind
	}

	occurredAt := p.Now.Sub(p.Room.OpenedAt).Nanoseconds()
	if p.OccurredAt != nil {
		occurredAt = *p.OccurredAt
	}

	event := &domain.Event{
		ID:         uuid.New(),
		RoomID:     p.Room.ID,
		Kind:       p.Kind,
		Set:        set,
		Label:      p.Label,
		Data:       p.Data,
		BinaryData: p.BinaryData,
		OccurredAt: occurredAt,
		CreatedBy:  p.Agent,
		CreatedAt:  p.Now,
		Attribute:  p.Attribute,
	}

	if !p.IsPersistent {
		event.OriginalOccurredAt = occurredAt
		event.OriginalCreatedBy = p.Agent
		return event, nil
	}

	if err := s.stampAndInsert(ctx, event, set, logCtx); err != nil {
		return nil, err
	}

	return event, nil
}

// stampAndInsert holds the per-series advisory lock while it looks up
// the series' original event and inserts the new one, per spec.md
// §4.B steps 1-5.
func (s *EventService) stampAndInsert(ctx context.Context, event *domain.Event, set string, logCtx *logrus.Entry) error {
	if event.Label == nil {
		event.OriginalOccurredAt = event.OccurredAt
		event.OriginalCreatedBy = event.CreatedBy
		if err := s.eventRepo.Create(ctx, event); err != nil {
			logCtx.WithError(err).Error("failed to create unlabeled event")
			return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create event", err)
		}
		return nil
	}

	lock := redisstate.NewOriginalLock(s.redis, s.lockPrefix, event.RoomID, set+"/"+*event.Label)
	acquireErr := retry.Do(ctx, retry.Default, func(error) bool { return true }, func() error {
		return lock.Acquire(ctx)
	})
	if acquireErr != nil {
		logCtx.WithError(acquireErr).Error("failed to acquire original-tracking lock")
		return apperr.Wrap(apperr.TransientEventCreationFailed, "failed to acquire series lock", acquireErr)
	}
	defer lock.Release(ctx)

	orig, err := s.eventRepo.FindOriginalCandidate(ctx, event.RoomID, set, *event.Label)
	switch {
	case err == nil:
		event.OriginalOccurredAt = orig.OccurredAt
		event.OriginalCreatedBy = orig.CreatedBy
		minCreatedAt := orig.CreatedAt.Add(time.Microsecond)
		if event.CreatedAt.Before(minCreatedAt) {
			event.CreatedAt = minCreatedAt
		}
	case errors.Is(err, repository.ErrNotFound):
		event.OriginalOccurredAt = event.OccurredAt
		event.OriginalCreatedBy = event.CreatedBy
	default:
		logCtx.WithError(err).Error("failed to look up original event candidate")
		return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to look up original event", err)
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		logCtx.WithError(err).Error("failed to create event")
		return apperr.Wrap(apperr.DatabaseQueryFailed, "failed to create event", err)
	}
	return nil
}

// ListEventsParams mirrors events_in_room_range's filters.
type ListEventsParams struct {
	Room      uuid.UUID
	Kind      string
	Set       string
	Label     string
	Removed   *bool
	Cursor    *int64
	Direction string
	Limit     int
}

func (s *EventService) ListEvents(ctx context.Context, p ListEventsParams) ([]domain.Event, error) {
	events, err := s.eventRepo.EventsInRoomRange(ctx, repository.EventQuery{
		RoomID:         p.Room,
		Kind:           p.Kind,
		SetID:          p.Set,
		Label:          p.Label,
		Removed:        p.Removed,
		LastOccurredAt: p.Cursor,
		Direction:      p.Direction,
		Limit:          p.Limit,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseQueryFailed, "failed to list events", err)
	}
	return events, nil
}
