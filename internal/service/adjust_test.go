package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/service"
)

type fakeAdjustmentRepository struct {
	mu     sync.Mutex
	byRoom map[uuid.UUID]domain.Adjustment
}

func newFakeAdjustmentRepository() *fakeAdjustmentRepository {
	return &fakeAdjustmentRepository{byRoom: map[uuid.UUID]domain.Adjustment{}}
}

func (f *fakeAdjustmentRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Adjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byRoom[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAdjustmentRepository) Create(ctx context.Context, adjustment *domain.Adjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byRoom[adjustment.RoomID]; ok {
		return repository.ErrDuplicateEntry
	}
	f.byRoom[adjustment.RoomID] = *adjustment
	return nil
}

// fakeTransactor runs fn directly against the fakes it wraps, with no
// real atomicity: enough to exercise the adjust/edition commit
// algorithms without a database.
type fakeTransactor struct {
	repos repository.Repos
}

func (f *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	return fn(ctx, f.repos)
}

func TestAdjustService_Validate_RejectsUnknownRoom(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: newFakeEventRepository(), Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	_, err := svc.Validate(context.Background(), service.AdjustRequest{RoomID: uuid.New()})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RoomNotFound, appErr.Kind)
}

func TestAdjustService_Validate_RejectsAlreadyAdjustedRoom(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: newFakeEventRepository(), Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: time.Now()}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	require.NoError(t, adjustmentRepo.Create(context.Background(), &domain.Adjustment{RoomID: room.ID}))

	_, err := svc.Validate(context.Background(), service.AdjustRequest{
		RoomID: room.ID, Segments: []domain.Segment{{Start: 0, Stop: 1000}},
	})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidPayload, appErr.Kind)
}

func TestAdjustService_Validate_RejectsOverlappingSegments(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: newFakeEventRepository(), Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: time.Now()}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	_, err := svc.Validate(context.Background(), service.AdjustRequest{
		RoomID: room.ID,
		Segments: []domain.Segment{
			{Start: 0, Stop: 2000},
			{Start: 1000, Stop: 3000},
		},
	})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidPayload, appErr.Kind)
}

func TestAdjustService_Validate_AcceptsSortedNonOverlappingSegments(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: newFakeEventRepository(), Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: time.Now()}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	found, err := svc.Validate(context.Background(), service.AdjustRequest{
		RoomID: room.ID,
		Segments: []domain.Segment{
			{Start: 2000, Stop: 3000},
			{Start: 0, Stop: 1000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)
}

func TestAdjustService_Run_CreatesOriginalAndModifiedRooms(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	eventRepo := newFakeEventRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: eventRepo, Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message",
		OccurredAt: 5_000 * 1_000_000, CreatedBy: agent, CreatedAt: opened.Add(5 * time.Second),
	}))

	result, err := svc.Run(context.Background(), service.AdjustRequest{
		RoomID:    room.ID,
		StartedAt: opened,
		Segments:  []domain.Segment{{Start: 0, Stop: 10_000}},
	})
	require.NoError(t, err)
	assert.Equal(t, room.ID, result.SourceRoomID)
	assert.NotEqual(t, uuid.Nil, result.OriginalRoomID)
	assert.NotEqual(t, uuid.Nil, result.ModifiedRoomID)

	_, err = adjustmentRepo.FindByRoomID(context.Background(), room.ID)
	require.NoError(t, err)

	originalEvents, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.OriginalRoomID})
	require.NoError(t, err)
	assert.Len(t, originalEvents, 1)

	modifiedEvents, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.ModifiedRoomID})
	require.NoError(t, err)
	assert.Len(t, modifiedEvents, 1)
}

func TestAdjustService_Run_RejectsSecondAdjustOfSameRoom(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	eventRepo := newFakeEventRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: eventRepo, Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	req := service.AdjustRequest{RoomID: room.ID, StartedAt: opened, Segments: []domain.Segment{{Start: 0, Stop: 10_000}}}
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), req)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidPayload, appErr.Kind)
}

func TestAdjustService_Run_CarriesOverRemovedEvents(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	eventRepo := newFakeEventRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: eventRepo, Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Removed: true,
		OccurredAt: 5_000 * 1_000_000, CreatedBy: agent, CreatedAt: opened.Add(5 * time.Second),
	}))

	result, err := svc.Run(context.Background(), service.AdjustRequest{
		RoomID:    room.ID,
		StartedAt: opened,
		Segments:  []domain.Segment{{Start: 0, Stop: 10_000}},
	})
	require.NoError(t, err)

	originalEvents, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.OriginalRoomID})
	require.NoError(t, err)
	require.Len(t, originalEvents, 1)
	assert.True(t, originalEvents[0].Removed)

	modifiedEvents, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.ModifiedRoomID})
	require.NoError(t, err)
	require.Len(t, modifiedEvents, 1)
	assert.True(t, modifiedEvents[0].Removed)
}

func TestAdjustService_Run_MonotonizesCollidingNonStreamEvents(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	eventRepo := newFakeEventRepository()
	txr := &fakeTransactor{repos: repository.Repos{Room: roomRepo, Event: eventRepo, Adjustment: adjustmentRepo}}
	svc := service.NewAdjustService(roomRepo, adjustmentRepo, txr, 0)

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	first, second := "first", "second"
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Attribute: &first,
		OccurredAt: 5_000 * 1_000_000, CreatedBy: agent, CreatedAt: opened.Add(5 * time.Second),
	}))
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Attribute: &second,
		OccurredAt: 5_000 * 1_000_000, CreatedBy: agent, CreatedAt: opened.Add(6 * time.Second),
	}))

	result, err := svc.Run(context.Background(), service.AdjustRequest{
		RoomID:    room.ID,
		StartedAt: opened,
		Segments:  []domain.Segment{{Start: 0, Stop: 10_000}},
	})
	require.NoError(t, err)

	originalEvents, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.OriginalRoomID})
	require.NoError(t, err)
	require.Len(t, originalEvents, 2)

	var firstEvent, secondEvent domain.Event
	for _, e := range originalEvents {
		switch *e.Attribute {
		case "first":
			firstEvent = e
		case "second":
			secondEvent = e
		}
	}
	assert.Equal(t, int64(5_000*1_000_000), firstEvent.OccurredAt)
	assert.Equal(t, int64(5_000*1_000_000+1), secondEvent.OccurredAt)
}
