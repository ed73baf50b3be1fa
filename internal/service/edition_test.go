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

type fakeEditionRepository struct {
	mu       sync.Mutex
	editions map[uuid.UUID]domain.Edition
}

func newFakeEditionRepository() *fakeEditionRepository {
	return &fakeEditionRepository{editions: map[uuid.UUID]domain.Edition{}}
}

func (f *fakeEditionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Edition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.editions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f *fakeEditionRepository) Create(ctx context.Context, edition *domain.Edition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editions[edition.ID] = *edition
	return nil
}

func (f *fakeEditionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.editions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.editions, id)
	return nil
}

func (f *fakeEditionRepository) ListBySourceRoom(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Edition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Edition
	for _, e := range f.editions {
		if e.SourceRoomID == sourceRoomID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeChangeRepository struct {
	mu      sync.Mutex
	changes map[uuid.UUID]domain.Change
}

func newFakeChangeRepository() *fakeChangeRepository {
	return &fakeChangeRepository{changes: map[uuid.UUID]domain.Change{}}
}

func (f *fakeChangeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.changes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeChangeRepository) Create(ctx context.Context, change *domain.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[change.ID] = *change
	return nil
}

func (f *fakeChangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.changes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.changes, id)
	return nil
}

func (f *fakeChangeRepository) ListByEdition(ctx context.Context, editionID uuid.UUID) ([]domain.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Change
	for _, c := range f.changes {
		if c.EditionID == editionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func newEditionServiceHarness() (*service.EditionService, *fakeRoomRepository, *fakeEventRepository, *fakeAdjustmentRepository, *fakeEditionRepository, *fakeChangeRepository) {
	roomRepo := newFakeRoomRepository()
	eventRepo := newFakeEventRepository()
	adjustmentRepo := newFakeAdjustmentRepository()
	editionRepo := newFakeEditionRepository()
	changeRepo := newFakeChangeRepository()
	txr := &fakeTransactor{repos: repository.Repos{
		Room: roomRepo, Event: eventRepo, Adjustment: adjustmentRepo, Edition: editionRepo, Change: changeRepo,
	}}
	svc := service.NewEditionService(editionRepo, changeRepo, roomRepo, adjustmentRepo, txr, 0)
	return svc, roomRepo, eventRepo, adjustmentRepo, editionRepo, changeRepo
}

func TestEditionService_CreateEdition_RejectsUnknownRoom(t *testing.T) {
	svc, _, _, _, _, _ := newEditionServiceHarness()
	_, err := svc.CreateEdition(context.Background(), uuid.New(), mustParseAgent(t, "web.teacher-1.example.org"))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RoomNotFound, appErr.Kind)
}

func TestEditionService_CreateAndListEditions(t *testing.T) {
	svc, roomRepo, _, _, _, _ := newEditionServiceHarness()
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: time.Now()}
	require.NoError(t, roomRepo.Create(context.Background(), room))

	edition, err := svc.CreateEdition(context.Background(), room.ID, mustParseAgent(t, "web.teacher-1.example.org"))
	require.NoError(t, err)

	editions, err := svc.ListEditions(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, editions, 1)
	assert.Equal(t, edition.ID, editions[0].ID)
}

func TestEditionService_DeleteEdition_NotFound(t *testing.T) {
	svc, _, _, _, _, _ := newEditionServiceHarness()
	err := svc.DeleteEdition(context.Background(), uuid.New())
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.EditionNotFound, appErr.Kind)
}

func TestEditionService_CreateChange_RejectsInvalidChange(t *testing.T) {
	svc, _, _, _, editionRepo, _ := newEditionServiceHarness()
	require.NoError(t, editionRepo.Create(context.Background(), &domain.Edition{ID: uuid.New()}))

	err := svc.CreateChange(context.Background(), &domain.Change{EditionID: uuid.New(), Kind: domain.ChangeRemoval})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidPayload, appErr.Kind)
}

func TestEditionService_CreateChange_RejectsUnknownEdition(t *testing.T) {
	svc, _, _, _, _, _ := newEditionServiceHarness()
	eventID := uuid.New()
	err := svc.CreateChange(context.Background(), &domain.Change{EditionID: uuid.New(), Kind: domain.ChangeRemoval, EventID: &eventID})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.EditionNotFound, appErr.Kind)
}

func TestEditionService_CreateListDeleteChange(t *testing.T) {
	svc, _, _, _, editionRepo, _ := newEditionServiceHarness()
	edition := &domain.Edition{ID: uuid.New()}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	eventID := uuid.New()
	change := &domain.Change{EditionID: edition.ID, Kind: domain.ChangeRemoval, EventID: &eventID}
	require.NoError(t, svc.CreateChange(context.Background(), change))

	changes, err := svc.ListChanges(context.Background(), edition.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	require.NoError(t, svc.DeleteChange(context.Background(), changes[0].ID))

	changes, err = svc.ListChanges(context.Background(), edition.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestEditionService_Commit_RejectsRoomWithoutPriorAdjustment(t *testing.T) {
	svc, roomRepo, _, _, editionRepo, _ := newEditionServiceHarness()
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: time.Now()}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: room.ID}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	_, err := svc.Commit(context.Background(), edition.ID, 0)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidPayload, appErr.Kind)
}

func TestEditionService_Commit_AppliesRemovalAndAddition(t *testing.T) {
	svc, roomRepo, eventRepo, adjustmentRepo, editionRepo, changeRepo := newEditionServiceHarness()

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	require.NoError(t, adjustmentRepo.Create(context.Background(), &domain.Adjustment{
		RoomID: room.ID, StartedAt: opened, Segments: domain.Segments{{Start: 0, Stop: 60_000}},
	}))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	keptEvent := &domain.Event{ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", OccurredAt: 1000, CreatedBy: agent, CreatedAt: opened}
	removedEvent := &domain.Event{ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", OccurredAt: 2000, CreatedBy: agent, CreatedAt: opened}
	require.NoError(t, eventRepo.Create(context.Background(), keptEvent))
	require.NoError(t, eventRepo.Create(context.Background(), removedEvent))

	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: room.ID, CreatedBy: agent}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	removalID := removedEvent.ID
	require.NoError(t, changeRepo.Create(context.Background(), &domain.Change{
		ID: uuid.New(), EditionID: edition.ID, Kind: domain.ChangeRemoval, EventID: &removalID, CreatedAt: opened.Add(time.Second),
	}))
	newKind := "reaction"
	newOccurredAt := int64(3000)
	require.NoError(t, changeRepo.Create(context.Background(), &domain.Change{
		ID: uuid.New(), EditionID: edition.ID, Kind: domain.ChangeAddition,
		NewKind: &newKind, NewOccurredAt: &newOccurredAt, NewCreatedBy: &agent, CreatedAt: opened.Add(2 * time.Second),
	}))

	result, err := svc.Commit(context.Background(), edition.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, room.ID, result.SourceRoomID)

	committed, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.CommittedRoomID})
	require.NoError(t, err)
	require.Len(t, committed, 2)

	var kinds []string
	for _, e := range committed {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "message")
	assert.Contains(t, kinds, "reaction")
}

func TestEditionService_Commit_CarriesOverRemovedEvent(t *testing.T) {
	svc, roomRepo, eventRepo, adjustmentRepo, editionRepo, _ := newEditionServiceHarness()

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	require.NoError(t, adjustmentRepo.Create(context.Background(), &domain.Adjustment{
		RoomID: room.ID, StartedAt: opened, Segments: domain.Segments{{Start: 0, Stop: 60_000}},
	}))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Removed: true,
		OccurredAt: 1000, CreatedBy: agent, CreatedAt: opened,
	}))

	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: room.ID, CreatedBy: agent}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	result, err := svc.Commit(context.Background(), edition.ID, 0)
	require.NoError(t, err)

	committed, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.CommittedRoomID})
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.True(t, committed[0].Removed)
}

func TestEditionService_Commit_MonotonizesCollidingNonStreamEvents(t *testing.T) {
	svc, roomRepo, eventRepo, adjustmentRepo, editionRepo, _ := newEditionServiceHarness()

	opened := time.Now().Add(-time.Hour)
	room := &domain.Room{ID: uuid.New(), Audience: "example.org", OpenedAt: opened}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	require.NoError(t, adjustmentRepo.Create(context.Background(), &domain.Adjustment{
		RoomID: room.ID, StartedAt: opened, Segments: domain.Segments{{Start: 0, Stop: 60_000}},
	}))

	agent := mustParseAgent(t, "web.teacher-1.example.org")
	first, second := "first", "second"
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Attribute: &first,
		OccurredAt: 3000, CreatedBy: agent, CreatedAt: opened.Add(time.Second),
	}))
	require.NoError(t, eventRepo.Create(context.Background(), &domain.Event{
		ID: uuid.New(), RoomID: room.ID, Kind: "message", Set: "message", Attribute: &second,
		OccurredAt: 3000, CreatedBy: agent, CreatedAt: opened.Add(2 * time.Second),
	}))

	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: room.ID, CreatedBy: agent}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	result, err := svc.Commit(context.Background(), edition.ID, 0)
	require.NoError(t, err)

	committed, err := eventRepo.EventsInRoomRange(context.Background(), repository.EventQuery{RoomID: result.CommittedRoomID})
	require.NoError(t, err)
	require.Len(t, committed, 2)

	var firstEvent, secondEvent domain.Event
	for _, e := range committed {
		switch *e.Attribute {
		case "first":
			firstEvent = e
		case "second":
			secondEvent = e
		}
	}
	assert.Equal(t, int64(3000), firstEvent.OccurredAt)
	assert.Equal(t, int64(3001), secondEvent.OccurredAt)
}
