package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxford/event/internal/domain"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
	"github.com/foxford/event/internal/worker"
)

type fakeRoomRepository struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]domain.Room
}

func newFakeRoomRepository() *fakeRoomRepository {
	return &fakeRoomRepository{rooms: map[uuid.UUID]domain.Room{}}
}

func (f *fakeRoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = *room
	return nil
}

func (f *fakeRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = *room
	return nil
}

func (f *fakeRoomRepository) FindBySourceRoomID(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Room, error) {
	return nil, nil
}

func (f *fakeRoomRepository) DetachSourceRoom(ctx context.Context, sourceRoomID uuid.UUID) error {
	return nil
}

type fakeAdjustmentRepository struct{}

func (fakeAdjustmentRepository) FindByRoomID(ctx context.Context, roomID uuid.UUID) (*domain.Adjustment, error) {
	return nil, repository.ErrNotFound
}
func (fakeAdjustmentRepository) Create(ctx context.Context, adjustment *domain.Adjustment) error {
	return nil
}

type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	return fn(ctx, repository.Repos{})
}

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
func (f *fakeEditionRepository) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeEditionRepository) ListBySourceRoom(ctx context.Context, sourceRoomID uuid.UUID) ([]domain.Edition, error) {
	return nil, nil
}

type fakeChangeRepository struct{}

func (fakeChangeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Change, error) {
	return nil, repository.ErrNotFound
}
func (fakeChangeRepository) Create(ctx context.Context, change *domain.Change) error { return nil }
func (fakeChangeRepository) Delete(ctx context.Context, id uuid.UUID) error          { return nil }
func (fakeChangeRepository) ListByEdition(ctx context.Context, editionID uuid.UUID) ([]domain.Change, error) {
	return nil, nil
}

type fakeAgentSessionRepository struct {
	deleteStaleReadyN   int64
	deleteStaleReadyErr error
	lastCutoff          int64
}

func (f *fakeAgentSessionRepository) FindActive(ctx context.Context, roomID uuid.UUID, agent domain.AgentID) (*domain.AgentSession, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeAgentSessionRepository) Create(ctx context.Context, session *domain.AgentSession) error {
	return nil
}
func (f *fakeAgentSessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus domain.SessionStatus) error {
	return nil
}
func (f *fakeAgentSessionRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, status domain.SessionStatus) ([]domain.AgentSession, error) {
	return nil, nil
}
func (f *fakeAgentSessionRepository) DeleteStaleReady(ctx context.Context, cutoffUnixNano int64) (int64, error) {
	f.lastCutoff = cutoffUnixNano
	return f.deleteStaleReadyN, f.deleteStaleReadyErr
}

func mustNewTask(t *testing.T, taskType string, payload []byte) *asynq.Task {
	t.Helper()
	return asynq.NewTask(taskType, payload)
}

func TestRoomAdjustHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjust := service.NewAdjustService(roomRepo, fakeAdjustmentRepository{}, fakeTransactor{}, 0)
	h := worker.NewRoomAdjustHandler(adjust, roomRepo, nil)

	err := h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeRoomAdjust, []byte("not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRoomAdjustHandler_UnknownRoomFailsWithoutPublishing(t *testing.T) {
	roomRepo := newFakeRoomRepository()
	adjust := service.NewAdjustService(roomRepo, fakeAdjustmentRepository{}, fakeTransactor{}, 0)
	h := worker.NewRoomAdjustHandler(adjust, roomRepo, nil)

	payload, err := tasks.NewRoomAdjustTask(tasks.RoomAdjustPayload{RoomID: uuid.New()})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeRoomAdjust, payload))
	require.Error(t, err)
}

func TestEditionCommitHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	editionRepo := newFakeEditionRepository()
	roomRepo := newFakeRoomRepository()
	edition := service.NewEditionService(editionRepo, fakeChangeRepository{}, roomRepo, fakeAdjustmentRepository{}, fakeTransactor{}, 0)
	h := worker.NewEditionCommitHandler(edition, editionRepo, roomRepo, nil)

	err := h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeEditionCommit, []byte("not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEditionCommitHandler_UnknownEditionFails(t *testing.T) {
	editionRepo := newFakeEditionRepository()
	roomRepo := newFakeRoomRepository()
	edition := service.NewEditionService(editionRepo, fakeChangeRepository{}, roomRepo, fakeAdjustmentRepository{}, fakeTransactor{}, 0)
	h := worker.NewEditionCommitHandler(edition, editionRepo, roomRepo, nil)

	payload, err := tasks.NewEditionCommitTask(tasks.EditionCommitPayload{EditionID: uuid.New()})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeEditionCommit, payload))
	require.Error(t, err)
}

func TestEditionCommitHandler_SourceRoomLookupFails(t *testing.T) {
	editionRepo := newFakeEditionRepository()
	roomRepo := newFakeRoomRepository()
	editionSvc := service.NewEditionService(editionRepo, fakeChangeRepository{}, roomRepo, fakeAdjustmentRepository{}, fakeTransactor{}, 0)
	h := worker.NewEditionCommitHandler(editionSvc, editionRepo, roomRepo, nil)

	edition := &domain.Edition{ID: uuid.New(), SourceRoomID: uuid.New()}
	require.NoError(t, editionRepo.Create(context.Background(), edition))

	payload, err := tasks.NewEditionCommitTask(tasks.EditionCommitPayload{EditionID: edition.ID})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeEditionCommit, payload))
	require.Error(t, err)
}

func TestSweepSessionsHandler_DefaultsOlderThan(t *testing.T) {
	sessionRepo := &fakeAgentSessionRepository{deleteStaleReadyN: 3}
	h := worker.NewSweepSessionsHandler(sessionRepo)

	before := time.Now().Add(-5 * time.Minute).UnixNano()
	payload, err := tasks.NewSweepSessionsTask(tasks.SweepSessionsPayload{})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeSweepSessions, payload))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sessionRepo.lastCutoff, before)
}

func TestSweepSessionsHandler_PropagatesRepositoryError(t *testing.T) {
	sessionRepo := &fakeAgentSessionRepository{deleteStaleReadyErr: assertError("boom")}
	h := worker.NewSweepSessionsHandler(sessionRepo)

	payload, err := tasks.NewSweepSessionsTask(tasks.SweepSessionsPayload{OlderThan: time.Minute})
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), mustNewTask(t, tasks.TypeSweepSessions, payload))
	require.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
