package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	redisstate "github.com/foxford/event/internal/infra/state/redis"
	"github.com/foxford/event/internal/repository"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
)

// WorkerServer runs the asynq consumer for the two long background
// operations (room.adjust, edition.commit) plus the periodic stale
// session sweep, spec.md §4.G.
type WorkerServer struct {
	server *asynq.Server
	log    *logrus.Entry

	adjustService  *service.AdjustService
	editionService *service.EditionService
	roomRepo       repository.RoomRepository
	editionRepo    repository.EditionRepository
	sessionRepo    repository.AgentSessionRepository
	state          *redisstate.StateRepository
}

func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	adjustService *service.AdjustService,
	editionService *service.EditionService,
	roomRepo repository.RoomRepository,
	editionRepo repository.EditionRepository,
	sessionRepo repository.AgentSessionRepository,
	state *redisstate.StateRepository,
	logger *logrus.Logger,
) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).WithError(err).Error("task failed")
			}),
		},
	)

	return &WorkerServer{
		server:         server,
		log:            logEntry,
		adjustService:  adjustService,
		editionService: editionService,
		roomRepo:       roomRepo,
		editionRepo:    editionRepo,
		sessionRepo:    sessionRepo,
		state:          state,
	}
}

// Start runs the asynq server, blocking until it stops. Call in its
// own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	mux.HandleFunc(tasks.TypeRoomAdjust, NewRoomAdjustHandler(ws.adjustService, ws.roomRepo, ws.state).ProcessTask)
	mux.HandleFunc(tasks.TypeEditionCommit, NewEditionCommitHandler(ws.editionService, ws.editionRepo, ws.roomRepo, ws.state).ProcessTask)
	mux.HandleFunc(tasks.TypeSweepSessions, NewSweepSessionsHandler(ws.sessionRepo).ProcessTask)

	ws.log.Info("worker server starting")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("worker server stopped unexpectedly: %v", err)
		}
	}
	ws.log.Info("worker server stopped")
}

func (ws *WorkerServer) Shutdown() {
	ws.log.Info("shutting down worker server")
	ws.server.Shutdown()
}
