package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/foxford/event/internal/handler/http"
	wsHandler "github.com/foxford/event/internal/handler/websocket"
	"github.com/foxford/event/internal/hub"
	gormpersistence "github.com/foxford/event/internal/infra/persistence/gorm"
	"github.com/foxford/event/internal/infra/setup"
	redisstate "github.com/foxford/event/internal/infra/state/redis"
	"github.com/foxford/event/internal/middleware"
	"github.com/foxford/event/internal/service"
	"github.com/foxford/event/internal/tasks"
	"github.com/foxford/event/internal/worker"
)

// Config holds every setting loaded from the environment.
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServerPort      string
	LogLevel        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	AppEnv          string
	KeyPrefix       string
	MinSegmentMs    int64
	TrustedAccounts string
}

// LoadConfig reads Config from the environment, falling back to a
// local .env file when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBHost:          os.Getenv("DB_HOST"),
		DBPort:          os.Getenv("DB_PORT"),
		DBName:          os.Getenv("DB_NAME"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ServerPort:      os.Getenv("SERVER_PORT"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		AppEnv:          os.Getenv("APP_ENV"),
		KeyPrefix:       os.Getenv("REDIS_KEY_PREFIX"),
		TrustedAccounts: os.Getenv("TRUSTED_SERVICE_ACCOUNTS"),
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		MinSegmentMs:    10_000,
	}

	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr)

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "event:"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("invalid LOG_LEVEL %q, using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App wires every component the service needs and owns their
// lifecycle.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp constructs the fully wired application from environment
// configuration; the returned App is ready for Start.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("configuration loaded")

	log.Info("initializing infrastructure")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	log.Info("database ready")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("redis and asynq clients ready")

	log.Info("initializing repositories")
	roomRepo := gormpersistence.NewRoomRepository(db)
	eventRepo := gormpersistence.NewEventRepository(db)
	adjustmentRepo := gormpersistence.NewAdjustmentRepository(db)
	editionRepo := gormpersistence.NewEditionRepository(db)
	changeRepo := gormpersistence.NewChangeRepository(db)
	sessionRepo := gormpersistence.NewAgentSessionRepository(db)
	banRepo := gormpersistence.NewRoomBanRepository(db)
	transactor := gormpersistence.NewTransactor(db)
	stateRepo := redisstate.NewStateRepository(redisClient, cfg.KeyPrefix)

	log.Info("initializing services")
	roomService := service.NewRoomService(roomRepo)
	eventService := service.NewEventService(eventRepo, sessionRepo, redisClient, cfg.KeyPrefix)
	stateService := service.NewStateService(eventRepo)
	presenceService := service.NewPresenceService(sessionRepo, banRepo, roomRepo)
	adjustService := service.NewAdjustService(roomRepo, adjustmentRepo, transactor, cfg.MinSegmentMs)
	editionService := service.NewEditionService(editionRepo, changeRepo, roomRepo, adjustmentRepo, transactor, cfg.MinSegmentMs)

	log.Info("initializing hub")
	hubInstance := hub.NewHub(stateRepo)

	log.Info("initializing handlers")
	dispatcher := wsHandler.NewDispatcher(hubInstance, roomService, eventService, stateService, presenceService, adjustService, editionService, roomRepo, asynqClient)
	roomHandler := httpHandler.NewRoomHandler(roomService, eventService, adjustService, hubInstance, asynqClient)
	eventHandler := httpHandler.NewEventHandler(roomService, eventService, hubInstance)
	stateHandler := httpHandler.NewStateHandler(stateService)
	presenceHandler := httpHandler.NewPresenceHandler(roomService, presenceService, hubInstance)
	editionHandler := httpHandler.NewEditionHandler(editionService, asynqClient)

	trustedAccounts, err := middleware.ParseTrustedAccounts(cfg.TrustedAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TRUSTED_SERVICE_ACCOUNTS: %w", err)
	}

	log.Info("initializing worker server")
	workerServer := worker.NewWorkerServer(redisClientOpt, adjustService, editionService, roomRepo, editionRepo, sessionRepo, stateRepo, log)

	log.Info("setting up router")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	rateLimit := middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	api := router.Group("/api", middleware.Auth(cfg.JWTSecret, trustedAccounts), rateLimit)
	{
		rooms := api.Group("/rooms")
		rooms.POST("", roomHandler.CreateRoom)
		rooms.GET("/:room_id", roomHandler.ReadRoom)
		rooms.PATCH("/:room_id", roomHandler.UpdateRoom)
		rooms.POST("/:room_id/adjust", roomHandler.AdjustRoom)
		rooms.POST("/:room_id/dump_events", roomHandler.DumpEvents)
		rooms.PATCH("/:room_id/locked_types", roomHandler.SetLockedTypes)
		rooms.PATCH("/:room_id/whiteboard_access", roomHandler.SetWhiteboardAccess)
		rooms.GET("/:room_id/state", stateHandler.ReadState)
		rooms.GET("/:room_id/agents", presenceHandler.ListAgents)
		rooms.PATCH("/:room_id/agents", presenceHandler.UpdateAgent)

		events := api.Group("/events")
		events.POST("", eventHandler.CreateEvent)
		events.GET("", eventHandler.ListEvents)

		editions := api.Group("/editions")
		editions.POST("", editionHandler.CreateEdition)
		editions.GET("", editionHandler.ListEditions)
		editions.DELETE("/:edition_id", editionHandler.DeleteEdition)
		editions.POST("/:edition_id/commit", editionHandler.CommitEdition)

		changes := api.Group("/changes")
		changes.POST("", editionHandler.CreateChange)
		changes.GET("", editionHandler.ListChanges)
		changes.DELETE("/:change_id", editionHandler.DeleteChange)
	}

	router.GET("/ws", middleware.Auth(cfg.JWTSecret, trustedAccounts), rateLimit, dispatcher.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("router ready")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}

	return app, nil
}

// Start launches the worker server, the periodic session sweep, and
// the HTTP server, all in background goroutines.
func (a *App) Start() {
	a.Log.Info("starting background routines")

	go a.AsynqServer.Start()
	a.Log.Info("worker server started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("http server listening on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("http server failed: %v", err)
		}
		a.Log.Info("http server stopped")
	}()
}

// registerPeriodicTasks schedules the stale-session sweep that
// reclaims agent sessions abandoned without an orderly room.leave,
// spec.md §4.D.
func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewSweepSessionsTask(tasks.SweepSessionsPayload{})
	if err != nil {
		a.Log.Errorf("failed to build sweep sessions payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeSweepSessions, payload)

	schedule := "@every 1m"
	entryID, err := a.scheduler.Register(schedule, task, asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("could not register periodic session sweep: %v", err)
	} else {
		a.Log.Infof("periodic session sweep registered with schedule %q (entry %s)", schedule, entryID)
	}

	go func() {
		if err := a.scheduler.Run(); err != nil {
			a.Log.Errorf("asynq scheduler stopped: %v", err)
		}
	}()
}

// Shutdown gracefully drains and closes every component Start opened.
func (a *App) Shutdown() {
	a.Log.Info("shutting down application")

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("error shutting down http server: %v", err)
	} else {
		a.Log.Info("http server shut down gracefully")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("error closing asynq client: %v", err)
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("error closing redis connection: %v", err)
		}
	}

	a.Log.Info("application shutdown complete")
}

// LoggerMiddleware logs each request's method, path, status, and
// latency through the app's structured logger.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("server error")
		} else if statusCode >= 400 {
			entry.Warn("client error")
		} else {
			entry.Info("request handled")
		}
	}
}
