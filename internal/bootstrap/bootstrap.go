// Package bootstrap wires Config into a running Fiber app: storage
// connections, the 6 persistence adapters, the domain services, the
// webhook dispatch worker pool, and the HTTP handlers, in the order and
// style the teacher's NewDependencies/NewAPI used.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	apihttp "nittei/adapter/in/http"
	"nittei/adapter/out/persistence"
	"nittei/adapter/out/provider"
	"nittei/adapter/out/searchindex"
	"nittei/config"
	"nittei/core/port/out"
	"nittei/core/service/accounts"
	"nittei/core/service/booking"
	"nittei/core/service/events"
	"nittei/core/service/freebusy"
	"nittei/core/service/schedules"
	"nittei/infra/database"
	"nittei/infra/middleware"
	"nittei/internal/webhookworker"
	"nittei/pkg/cache"
	"nittei/pkg/logger"
	"nittei/pkg/metrics"
)

// Dependencies holds every constructed component NewApp needs, kept around
// so main can close connections and stop the webhook dispatcher on
// shutdown.
type Dependencies struct {
	PGXPool *pgxpool.Pool
	SQLX    *sqlx.DB
	Redis   *redis.Client
	Mongo   *mongo.Client

	Dispatcher *webhookworker.Dispatcher
}

// Close releases every connection and stops the background dispatcher.
func (d *Dependencies) Close() {
	if d.Dispatcher != nil {
		d.Dispatcher.Stop()
	}
	if d.SQLX != nil {
		_ = d.SQLX.Close()
	}
	if d.PGXPool != nil {
		d.PGXPool.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Mongo != nil {
		_ = d.Mongo.Disconnect(context.Background())
	}
}

// NewApp builds the full dependency graph and returns a ready-to-serve
// Fiber app alongside the Dependencies it must eventually Close.
func NewApp(ctx context.Context, cfg *config.Config) (*fiber.App, *Dependencies, error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{Level: logLevel, Service: "nittei-api"})

	// pgxpool backs the health check's liveness ping; sqlx (below) backs
	// every persistence adapter, mirroring the teacher's dual-connection
	// split between a pooled driver and query-mapping driver.
	pgPool, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}

	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlxDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres (sqlx): %w", err)
	}
	sqlxDB.SetMaxOpenConns(25)
	sqlxDB.SetMaxIdleConns(10)
	sqlxDB.SetConnMaxLifetime(30 * time.Minute)
	sqlxDB.SetConnMaxIdleTime(5 * time.Minute)
	metrics.RegisterPool("postgres", sqlxDB.DB)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}
	middleware.InitAuditLogger(redisClient)

	deps := &Dependencies{PGXPool: pgPool, SQLX: sqlxDB, Redis: redisClient}

	var searchIndex out.SearchIndex
	if cfg.MongoDBURL != "" {
		mongoClient, err := database.NewMongo(cfg.MongoDBURL)
		if err != nil {
			deps.Close()
			return nil, nil, fmt.Errorf("bootstrap: connect mongo: %w", err)
		}
		deps.Mongo = mongoClient
		idx := searchindex.NewEventIndex(mongoClient.Database(cfg.MongoDBName))
		if err := idx.EnsureIndexes(ctx); err != nil {
			deps.Close()
			return nil, nil, fmt.Errorf("bootstrap: ensure search indexes: %w", err)
		}
		searchIndex = idx
	}

	// Persistence adapters
	accountRepo := persistence.NewAccountAdapter(sqlxDB)
	userRepo := persistence.NewUserAdapter(sqlxDB)
	calendarRepo := persistence.NewCalendarAdapter(sqlxDB)
	eventRepo := persistence.NewEventAdapter(sqlxDB)
	scheduleRepo := persistence.NewScheduleAdapter(sqlxDB)
	serviceRepo := persistence.NewServiceAdapter(sqlxDB)

	respCache := cache.NewRedisCache(redisClient)

	// Webhook dispatch
	webhookCfg := webhookworker.Config{
		Workers:    cfg.WebhookWorkerCount,
		QueueSize:  cfg.WebhookQueueSize,
		Timeout:    cfg.WebhookTimeout(),
		MaxRetries: cfg.WebhookMaxRetries,
		RetryDelay: cfg.WebhookRetryDelay(),
	}
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	webhookQueue := webhookworker.NewQueue(webhookCfg.QueueSize, zlog)
	dispatcher := webhookworker.NewDispatcher(webhookQueue, accountRepo, webhookCfg, zlog)
	if err := dispatcher.Start(ctx); err != nil {
		deps.Close()
		return nil, nil, fmt.Errorf("bootstrap: start webhook dispatcher: %w", err)
	}
	deps.Dispatcher = dispatcher

	// External calendar provider (optional; only wired when Google OAuth
	// credentials are configured)
	var calendarProvider out.CalendarProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.freebusy"},
			Endpoint:     googleoauth.Endpoint,
		}
		tokens := provider.NewMemoryTokenStore()
		calendarProvider = provider.NewGoogleCalendarProvider(oauthCfg, tokens)
	}

	// Domain services
	accountsSvc := accounts.NewService(accountRepo, userRepo)
	eventsSvc := events.NewService(calendarRepo, eventRepo, searchIndex, webhookQueue)
	schedulesSvc := schedules.NewService(scheduleRepo)
	bookingSvc := booking.NewService(serviceRepo, scheduleRepo, eventRepo, calendarRepo, cfg.BookingMinIntervalMinutes, cfg.BookingMaxIntervalMinutes)
	freebusySvc := freebusy.NewService(eventRepo, calendarRepo, calendarProvider, respCache, cfg.FreeBusyCacheTTL())

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID,x-api-key,nittei-account",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowOrigins != "" && allowOrigins != "*",
		MaxAge:           86400,
	}))

	healthHandler := apihttp.NewHealthHandlerWithDeps(pgPool, redisClient)
	healthHandler.Register(app)

	accountAuth := middleware.AccountAuth(accountRepo)
	userAuth := middleware.UserAuth()
	rateLimit := middleware.RateLimit(respCache, middleware.RateLimitConfig{
		Limit:  cfg.RateLimitPerMinute,
		Window: time.Minute,
	})

	api := app.Group("/", rateLimit, middleware.ValidateContentType(), middleware.NoCache(), middleware.Audit())

	apihttp.NewAccountHandler(accountsSvc, cfg.AccountCreationSecret).Register(api, accountAuth, userAuth)

	userScoped := api.Group("/", accountAuth, userAuth)
	apihttp.NewCalendarHandler(eventsSvc).Register(userScoped)
	apihttp.NewEventHandler(eventsSvc).Register(userScoped)
	apihttp.NewScheduleHandler(schedulesSvc).Register(userScoped)
	apihttp.NewBookingHandler(bookingSvc).Register(userScoped)
	apihttp.NewFreeBusyHandler(freebusySvc, eventsSvc).Register(userScoped)

	logger.Info("nittei api server initialized")
	return app, deps, nil
}
