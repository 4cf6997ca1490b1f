package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "chargebook/libs/db"
	libredis "chargebook/libs/redis"

	"chargebook/internal/config"
	"chargebook/internal/events"
	httpserver "chargebook/internal/http"
	"chargebook/internal/http/handlers"
	"chargebook/internal/migrations"
	redisstore "chargebook/internal/redis"
	"chargebook/internal/repository"
	"chargebook/internal/service"
)

// App wires booking-service dependencies.
type App struct {
	server      *httpserver.Server
	reconciler  *service.NoShowReconciler
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if err := migrations.Run(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	bookingRepo := repository.NewBookingRepository(sqlDB)
	connectorRepo := repository.NewConnectorRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(sqlDB)

	holdStore := redisstore.NewHoldStore(redisClient, cfg.HoldTTL())
	stateStore := redisstore.NewStateStore(redisClient, cfg.ProjectionTTL())
	availabilityCache := redisstore.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL())

	publisher := events.NewPublisher(redisClient, logger)

	bookingService := service.NewBookingService(
		bookingRepo, connectorRepo, holdStore, stateStore, availabilityCache, publisher, logger,
	)
	availabilityService := service.NewAvailabilityService(
		bookingRepo, connectorRepo, holdStore, stateStore, availabilityCache,
		cfg.SlotDuration(), cfg.OccupiedLookahead(), logger,
	)
	vendorAdapter := service.NewVendorAdapter(
		connectorRepo, bookingRepo, sessionRepo, stateStore, availabilityCache, publisher, logger,
	)
	reconciler := service.NewNoShowReconciler(
		bookingRepo, stateStore, availabilityCache, publisher,
		cfg.NoShowInterval(), cfg.NoShowGrace(), cfg.NoShowLookback(), logger,
	)

	bookingHandlers := handlers.NewBookingHandlers(bookingService, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, logger)
	vendorHandlers := handlers.NewVendorHandlers(vendorAdapter, logger)

	routes := httpserver.Routes{
		CreateHold:          bookingHandlers.HandleCreateHold,
		ConfirmBooking:      bookingHandlers.HandleConfirmBooking,
		CancelBooking:       bookingHandlers.HandleCancelBooking,
		MyBookings:          bookingHandlers.HandleMyBookings,
		Availability:        availabilityHandler.Handle,
		VendorStatus:        vendorHandlers.HandleConnectorStatus,
		VendorStatusBatch:   vendorHandlers.HandleConnectorStatusBatch,
		VendorBookingStatus: vendorHandlers.HandleBookingNotification,
		VendorSessionStart:  vendorHandlers.HandleSessionStart,
		VendorSessionStop:   vendorHandlers.HandleSessionEnd,
		Health:              handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		reconciler:  reconciler,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the HTTP server and the no-show reconciler; both stop when the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.reconciler.Run(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
