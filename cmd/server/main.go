package main

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/adapters/cache"
	"delivery-batch-service/internal/adapters/distance"
	"delivery-batch-service/internal/adapters/lock"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/adapters/storage"
	"delivery-batch-service/internal/api"
	"delivery-batch-service/internal/config"
	"delivery-batch-service/internal/platform/db"
	"delivery-batch-service/internal/platform/logging"
	"delivery-batch-service/internal/platform/metrics"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/platform/socket"
	"delivery-batch-service/internal/ports"
	"delivery-batch-service/internal/services"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// stores is the persistence side of the service, picked by STORE_DRIVER.
type stores struct {
	orders        ports.OrderRepository
	batches       ports.BatchRepository
	confirmations ports.ConfirmationLog
	sqlDB         *sql.DB
	close         func()
}

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	obs.SetMetrics(m)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var (
		locker ports.BatchLocker = lock.NewKeyedMutex()
		rdb    redis.UniversalClient
	)
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %q: %w", cfg.RedisAddr, err)
		}
		locker = lock.NewRedisLocker(rdb)
		logger.Info("using redis batch locks", zap.String("addr", cfg.RedisAddr))
	}

	router, err := newRoutingProvider(cfg, rdb, st.sqlDB, logger)
	if err != nil {
		return err
	}

	var photos ports.PhotoStore = storage.NewMemoryPhotoStore()
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3PhotoStore(ctx, cfg.S3)
		if err != nil {
			return err
		}
		photos = s3Store
		logger.Info("delivery photos stored in s3", zap.String("bucket", cfg.S3.Bucket))
	}

	zipCfg, err := config.LoadZipSchedule(cfg.ZipSchedulePath)
	if err != nil {
		return err
	}
	schedule, err := services.NewZipSchedule(zipCfg.DefaultDay, zipCfg.Zones)
	if err != nil {
		return err
	}

	hub := socket.NewHub(logger)
	defer hub.Close()

	predictor := services.NewPredictor(services.PredictorConfig{
		HubZip:             cfg.Predictor.HubZip,
		BaseMarginPercent:  cfg.Predictor.BaseMarginPercent,
		DefaultPrepMinutes: cfg.Predictor.DefaultPrepMinutes,
		BaseShippingHours:  cfg.Predictor.BaseShippingHours,
	})
	optimizer := services.NewRouteOptimizer(router, services.RouteOptimizerConfig{
		FuelCostPerMile: decimal.NewFromFloat(cfg.FuelCostPerMile),
		Timeout:         cfg.RoutingTimeout,
	}, logger, m)
	manifests, err := services.NewManifestGenerator(services.ManifestConfig{
		DepartureTime:         cfg.Manifest.DepartureTime,
		ServiceMinutesPerStop: cfg.Manifest.ServiceMinutesPerStop,
		DefaultLegMinutes:     cfg.Manifest.DefaultLegMinutes,
	})
	if err != nil {
		return err
	}

	lifecycle := services.NewLifecycleManager(services.LifecycleDeps{
		Batches:       st.batches,
		Confirmations: st.confirmations,
		Locker:        locker,
		Events:        hub,
		Metrics:       m,
		Log:           logger,
	})
	batches := services.NewBatchService(services.BatchServiceDeps{
		Orders:     st.orders,
		Batches:    st.batches,
		Locker:     locker,
		Aggregator: services.NewAggregator(schedule, predictor, logger),
		Optimizer:  optimizer,
		Events:     hub,
		Log:        logger,
	})

	if _, err := batches.Refresh(ctx); err != nil {
		logger.Error("initial batch refresh failed", zap.Error(err))
	}
	go batches.RunPeriodicRefresh(ctx, cfg.RefreshInterval)

	handler := api.NewRouter(api.Deps{
		Batches:   batches,
		Lifecycle: lifecycle,
		Predictor: predictor,
		Manifests: manifests,
		Photos:    photos,
		Hub:       hub,
		Metrics:   m,
		Log:       logger,
	})

	// Timeouts are tuned for cold-cache route optimization (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("routing", router.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		if err := repositories.InitSchema(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return stores{}, err
		}
		return stores{
			orders:        repositories.NewPostgresOrderRepository(sqlDB),
			batches:       repositories.NewPostgresBatchRepository(sqlDB),
			confirmations: repositories.NewPostgresConfirmationLog(sqlDB),
			sqlDB:         sqlDB,
			close:         func() { sqlDB.Close() },
		}, nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return stores{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, fmt.Errorf("ping mongo: %w", err)
		}
		database := client.Database(cfg.MongoDB)
		if err := repositories.EnsureMongoIndexes(connectCtx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		return stores{
			orders:        repositories.NewMongoOrderRepository(database),
			batches:       repositories.NewMongoBatchRepository(database),
			confirmations: repositories.NewMongoConfirmationLog(database),
			close:         func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		orders, err := repositories.LoadOrdersJSON(cfg.SeedPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return stores{}, err
			}
			logger.Warn("seed file not found, starting with no orders", zap.String("path", cfg.SeedPath))
		}
		return stores{
			orders:        repositories.NewMemoryOrderRepository(orders),
			batches:       repositories.NewMemoryBatchRepository(),
			confirmations: repositories.NewMemoryConfirmationLog(),
			close:         func() {},
		}, nil
	}
}

// newRoutingProvider uses OpenRouteService when a key is configured and the
// postal code heuristic otherwise. ORS lookups are cached in Redis when
// available, then in Postgres.
func newRoutingProvider(cfg config.Config, rdb redis.UniversalClient, sqlDB *sql.DB, logger *zap.Logger) (ports.RoutingProvider, error) {
	if strings.TrimSpace(cfg.ORSAPIKey) == "" {
		logger.Info("ORS_API_KEY not set, using postal code routing")
		return &services.PostalCodeRoutingProvider{HubZip: cfg.Predictor.HubZip}, nil
	}

	opts := distance.ORSOptions{
		APIKey:  cfg.ORSAPIKey,
		Timeout: cfg.RoutingTimeout,
		Log:     logger,
	}
	switch {
	case rdb != nil:
		opts.DistanceCache = cache.NewRedisDistanceCache(rdb, "delivery:")
		opts.GeocodeCache = cache.NewRedisGeocodeCache(rdb, "delivery:")
	case sqlDB != nil:
		opts.DistanceCache = cache.NewPostgresDistanceCache(sqlDB)
		opts.GeocodeCache = cache.NewPostgresGeocodeCache(sqlDB)
	}

	ors, err := distance.NewORSDistanceProvider(opts)
	if err != nil {
		return nil, err
	}
	return &services.MatrixRoutingProvider{
		Hub:         cfg.HubAddress,
		Distances:   ors,
		Geocoder:    ors,
		ReturnToHub: cfg.ReturnToHub,
		Log:         logger,
	}, nil
}
