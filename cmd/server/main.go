package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/device-license-service/internal/config"
	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/handler"
	"github.com/makkenzo/device-license-service/internal/lock"
	"github.com/makkenzo/device-license-service/internal/service"
	"github.com/makkenzo/device-license-service/internal/storage/memstorage"
	"github.com/makkenzo/device-license-service/internal/storage/postgres"
	redisstore "github.com/makkenzo/device-license-service/internal/storage/redis"
	"github.com/makkenzo/device-license-service/internal/worker"
	"github.com/makkenzo/device-license-service/pkg/licensekey"
	"github.com/makkenzo/device-license-service/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	location, err := cfg.License.Location()
	if err != nil {
		sugarLogger.Fatalf("Invalid license timezone: %v", err)
	}

	var (
		dbPool   *pgxpool.Pool
		ledger   license.Ledger
		registry device.Registry
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		dbPool, err = postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbPool.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(appCtx, dbPool, appLogger); err != nil {
				sugarLogger.Fatalf("Failed to apply migrations: %v", err)
			}
		}
		ledger = postgres.NewLicenseLedger(dbPool, appLogger)
		registry = postgres.NewDeviceRegistry(dbPool, appLogger)
	case config.StorageDriverMemory:
		sugarLogger.Warn("Using in-memory storage, license bindings are lost on restart")
		ledger = memstorage.NewLicenseLedger()
		registry = memstorage.NewDeviceRegistry()
	}

	var redisClient *redis.Client
	if cfg.Lock.Driver == config.LockDriverRedis || cfg.Worker.Enabled {
		redisClient, err = redisstore.NewRedisClient(appCtx, &cfg.Redis, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	var locker lock.Locker
	if cfg.Lock.Driver == config.LockDriverRedis {
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval, appLogger)
	} else {
		locker = lock.NewKeyedMutex()
	}

	users := memstorage.NewUserRepository()
	if cfg.Auth.AdminPasswordHash != "" {
		users.AddAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash)
	} else {
		sugarLogger.Warn("auth.adminPasswordHash is not set, admin endpoints are unreachable")
	}

	codec := licensekey.NewCodec(cfg.License.Salt, location)

	activationService := service.NewActivationService(ledger, registry, locker, codec, service.ActivationOptions{
		VerifyChecksum:        cfg.License.VerifyChecksum,
		DefaultValidityMonths: cfg.License.DefaultValidityMonths,
	}, appLogger)
	banService := service.NewBanService(ledger, registry, locker, appLogger)
	issuanceService := service.NewIssuanceService(codec, cfg.License.Tiers, ledger, locker, nil, appLogger)
	queryService := service.NewLicenseQueryService(ledger, registry, nil, appLogger)
	authService := service.NewAuthService(users, &cfg.Auth, appLogger)

	router := handler.NewRouter(handler.RouterDeps{
		License:      handler.NewLicenseHandler(activationService, location, appLogger),
		Admin:        handler.NewAdminHandler(issuanceService, banService, queryService, location, appLogger),
		Auth:         handler.NewAuthHandler(authService, appLogger),
		Health:       handler.NewHealthHandler(dbPool, redisClient, appLogger),
		AuthService:  authService,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       appLogger,
	})

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if cfg.Worker.Enabled {
		workerErrs, shutdownWorkers := worker.RunWorkers(cfg, banService, appLogger)
		g.Go(func() error {
			select {
			case err := <-workerErrs:
				shutdownWorkers(context.Background())
				return fmt.Errorf("asynq worker error: %w", err)
			case <-groupCtx.Done():
				shutdownWorkers(context.Background())
				return nil
			}
		})
	}

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		appLogger.Error("Application shutdown finished with unexpected error", zap.Error(waitErr))
	} else {
		sugarLogger.Info("Application shutdown successfully.")
	}
}
