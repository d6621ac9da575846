package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/interaction"
	"github.com/Ramsey-B/clover/internal/repositories/mailthread"
	"github.com/Ramsey-B/clover/internal/repositories/merchantaggregate"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/ledger"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/reconciler"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/registry"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/server"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Init(cfg.AppName, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Tracer shutdown failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	store, err := recordstore.NewHTTPStore(recordstore.HTTPConfig{
		BaseURL: cfg.RecordStoreBaseURL,
		Token:   cfg.RecordStoreToken,
		Timeout: cfg.RecordStoreTimeout,
	}, logger)
	if err != nil {
		return err
	}

	reg, err := registry.New(logger, store, registry.Config{
		CollectionID: cfg.MerchantsCollectionID,
		NameField:    cfg.MerchantNameField,
		UUIDField:    cfg.MerchantUUIDField,
		PageSize:     cfg.RegistryPageSize,
	})
	if err != nil {
		return err
	}

	res, err := resolver.New(logger, store, reg, resolver.Config{
		ProfileCollectionID: cfg.ProfilesCollectionID,
		PhoneField:          cfg.ProfilePhoneField,
		EmailField:          cfg.ProfileEmailField,
		NameField:           cfg.ProfileNameField,
		UUIDField:           cfg.MerchantUUIDField,
	})
	if err != nil {
		return err
	}

	var (
		db          database.DB
		redisClient *redis.Client
		consumer    *kafka.Consumer
		srv         *server.Server
		checker     *health.Checker
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&startup.FuncDependency{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			db, err = database.Connect(database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			instance, ok := db.(*database.DatabaseInstance)
			if !ok {
				return fmt.Errorf("unexpected database instance type %T", db)
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.MigrateSQLX(instance.DB, cfg.DatabaseName)
		},
		StopFunc: func(_ context.Context) error {
			return db.Close()
		},
	})

	boot.AddDependency(&startup.FuncDependency{
		Name: "redis",
		StartFunc: func(_ context.Context) error {
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		StopFunc: func(_ context.Context) error {
			return redisClient.Close()
		},
	})

	boot.AddDependency(&startup.FuncDependency{
		Name: "registry",
		StartFunc: func(ctx context.Context) error {
			_, err := reg.Load(ctx)
			return err
		},
	})

	boot.AddDependency(&startup.FuncDependency{
		Name:  "consumer",
		Needs: []string{"database", "redis", "registry"},
		StartFunc: func(ctx context.Context) error {
			multiTier := cache.NewMultiTier(logger, cache.NewMemoryEdgeTier(), redis.NewRegionalTier(redisClient), res, cache.Config{
				EdgeTTL:     cfg.CacheEdgeTTL,
				RegionalTTL: cfg.CacheRegionalTTL,
			})

			aggregates := merchantaggregate.NewRepository(db, logger)
			interactions := interaction.NewRepository(db, logger)
			threads := mailthread.NewRepository(db, logger)
			ldg := ledger.New(logger, aggregates, interactions, threads)

			var runner workflow.Runner = workflow.NewLocalRunner(logger)
			if cfg.DurableRunnerURL != "" {
				dispatcher := workflow.NewHTTPDispatcher(cfg.DurableRunnerURL, cfg.DurableRunnerTimeout, logger)
				runner = workflow.NewRemoteRunner(dispatcher, workflow.NewLocalRunner(logger))
			}

			proc := processor.NewProcessor(logger, multiTier, ldg, store, runner, processor.Config{
				InteractionsCollectionID: cfg.InteractionsCollectionID,
				MerchantUUIDField:        cfg.MerchantUUIDField,
			})

			producer := kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaGapTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)

			collections := []reconciler.Collection{}
			if cfg.InteractionsCollectionID != "" {
				collections = append(collections, reconciler.Collection{
					Name:          "interactions",
					CollectionID:  cfg.InteractionsCollectionID,
					UUIDField:     cfg.MerchantUUIDField,
					RelationField: "Profile",
				})
			}
			rec, err := reconciler.New(logger, store, reg, res, collections, producer)
			if err != nil {
				return err
			}

			if err := registerDependencies(logger, db, multiTier, rec, aggregates, interactions, threads); err != nil {
				return err
			}

			checker = health.NewChecker(db, redisClient, cfg.AppName)
			srv = server.New(logger, checker, cfg.Port)

			if !cfg.KafkaConsumerEnabled {
				logger.Info("Kafka consumer disabled")
				return nil
			}
			consumer = kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:       cfg.KafkaBrokers,
				Topic:         cfg.KafkaInputTopic,
				ConsumerGroup: cfg.KafkaConsumerGroup,
			}, logger, proc.ProcessMessage)
			return consumer.Start(ctx)
		},
		StopFunc: func(_ context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Stop()
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	checker.SetReady(true)
	logger.WithFields(map[string]any{"port": cfg.Port}).Info("clover started")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server stopped")
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}
	return boot.Stop(shutdownCtx)
}

// registerDependencies populates the default DI container the route
// handlers resolve from.
func registerDependencies(
	logger ectologger.Logger,
	db database.DB,
	multiTier *cache.MultiTier,
	rec *reconciler.Reconciler,
	aggregates *merchantaggregate.Repository,
	interactions *interaction.Repository,
	threads *mailthread.Repository,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, db); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*cache.MultiTier](container, multiTier); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*reconciler.Reconciler](container, rec); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merchantaggregate.Repository](container, aggregates); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*interaction.Repository](container, interactions); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*mailthread.Repository](container, threads)
}
