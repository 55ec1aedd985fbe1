// cmd/growth-service/main.go
package main

import (
	"context"
	"errors"
	"os"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/haomehaode/kuileme/internal/pkg/bootstrap"
	"github.com/haomehaode/kuileme/internal/pkg/database"
	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/mq"
	"github.com/haomehaode/kuileme/internal/pkg/redis"
	"github.com/haomehaode/kuileme/internal/service/rewards/application"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
	"github.com/haomehaode/kuileme/internal/service/rewards/infrastructure"
	"github.com/haomehaode/kuileme/internal/service/rewards/infrastructure/adapter"
	"github.com/haomehaode/kuileme/internal/service/rewards/interfaces"
)

const serviceName = "growth-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	logger.Init(serviceName, "info")
	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel)
	ctx := context.Background()

	// 1. 存储
	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open database")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate schema")
	}
	uow := infrastructure.NewGormUnitOfWork(db, infrastructure.TxOptions{
		MaxRetries:  cfg.Ledger.MaxRetries,
		LockTimeout: cfg.Ledger.LockTimeout,
	})
	if cfg.CatalogFile != "" {
		catalog, err := infrastructure.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to load catalog")
		}
		if err := infrastructure.SeedCatalog(ctx, uow, catalog); err != nil {
			zlog.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	lottery, err := domain.NewLotteryEngine(cfg.PrizeTable(), nil)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid prize table")
	}

	opts := []application.Option{
		application.WithLotteryCost(cfg.Ledger.LotteryCost),
		application.WithLevelCurve(domain.LevelCurve{ExpPerLevel: cfg.Ledger.ExpPerLevel}),
	}
	var cleanup []func(ctx context.Context) error
	cleanup = append(cleanup, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	// 2. Redis 库存闸门，可选
	if cfg.Infra.Redis.Addrs != "" {
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect redis")
		}
		gate, err := adapter.NewStockGateRedisAdapter(redisClient)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to load stock scripts")
		}
		opts = append(opts, application.WithStockGate(gate))
		cleanup = append(cleanup, func(context.Context) error { return redisClient.Close() })
	}

	// 3. Kafka 事件，可选
	var workers []bootstrap.Worker
	brokers := cfg.Infra.Kafka.Brokers
	if len(brokers) > 0 {
		publisher := adapter.NewExchangeKafkaAdapter(mq.NewKafkaWriter(brokers, adapter.ExchangeCreatedTopic))
		opts = append(opts, application.WithEventPublisher(publisher))
		cleanup = append(cleanup, func(context.Context) error { return publisher.Close() })
	}

	appService := application.NewRewardsService(uow, otel.Tracer(serviceName), lottery, opts...)
	if err := appService.WarmStockGate(ctx); err != nil {
		zlog.Warn().Err(err).Msg("failed to warm stock gate, falling back to database stock")
	}

	if len(brokers) > 0 {
		dlt := mq.NewKafkaWriter(brokers, interfaces.BalanceAdjustmentDLT)
		reader := mq.NewKafkaReader(brokers, interfaces.BalanceAdjustmentTopic, interfaces.ConsumerGroup)
		workers = append(workers, interfaces.NewAdjustmentConsumerAdapter(reader, dlt, appService))

		fulfillmentDLT := mq.NewKafkaWriter(brokers, interfaces.FulfillmentDLT)
		fulfillmentReader := mq.NewKafkaGroupReader(brokers, interfaces.FulfillmentTopics(), interfaces.ConsumerGroup)
		workers = append(workers, interfaces.NewFulfillmentConsumerAdapter(fulfillmentReader, fulfillmentDLT, appService))
		cleanup = append(cleanup, func(context.Context) error {
			return errors.Join(dlt.Close(), fulfillmentDLT.Close())
		})
	}

	handler := interfaces.NewRewardsHandler(appService)
	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.Name,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Workers: workers,
		Cleanup: cleanup,
	})
	if err != nil {
		zlog.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
}
