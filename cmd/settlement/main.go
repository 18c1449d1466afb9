package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	commissionapp "github.com/wyfcoding/marketsettlement/internal/commission/application"
	commissiondomain "github.com/wyfcoding/marketsettlement/internal/commission/domain"
	commissionmysql "github.com/wyfcoding/marketsettlement/internal/commission/infrastructure/persistence/mysql"
	commissionredis "github.com/wyfcoding/marketsettlement/internal/commission/infrastructure/persistence/redis"
	orderdomain "github.com/wyfcoding/marketsettlement/internal/order/domain"
	ordermysql "github.com/wyfcoding/marketsettlement/internal/order/infrastructure/persistence/mysql"
	"github.com/wyfcoding/marketsettlement/internal/settlement/application"
	settlementdomain "github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/marketsettlement/internal/settlement/infrastructure/messaging"
	settlementmysql "github.com/wyfcoding/marketsettlement/internal/settlement/infrastructure/persistence/mysql"
	settlementredis "github.com/wyfcoding/marketsettlement/internal/settlement/infrastructure/persistence/redis"
	settlementconsumer "github.com/wyfcoding/marketsettlement/internal/settlement/interfaces/consumer"
	settlementhttp "github.com/wyfcoding/marketsettlement/internal/settlement/interfaces/http"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/settlement/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 配置
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	logCfg := &logging.Config{Service: cfg.Server.Name, Level: cfg.Log.Level}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. 指标
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)

	// 4. 数据库
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&settlementdomain.SettlementPeriod{},
			&settlementdomain.Settlement{},
			&settlementdomain.SettlementItem{},
			&commissiondomain.CommissionPolicy{},
			&orderdomain.Order{},
			&orderdomain.OrderItem{},
			&orderdomain.Product{},
			&orderdomain.Seller{},
			&outbox.Message{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka & Outbox
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Redis
	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
	}

	// 7. 仓储
	periodRepo := settlementmysql.NewPeriodRepository(db.RawDB())
	settlementRepo := settlementmysql.NewSettlementRepository(db.RawDB())
	policyRepo := commissionmysql.NewPolicyRepository(db.RawDB())
	orderRepo := ordermysql.NewOrderReadRepository(db.RawDB())
	publisher := messaging.NewOutboxPublisher(outboxMgr)

	var rateCache commissiondomain.RateCache
	var summaryRepo settlementdomain.SummaryReadRepository
	if redisCache != nil {
		rateCache = commissionredis.NewRateCache(redisCache.GetClient())
		summaryRepo = settlementredis.NewSummaryRepository(redisCache.GetClient())
	}

	// 8. 应用服务
	policySvc := commissionapp.NewPolicyService(policyRepo, rateCache, logger.Logger)
	resolutionMode := application.ResolutionMode(os.Getenv("COMMISSION_RESOLUTION_MODE"))
	calcSvc := application.NewCalculationService(periodRepo, settlementRepo, orderRepo, policySvc, publisher, resolutionMode, logger.Logger)
	commandSvc := application.NewCommandService(settlementRepo, periodRepo, publisher, logger.Logger)
	querySvc := application.NewQueryService(settlementRepo, summaryRepo, logger.Logger)

	// 9. 投影消费者
	var projectionConsumers []*kafka.Consumer
	if summaryRepo != nil {
		projectionSvc := application.NewProjectionService(settlementRepo, summaryRepo, logger.Logger)
		projectionHandler := settlementconsumer.NewProjectionHandler(projectionSvc, logger.Logger)

		projectionTopics := []string{
			settlementdomain.SettlementCalculatedEventType,
			settlementdomain.SettlementStatusChangedEventType,
		}
		for _, topic := range projectionTopics {
			consumerCfg := cfg.MessageQueue.Kafka
			consumerCfg.Topic = topic
			if consumerCfg.GroupID == "" {
				consumerCfg.GroupID = "settlement-projection-group"
			}
			consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
			consumer.Start(context.Background(), 3, projectionHandler.Handle)
			projectionConsumers = append(projectionConsumers, consumer)
		}
	}

	// 10. 接口层
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpHandler := settlementhttp.NewSettlementHandler(commandSvc, querySvc, calcSvc, policySvc)
	httpHandler.RegisterRoutes(r.Group(""))

	// 11. 启动
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		for _, c := range projectionConsumers {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
