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
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/scheduler"
	challengeapp "github.com/wyfcoding/propfirm/internal/challenge/application"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
	"github.com/wyfcoding/propfirm/internal/challenge/infrastructure/persistence/mysql"
	"github.com/wyfcoding/propfirm/internal/challenge/infrastructure/pricing"
	challengehttp "github.com/wyfcoding/propfirm/internal/challenge/interfaces/http"
	marketapp "github.com/wyfcoding/propfirm/internal/marketdata/application"
	"github.com/wyfcoding/propfirm/internal/marketdata/infrastructure/feed"
	marketredis "github.com/wyfcoding/propfirm/internal/marketdata/infrastructure/persistence/redis"
	markethttp "github.com/wyfcoding/propfirm/internal/marketdata/interfaces/http"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/challenge/config.toml", "config file path")

// appConfig 在通用配置之上追加挑战服务自身的参数。
type appConfig struct {
	config.Config `mapstructure:",squash"`

	Challenge challengeConfig `mapstructure:"challenge" toml:"challenge"`
}

type challengeConfig struct {
	FeedURL       string        `mapstructure:"feed_url"       toml:"feed_url"`
	FeedSource    string        `mapstructure:"feed_source"    toml:"feed_source"`
	FeedTimeout   time.Duration `mapstructure:"feed_timeout"   toml:"feed_timeout"`
	QuoteMaxAge   time.Duration `mapstructure:"quote_max_age"  toml:"quote_max_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" toml:"sweep_interval"`
	OracleTimeout time.Duration `mapstructure:"oracle_timeout" toml:"oracle_timeout"`
}

func main() {
	flag.Parse()

	// 1. 配置
	var cfg appConfig
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if cfg.Challenge.SweepInterval <= 0 {
		cfg.Challenge.SweepInterval = time.Minute
	}

	// 2. 日志
	logger := logging.NewFromConfig(&logging.Config{
		Service:    cfg.Server.Name,
		Module:     "challenge",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(logger.Logger)

	// 3. 指标
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	stopMetrics := func() {}
	if cfg.Metrics.Enabled {
		stopMetrics = metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}
	defer stopMetrics()

	// 4. 数据库
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&domain.ChallengeTemplate{},
			&domain.ChallengeAccount{},
			&domain.Trade{},
			&outbox.OutboxMessage{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka & Outbox
	// 每个领域主题绑定一个生产者，outbox 按主题路由。
	topics := []string{
		domain.TopicAccountCreated,
		domain.TopicTradeOpened,
		domain.TopicTradeClosed,
		domain.TopicChallengeCompleted,
	}
	producers := make(map[string]*kafka.Producer, len(topics))
	for _, topic := range topics {
		kafkaCfg := cfg.MessageQueue.Kafka
		kafkaCfg.Topic = topic
		producers[topic] = kafka.NewProducer(&kafkaCfg, logger, metricsImpl)
	}
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		producer, ok := producers[topic]
		if !ok {
			return fmt.Errorf("no producer for topic %s", topic)
		}
		return producer.Publish(ctx, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)
	publisher := outbox.NewPublisher(outboxMgr)

	// 6. Redis
	redisCache, err := cache.NewRedisCache(cfg.Data.Redis)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	// 7. 行情上下文
	quoteRepo := marketredis.NewQuoteRedisRepository(redisCache.GetClient())
	screener := feed.NewScreenerClient(cfg.Challenge.FeedURL, cfg.Challenge.FeedSource, cfg.Challenge.FeedTimeout)
	marketSvc := marketapp.NewMarketDataService(screener, quoteRepo, logger.Logger, cfg.Challenge.QuoteMaxAge)

	// 8. 挑战上下文
	accountRepo := mysql.NewAccountRepository(db.RawDB())
	tradeRepo := mysql.NewTradeRepository(db.RawDB())
	templateRepo := mysql.NewTemplateRepository(db.RawDB())
	oracle := pricing.NewMarketDataOracle(marketSvc, cfg.Challenge.OracleTimeout)
	evaluator := domain.NewRiskEvaluator()

	commandSvc := challengeapp.NewChallengeCommandService(
		accountRepo, tradeRepo, templateRepo, oracle, evaluator, publisher, logger.Logger,
	)
	querySvc := challengeapp.NewChallengeQueryService(accountRepo, tradeRepo, templateRepo, evaluator)
	challengeSvc := challengeapp.NewChallengeService(commandSvc, querySvc)
	sweeper := challengeapp.NewEvaluationSweeper(accountRepo, commandSvc, oracle, logger.Logger)

	// 9. 定时调度
	sched := scheduler.NewSchedulerWithMetrics(logger, metricsImpl)
	if err := sweeper.Register(sched, cfg.Challenge.SweepInterval); err != nil {
		slog.Error("failed to register risk sweep job", "error", err)
		os.Exit(1)
	}

	// 10. 接口层
	if cfg.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}

	challengehttp.NewChallengeHandler(challengeSvc).RegisterRoutes(r.Group(""))
	markethttp.NewMarketDataHandler(marketSvc).RegisterRoutes(r.Group(""))

	// 11. 启动
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		sched.Start(ctx)
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sched.Stop(stopCtx)
	})

	addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
	server := &http.Server{Addr: addr, Handler: r}

	g.Go(func() error {
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
