// PortfolioService 主程序
// 功能：持仓与多币种现金账簿维护、成交事件消费、资金冻结 Saga 分支、
// 延迟结算扫描
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ordermessaging "github.com/wyfcoding/tradingcore/internal/order/infrastructure/messaging"
	"github.com/wyfcoding/tradingcore/internal/portfolio/application"
	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	persistencemysql "github.com/wyfcoding/tradingcore/internal/portfolio/infrastructure/persistence/mysql"
	httphandler "github.com/wyfcoding/tradingcore/internal/portfolio/interfaces/http"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
	"github.com/wyfcoding/tradingcore/pkg/config"
	"github.com/wyfcoding/tradingcore/pkg/db"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
	"github.com/wyfcoding/tradingcore/pkg/middleware"
	"github.com/wyfcoding/tradingcore/pkg/mq"
)

func main() {
	// 1. 加载配置
	configPath := os.Getenv("TRADINGCORE_CONFIG")
	if configPath == "" {
		configPath = "configs/portfolio/config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting PortfolioService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if err := database.DB.AutoMigrate(
		&persistencemysql.BalanceModel{},
		&persistencemysql.HoldingModel{},
		&persistencemysql.UnsettledCashModel{},
		&persistencemysql.ReservationModel{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	sqlDB, err := database.SQLDB()
	if err != nil {
		logger.Fatal(ctx, "Failed to acquire sql connection", "error", err)
	}

	// 4. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 5. 结算模型与组合管理器
	settlementModel, delayedModel, err := buildSettlementModel(cfg.Settlement)
	if err != nil {
		logger.Fatal(ctx, "Invalid settlement config", "error", err)
	}
	securities := referencedata.NewRegistry()
	manager := domain.NewManager(cfg.Portfolio.BaseCurrency, settlementModel, securities)

	repo := persistencemysql.NewPortfolioRepository(database.DB)
	service := application.NewPortfolioService(
		manager,
		delayedModel,
		repo,
		repo,
		repo,
		persistencemysql.NewFundReservationStore(),
		sqlDB,
		metricsInstance,
		logger.Get(),
	)
	if err := service.Restore(ctx); err != nil {
		logger.Fatal(ctx, "Failed to restore portfolio state", "error", err)
	}

	// 6. 成交事件消费与结算扫描
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	consumer, err := mq.NewConsumer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}, ordermessaging.OrderEventsTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
	}
	defer consumer.Close()

	fillConsumer := application.NewFillConsumer(consumer, service, logger.Get())
	go fillConsumer.Run(runCtx)
	go service.RunSettlementScanner(runCtx, time.Duration(cfg.Settlement.ScanInterval)*time.Second)

	// 7. HTTP 服务器
	httpServer := createHTTPServer(cfg, metricsInstance, service)

	// 8. gRPC 健康检查
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal(ctx, "Failed to listen on gRPC address", "error", err)
		}
		logger.Info(ctx, "Starting gRPC health server", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "gRPC server error", "error", err)
		}
	}()
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// 9. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down PortfolioService")
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	logger.Info(ctx, "PortfolioService stopped")
}

// buildSettlementModel 按配置构造结算模型
func buildSettlementModel(cfg config.SettlementConfig) (settlement.Model, *settlement.Delayed, error) {
	switch cfg.Mode {
	case "immediate":
		return settlement.NewImmediate(), nil, nil
	case "delayed":
		timeOfDay, err := parseTimeOfDay(cfg.TimeOfDay)
		if err != nil {
			return nil, nil, err
		}
		delayed := settlement.NewDelayed(cfg.DelayDays, timeOfDay)
		return delayed, delayed, nil
	default:
		return nil, nil, fmt.Errorf("unknown settlement mode: %s", cfg.Mode)
	}
}

// parseTimeOfDay 解析 HH:MM 为当日偏移
func parseTimeOfDay(value string) (time.Duration, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time_of_day: %s", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid time_of_day hours: %s", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time_of_day minutes: %s", value)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, m *metrics.Metrics, service *application.PortfolioService) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))

	handler := httphandler.NewPortfolioHandler(service)
	handler.RegisterRoutes(&router.RouterGroup)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
