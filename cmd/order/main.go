// OrderService 主程序
// 功能：订单受理、改单、撤单、成交回报与查询
// 架构：DDD + gin HTTP + MySQL/Redis + outbox + DTM Saga
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	brokerage "github.com/wyfcoding/tradingcore/internal/brokerage/domain"
	"github.com/wyfcoding/tradingcore/internal/order/application"
	"github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/internal/order/infrastructure/messaging"
	persistencemysql "github.com/wyfcoding/tradingcore/internal/order/infrastructure/persistence/mysql"
	persistenceredis "github.com/wyfcoding/tradingcore/internal/order/infrastructure/persistence/redis"
	"github.com/wyfcoding/tradingcore/internal/order/infrastructure/portfolioclient"
	httphandler "github.com/wyfcoding/tradingcore/internal/order/interfaces/http"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	"github.com/wyfcoding/tradingcore/pkg/cache"
	"github.com/wyfcoding/tradingcore/pkg/config"
	"github.com/wyfcoding/tradingcore/pkg/db"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
	"github.com/wyfcoding/tradingcore/pkg/middleware"
	"github.com/wyfcoding/tradingcore/pkg/ratelimit"
)

func main() {
	// 1. 加载配置
	configPath := os.Getenv("TRADINGCORE_CONFIG")
	if configPath == "" {
		configPath = "configs/order/config.toml"
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
	logger.Info(ctx, "Starting OrderService",
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

	if err := database.DB.AutoMigrate(&persistencemysql.OrderModel{}, &messaging.OutboxMessage{}); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	// 5. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 6. 证券登记表（实际行情由接入层推送刷新）
	securities := referencedata.NewRegistry()

	// 7. 仓储与应用服务
	orderRepo := persistencemysql.NewOrderRepository(database.DB)
	orderReadRepo := persistenceredis.NewOrderReadRepository(redisCache)
	publisher := messaging.NewOutboxEventPublisher(database.DB)
	holdings := portfolioclient.New(cfg.DTM.BranchBaseURL)

	maxID, err := orderRepo.MaxOrderID(ctx)
	if err != nil {
		logger.Fatal(ctx, "Failed to load max order id", "error", err)
	}
	ids := domain.NewIDGenerator(maxID + 1)

	orderManager := application.NewOrderManager(
		orderRepo,
		publisher,
		securities,
		brokerage.NewEquityModel(),
		holdings,
		ids,
		database,
		metricsInstance,
		logger.Get(),
	)
	if cfg.DTM.Server != "" {
		orderManager.SetDTMServer(cfg.DTM.Server, cfg.DTM.BranchBaseURL)
	}
	orderQuery := application.NewOrderQueryService(orderRepo, orderReadRepo)

	// 8. HTTP 服务器
	httpServer := createHTTPServer(cfg, metricsInstance, rateLimiter, orderManager, orderQuery)

	// 9. gRPC 健康检查
	grpcServer, healthServer := createGRPCServer()

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

	// 10. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down OrderService")
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	logger.Info(ctx, "OrderService stopped")
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(
	cfg *config.Config,
	m *metrics.Metrics,
	rateLimiter ratelimit.RateLimiter,
	orderManager *application.OrderManager,
	orderQuery *application.OrderQueryService,
) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))
	router.Use(middleware.GinRateLimitMiddleware(rateLimiter, ratelimit.Limit{
		Rate:   200,
		Period: time.Second,
		Burst:  400,
	}))

	handler := httphandler.NewOrderHandler(orderManager, orderQuery)
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

// createGRPCServer 创建 gRPC 服务器，仅承载标准健康检查服务
func createGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
