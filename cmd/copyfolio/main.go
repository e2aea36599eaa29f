package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"golang.org/x/sync/errgroup"

	"copyfolio/internal/chain"
	"copyfolio/internal/client"
	"copyfolio/internal/config"
	"copyfolio/internal/deploy"
	"copyfolio/internal/entity"
	"copyfolio/internal/pkg/metrics"
	"copyfolio/internal/pkg/utils"
	"copyfolio/internal/repository"
	"copyfolio/internal/restapi"
	"copyfolio/internal/service"
)

func main() {
	// Bootstrap logging with logrus until the config is loaded, then hand
	// everything to zap.
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// Route slog through zap so library code using the default slog logger
	// lands in the same stream.
	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	// Load configuration
	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Infof("Failed to log to file, using default stdout: %v", err)
		}
	}

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	// Initialize Prometheus metrics
	metrics.MustRegisterMetrics()

	// Open sqlite storage
	db, err := repository.Open(cfg.Database.Path)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	historyRepo := repository.NewHistoryRepository(db)
	buddyRepo := repository.NewBuddyRepository(db)
	metadataRepo := repository.NewMetadataRepository(db)
	zapLogger.Info("Database opened", zap.String("path", cfg.Database.Path))

	// Shared in-memory cache for token list and pool responses
	memCache := cache.New(
		time.Duration(cfg.Cache.DefaultExpirationMinutes)*time.Minute,
		time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute,
	)

	// Initialize upstream clients
	aiClient := client.NewAIClient(cfg.OpenAI.ApiKey, cfg.OpenAI.Model, zapLogger)
	explorerClient := client.NewExplorerClient(
		cfg.Explorer.BaseURL,
		cfg.Explorer.ApiKey,
		time.Duration(cfg.Explorer.RequestTimeoutMillis)*time.Millisecond,
		cfg.Explorer.RateLimit,
		cfg.Explorer.BurstLimit,
		zapLogger,
	)
	tokenListClient := client.NewTokenListClient(
		cfg.TokenList.URL,
		time.Duration(cfg.TokenList.RequestTimeoutMillis)*time.Millisecond,
		zapLogger,
	)
	llamaClient := client.NewDefiLlamaClient(
		cfg.DefiLlama.BaseURL,
		time.Duration(cfg.DefiLlama.RequestTimeoutMillis)*time.Millisecond,
		zapLogger,
	)
	zapLogger.Info("Upstream clients initialized")

	// Initialize services
	lookupSvc := service.NewLookupService(aiClient, explorerClient, historyRepo, cfg, zapLogger)
	chatSvc := service.NewChatService(aiClient, zapLogger)
	tokenSvc := service.NewTokenService(
		tokenListClient,
		memCache,
		cfg.TokenList.ChainID,
		time.Duration(cfg.TokenList.CacheTTLMinutes)*time.Minute,
		zapLogger,
	)
	poolSvc := service.NewPoolService(
		llamaClient,
		memCache,
		cfg.Pools.MinTVLUSD,
		cfg.Pools.MaxResults,
		time.Duration(cfg.DefiLlama.CacheTTLMinutes)*time.Minute,
		zapLogger,
	)
	buddySvc := service.NewBuddyService(buddyRepo, zapLogger)
	reportSvc := service.NewReportService(metadataRepo, zapLogger)
	zapLogger.Info("Services initialized")

	// Server-side deployment is only wired when a signer key is configured.
	var deployRun restapi.DeployRunner
	if cfg.Chain.SignerKey != "" {
		executor, err := chain.NewEVMExecutor(cfg.Chain, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to initialize chain executor", zap.Error(err))
		}
		orchestrator := deploy.NewOrchestrator(tokenSvc, executor, executor, executor, deploy.UnitFloorPolicy{}, zapLogger)
		deployRun = func(ctx context.Context, items []entity.PortfolioItem, targetPool bool) (*deploy.RunSummary, error) {
			if targetPool {
				return orchestrator.DeployToPool(ctx, items)
			}
			return orchestrator.Deploy(ctx, items)
		}
		zapLogger.Info("Deployment orchestrator initialized", zap.Int64("chainID", cfg.Chain.ChainID))
	} else {
		zapLogger.Info("No signer key configured, server-side deployment disabled")
	}

	// Warm the token list and pool caches concurrently; failures are logged
	// and retried lazily on first request.
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		g, gctx := errgroup.WithContext(warmCtx)
		g.Go(func() error {
			_, err := tokenSvc.CheckTokens(gctx, []string{"ETH"})
			return err
		})
		g.Go(func() error {
			_, err := poolSvc.PoolsForSymbols(gctx, []string{"ETH"})
			return err
		})
		if err := g.Wait(); err != nil {
			zapLogger.Warn("Cache warm-up incomplete", zap.Error(err))
		} else {
			zapLogger.Info("Token list and pool caches warmed")
		}
	}()

	// Initialize Gin router
	handler := restapi.NewHandler(lookupSvc, chatSvc, tokenSvc, poolSvc, buddySvc, reportSvc, deployRun, zapLogger)
	router := restapi.SetupRouter(handler, utils.ZapLoggerMiddleware(zapLogger))

	// Start server
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}
