package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	delivery "hr-signals/internal/pipeline/delivery/http"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/internal/pipeline/service"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/postgres"
	"hr-signals/pkg/redis"
	"hr-signals/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the content pipeline service",
	Run:   runServe,
}

var runOnceCmd = &cobra.Command{
	Use:   "run",
	Short: "Executes a single pipeline run and exits",
	Run:   runOnce,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := mustBuild(ctx)
	defer deps.close()

	appLogger := deps.logger

	// Start the cron cadences
	if err := deps.scheduler.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}
	defer deps.scheduler.Stop()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	runHandler := delivery.NewRunHandler(deps.orchestrator, deps.runRepo, appLogger)
	runHandler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", deps.cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func runOnce(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := mustBuild(ctx)
	defer deps.close()

	if _, err := deps.orchestrator.RunPipeline(ctx); err != nil {
		deps.logger.Fatal("Pipeline run failed", logger.ErrorField(err))
	}
}

// deps bundles everything runServe and runOnce share.
type deps struct {
	cfg          *config.Config
	logger       *logger.Logger
	orchestrator service.Orchestrator
	scheduler    service.Scheduler
	runRepo      repository.PipelineRunRepository
	close        func()
}

func mustBuild(ctx context.Context) *deps {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting Content Pipeline Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	// Initialize Redis
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}

	// Initialize repositories
	articleRepo := repository.NewArticleRepository(db.DB)
	taxonomyRepo := repository.NewTaxonomyRepository(db.DB)
	trendRepo := repository.NewTrendRepository(db.DB)
	insightRepo := repository.NewInsightRepository(db.DB)
	digestRepo := repository.NewDigestRepository(db.DB)
	sourceRepo := repository.NewSourceRepository(db.DB)
	runRepo := repository.NewPipelineRunRepository(db.DB)

	genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
	}
	aiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
	}

	var notifier telegram.Notifier = telegram.NopNotifier{}
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Seed reference data from configuration
	if err := seedReferenceData(ctx, cfg, sourceRepo, taxonomyRepo); err != nil {
		appLogger.Fatal("Failed to seed reference data", logger.ErrorField(err))
	}

	// Initialize services
	fetcher := service.NewFetcher(cfg, appLogger, sourceRepo)
	deduplicator := service.NewDeduplicator(cfg, appLogger, articleRepo)
	analyzer := service.NewAnalyzer(cfg, appLogger, aiRepo, articleRepo)
	classifier := service.NewClassifier(cfg, appLogger, taxonomyRepo, articleRepo)
	trendEngine := service.NewTrendEngine(cfg, appLogger, trendRepo, taxonomyRepo, articleRepo)
	insightExtractor := service.NewInsightExtractor(cfg, appLogger, aiRepo, insightRepo)
	digestCompiler := service.NewDigestCompiler(cfg, appLogger, aiRepo, articleRepo, trendRepo, insightRepo, digestRepo, notifier)

	orchestrator := service.NewOrchestrator(cfg, appLogger, redisClient, runRepo, sourceRepo,
		fetcher, deduplicator, analyzer, classifier, trendEngine, insightExtractor, digestCompiler)
	sched := service.NewScheduler(cfg, appLogger, orchestrator)

	return &deps{
		cfg:          cfg,
		logger:       appLogger,
		orchestrator: orchestrator,
		scheduler:    sched,
		runRepo:      runRepo,
		close: func() {
			if sqlDB, err := db.DB.DB(); err == nil {
				sqlDB.Close()
			}
			redisClient.Close()
			_ = appLogger.Sync()
		},
	}
}

func seedReferenceData(ctx context.Context, cfg *config.Config, sourceRepo repository.SourceRepository, taxonomyRepo repository.TaxonomyRepository) error {
	sources := make([]entity.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		active := true
		if s.Active != nil {
			active = *s.Active
		}
		sources = append(sources, entity.Source{
			Name:     s.Name,
			URL:      s.URL,
			Category: s.Category,
			IsActive: active,
		})
	}
	if err := sourceRepo.Seed(ctx, sources); err != nil {
		return err
	}

	themes := make([]entity.Theme, 0, len(cfg.Themes))
	for _, t := range cfg.Themes {
		themes = append(themes, entity.Theme{
			Name:        t.Name,
			Description: t.Description,
			Keywords:    t.Keywords,
			Color:       t.Color,
		})
	}
	if err := taxonomyRepo.SeedThemes(ctx, themes); err != nil {
		return err
	}

	sectors := make([]entity.Sector, 0, len(cfg.Sectors))
	for _, s := range cfg.Sectors {
		sectors = append(sectors, entity.Sector{
			Name:        s.Name,
			Description: s.Description,
			Keywords:    s.Keywords,
		})
	}
	return taxonomyRepo.SeedSectors(ctx, sectors)
}

func main() {
	rootCmd := &cobra.Command{Use: "pipeline-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	runOnceCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runOnceCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing pipeline-service CLI: %s\n", err)
		os.Exit(1)
	}
}
