package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earnings-call-engine/internal/engine/config"
	delivery "earnings-call-engine/internal/engine/delivery/http"
	_ "earnings-call-engine/internal/engine/docs"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/engine/service"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/postgres"
	"earnings-call-engine/pkg/redis"
	"earnings-call-engine/pkg/telegram"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
	"google.golang.org/genai"
)

var (
	configPath string
	batchSize  int
)

// app holds everything the commands share.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	closers []func()

	ingestionService  service.IngestionService
	sourceService     service.SourceService
	embeddingService  service.EmbeddingService
	retrieverService  service.RetrieverService
	reportService     service.ReportService
	evaluationService service.EvaluationService
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context) *app {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	a := &app{cfg: cfg, logger: appLogger}
	a.closers = append(a.closers, func() { _ = appLogger.Sync() })

	db, err := postgres.NewDB(postgres.Config{
		URL:             cfg.Database.URL,
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
	if sqlDB, err := db.DB.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	eventRepo := repository.NewNoopEmbeddingEventRepository()
	if cfg.Redis.Enabled {
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
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		eventRepo = repository.NewEmbeddingEventRepository(redisClient.Client, cfg.Redis.StreamMaxLen)
	}

	genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
	}
	geminiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
	}
	embeddingRepo, err := repository.NewEmbeddingRepository(cfg, appLogger, geminiRepo)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedding repository", logger.ErrorField(err))
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram.Enabled, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	documentRepo := repository.NewDocumentRepository(db.DB)
	chunkRepo := repository.NewChunkRepository(db.DB)
	reportRepo := repository.NewReportRepository(db.DB)
	sourceRepo := repository.NewTranscriptSourceRepository(cfg, appLogger)

	a.ingestionService = service.NewIngestionService(cfg, documentRepo, chunkRepo, eventRepo, appLogger)
	a.sourceService = service.NewSourceService(cfg, sourceRepo, a.ingestionService, appLogger)
	a.embeddingService = service.NewEmbeddingService(cfg, documentRepo, chunkRepo, embeddingRepo, appLogger)
	a.retrieverService = service.NewRetrieverService(cfg, chunkRepo, embeddingRepo, appLogger)
	assembler := service.NewContextAssembler(a.retrieverService, appLogger)
	reportCache := service.NewReportCache(cfg, reportRepo, appLogger)
	a.reportService = service.NewReportService(cfg, documentRepo, assembler, geminiRepo, reportCache, notifier, appLogger)
	a.evaluationService = service.NewEvaluationService(cfg, a.reportService, notifier, appLogger)
	return a
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx)
	defer a.Close()

	a.logger.Info("Starting API Service", logger.StringField("name", a.cfg.App.Name))

	e := echo.New()
	e.HideBanner = true

	root := e.Group("")
	delivery.NewHealthHandler().RegisterRoutes(root)
	delivery.NewDocumentHandler(a.ingestionService, a.sourceService, int64(a.cfg.RAG.MaxUploadSizeBytes), a.logger).RegisterRoutes(root)
	delivery.NewRAGHandler(a.embeddingService, a.retrieverService, a.cfg.RAG.SearchDefaultK, a.logger).RegisterRoutes(root)
	delivery.NewReportHandler(a.reportService, a.evaluationService, a.logger).RegisterRoutes(root)

	e.GET("/swagger/*", swagger.WrapHandler)

	go func() {
		addr := fmt.Sprintf("%s:%d", a.cfg.API.Host, a.cfg.API.Port)
		a.logger.Info("HTTP server starting", logger.StringField("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	a.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	a.logger.Info("Server exiting")
}

var embedCmd = &cobra.Command{
	Use:   "embed <document_id>",
	Short: "Embeds every unembedded chunk of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid document id: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a := newApp(ctx)
		defer a.Close()

		resp, err := a.embeddingService.EmbedDocument(ctx, id, batchSize)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <ticker> <quarter> [prev_quarter]",
	Short: "Generates (or loads) a report and prints its evaluation",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dto.ReportRequest{Ticker: args[0], Quarter: args[1]}
		if len(args) == 3 {
			req.PrevQuarter = args[2]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a := newApp(ctx)
		defer a.Close()

		resp, err := a.evaluationService.EvaluateReport(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", service.ErrorKind(err), err)
		}
		return printJSON(resp.Evaluation)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// @title Earnings Call Engine API
// @version 1.0
// @description Ingests earnings-call transcripts, embeds them and generates cited quarter comparison reports.
// @BasePath /
func main() {
	rootCmd := &cobra.Command{Use: "api-service", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")
	embedCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Chunks per embedding call (default from rag.embed_batch_size)")

	rootCmd.AddCommand(serveCmd, embedCmd, evaluateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing api-service CLI: %s\n", err)
		os.Exit(1)
	}
}
