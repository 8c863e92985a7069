package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/analysis"
	"github.com/ai-audit/backend/internal/api/handlers"
	"github.com/ai-audit/backend/internal/audit"
	"github.com/ai-audit/backend/internal/breach"
	"github.com/ai-audit/backend/internal/cache/redis"
	"github.com/ai-audit/backend/internal/connectors"
	"github.com/ai-audit/backend/internal/inference"
	"github.com/ai-audit/backend/internal/metrics"
	"github.com/ai-audit/backend/internal/middleware/ratelimit"
	"github.com/ai-audit/backend/internal/middleware/security"
	"github.com/ai-audit/backend/internal/middleware/validation"
	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/internal/remediation"
	"github.com/ai-audit/backend/internal/storage/sqlite"
	"github.com/ai-audit/backend/pkg/config"
	appLogger "github.com/ai-audit/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AI Audit API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	connectorTimeout := time.Duration(cfg.Connectors.TimeoutSec) * time.Second
	connectorRegistry := connectors.NewRegistry()
	connectorRegistry.Register(connectors.NewGitHubConnector(
		cfg.Connectors.GitHubToken,
		cfg.Connectors.MaxRepos,
		cfg.Connectors.Anonymize,
	))
	connectorRegistry.Register(connectors.NewTwitterConnector(
		cfg.Connectors.UserAgent, connectorTimeout, cfg.Connectors.Anonymize))
	connectorRegistry.Register(connectors.NewRedditConnector(
		cfg.Connectors.UserAgent, connectorTimeout, cfg.Connectors.Anonymize))

	producers := []inference.Producer{
		inference.NewHeuristicProducer(),
	}
	defaultProducer := ""
	if cfg.LLM.APIKey != "" {
		llmProducer := inference.NewOpenAIProducer(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
		)
		producers = append(producers, llmProducer)
		defaultProducer = llmProducer.ID()
	} else {
		appLogger.Warn("No LLM API key configured, using heuristic producer only")
	}

	var orchestratorOpts []inference.OrchestratorOption
	if types := parseInferenceTypes(cfg.Audit.InferenceTypes); len(types) > 0 {
		orchestratorOpts = append(orchestratorOpts, inference.WithInferenceTypes(types))
	}
	if cfg.Audit.Concurrency > 0 {
		orchestratorOpts = append(orchestratorOpts, inference.WithConcurrency(cfg.Audit.Concurrency))
	}
	orchestrator := inference.NewOrchestrator(producers, defaultProducer, orchestratorOpts...)

	var breachScanner audit.BreachScanner
	if cfg.Breach.Enabled {
		breachScanner = breach.NewClient(
			cfg.Breach.APIKey,
			cfg.Breach.BaseURL,
			time.Duration(cfg.Breach.TimeoutSec)*time.Second,
		)
	}

	engineConfig := audit.EngineConfig{
		Connectors:   connectorRegistry,
		Orchestrator: orchestrator,
		Extensions:   analysis.DefaultRegistry(),
		Breach:       breachScanner,
		Store:        sqliteClient,
		SnapshotTTL:  time.Duration(cfg.Audit.SnapshotTTLHours) * time.Hour,
	}
	if cacheClient != nil {
		engineConfig.Cache = cacheClient
	}

	engine, err := audit.NewEngine(engineConfig)
	if err != nil {
		appLogger.Fatal("Failed to create audit engine", zap.Error(err))
	}

	planner := remediation.NewPlanner()
	runner := remediation.NewRunner(remediation.DefaultRegistry(cfg.Remediation.DryRun))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	var auditCache handlers.ReportCache
	if cacheClient != nil {
		auditCache = cacheClient
	}
	auditHandler := handlers.NewAuditHandler(engine, sqliteClient, auditCache)
	actionsHandler := handlers.NewActionsHandler(planner, runner, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(engine)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	api.Use("/audit/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/audit/ws", websocket.New(wsHandler.HandleConnection))

	api.Post("/audit", auditHandler.RunAudit)
	api.Get("/audit/history", auditHandler.GetHistory)
	api.Get("/audit/:id", auditHandler.GetReport)

	api.Post("/actions/plan", actionsHandler.PlanActions)
	api.Get("/actions", actionsHandler.ListActions)
	api.Post("/actions/:id/execute", actionsHandler.ExecuteAction)
	api.Post("/actions/:id/rollback", actionsHandler.RollbackAction)

	api.Get("/health", auditHandler.Health)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func parseInferenceTypes(raw []string) []models.InferenceType {
	var out []models.InferenceType
	for _, s := range raw {
		out = append(out, models.InferenceType(s))
	}
	return out
}
