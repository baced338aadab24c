package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/api/handlers"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/cache/redis"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/gaming"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/ingestion"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/kg/neo4j"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/llm"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/metrics"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/middleware/ratelimit"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/middleware/security"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/middleware/validation"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/progress"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/sqlite"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/tutor"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/circuitbreaker"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/config"
	appLogger "github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
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

	appLogger.Info("Starting Critical Reasoning Mirror API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	checks := []handlers.Check{
		{Name: "sqlite", Pinger: sqliteClient},
		{Name: "redis", Pinger: redisClient},
	}

	var neo4jClient *neo4j.Client
	if cfg.Neo4j.Enabled {
		neo4jClient, err = neo4j.NewClient(
			cfg.Neo4j.URI,
			cfg.Neo4j.Username,
			cfg.Neo4j.Password,
			cfg.Neo4j.Database,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
		}
		defer neo4jClient.Close(context.Background())
		checks = append(checks, handlers.Check{Name: "neo4j", Pinger: neo4jClient})
	}

	table, err := loadCatalog(cfg, neo4jClient)
	if err != nil {
		appLogger.Fatal("Failed to load week catalog", zap.Error(err))
	}
	appLogger.Info("Week catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("entries", len(table.Entries)),
	)

	llmClient := llm.NewClient(cfg.LLM, func(name string, from, to circuitbreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	})

	gate := safety.NewGate(
		safety.NewDetector(safety.DefaultPatterns()),
		tutor.RecordIncidents(sqliteClient),
	)

	tracker, err := newTracker(cfg.Progress)
	if err != nil {
		appLogger.Fatal("Failed to configure progress tracker", zap.Error(err))
	}
	progressService := progress.NewService(sqliteClient, tracker, nil)

	tutorService := tutor.NewService(tutor.Config{
		SessionTTL:    time.Duration(cfg.Session.TTLHours) * time.Hour,
		MaxMessages:   cfg.Session.MaxMessages,
		MinReflection: cfg.Session.MinReflection,
		ReadyMinAreas: cfg.Session.ReadyMinAreas,
	}, tutor.Dependencies{
		Gate:      gate,
		Scorer:    gaming.NewScorer(gaming.Config(cfg.Gaming)),
		Evaluator: llmClient,
		Sessions:  redisClient,
		Coverage:  sqliteClient,
		Progress:  progressService,
		Catalog:   table,
	})

	processor := ingestion.NewProcessor(sqliteClient, table, gate, nil)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.For("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Student-ID",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.For("validation"),
	}))
	api.Use(limiter.Middleware())

	handlers.NewHealthHandler(checks...).Register(api)
	handlers.NewChatHandler(tutorService).Register(api)
	handlers.NewWebSocketHandler(tutorService).Register(api)
	handlers.NewDocumentHandler(processor).Register(api)
	handlers.NewProgressHandler(progressService).Register(api)
	handlers.NewRosterHandler(sqliteClient, sqliteClient).Register(api)

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
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// loadCatalog resolves the week table from the configured source. When
// Neo4j is enabled with a non-graph source, the graph is seeded from it.
func loadCatalog(cfg *config.Config, graph *neo4j.Client) (*catalog.Table, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		table *catalog.Table
		err   error
	)
	switch cfg.Catalog.Source {
	case "file":
		table, err = catalog.LoadFile(cfg.Catalog.Path)
	case "neo4j":
		return graph.LoadWeekCatalog(ctx)
	default:
		table = catalog.Default()
	}
	if err != nil {
		return nil, err
	}

	if graph != nil {
		if err := graph.SeedWeekCatalog(ctx, table); err != nil {
			appLogger.Warn("Failed to seed week catalog graph", zap.Error(err))
		}
	}
	return table, nil
}

func newTracker(cfg config.ProgressConfig) (*progress.Tracker, error) {
	midStart, midEnd, err := cfg.MidtermWindow.Parse()
	if err != nil {
		return nil, fmt.Errorf("midterm window: %w", err)
	}
	finalStart, finalEnd, err := cfg.FinalWindow.Parse()
	if err != nil {
		return nil, fmt.Errorf("final window: %w", err)
	}

	return progress.NewTracker(progress.Config{
		ExchangeThreshold: cfg.ExchangeThreshold,
		MidtermWeeks:      cfg.MidtermWeeks,
		FinalWeeks:        cfg.FinalWeeks,
		MidtermWindow:     progress.Window{Start: midStart, End: midEnd},
		FinalWindow:       progress.Window{Start: finalStart, End: finalEnd},
	}), nil
}
