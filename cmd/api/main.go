package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/aggregation"
	"github.com/theorygraph/backend/internal/api/handlers"
	"github.com/theorygraph/backend/internal/cache/redis"
	"github.com/theorygraph/backend/internal/canonical"
	"github.com/theorygraph/backend/internal/embedding"
	"github.com/theorygraph/backend/internal/graph/neo4j"
	"github.com/theorygraph/backend/internal/ingestion"
	"github.com/theorygraph/backend/internal/metrics"
	"github.com/theorygraph/backend/internal/middleware/ratelimit"
	"github.com/theorygraph/backend/internal/middleware/security"
	"github.com/theorygraph/backend/internal/middleware/validation"
	"github.com/theorygraph/backend/internal/resolver"
	"github.com/theorygraph/backend/internal/scoring"
	"github.com/theorygraph/backend/internal/storage/sqlite"
	"github.com/theorygraph/backend/internal/vector/milvus"
	"github.com/theorygraph/backend/pkg/config"
	appLogger "github.com/theorygraph/backend/pkg/logger"
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

	appLogger.Info("Starting TheoryGraph API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	dict := canonical.NewDictionary()
	if cfg.Canonicalizer.DictionaryPath != "" {
		if err := dict.LoadFile(cfg.Canonicalizer.DictionaryPath); err != nil {
			appLogger.Warn("Failed to load seed dictionary", zap.String("path", cfg.Canonicalizer.DictionaryPath), zap.Error(err))
		}
	}
	synonyms, err := sqliteClient.ListSynonyms()
	if err != nil {
		appLogger.Warn("Failed to load persisted synonyms", zap.Error(err))
	}
	for _, entry := range synonyms {
		dict.Add(entry.Kind, entry.Variant, entry.Canonical)
	}
	appLogger.Info("Dictionary loaded", zap.Int("entries", dict.Len()))

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	neo4jClient.EnsureSchema(context.Background())

	// The service degrades without Redis: resolutions are recomputed per
	// mention instead of served from cache.
	var resolutionCache ingestion.ResolutionCache
	var invalidator handlers.ResolutionInvalidator
	var embedCache embedding.Cache
	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, continuing without resolution cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		resolutionCache = redisClient
		invalidator = redisClient
		embedCache = redisClient
	}
	cacheTTL := time.Duration(cfg.Redis.TTLSeconds) * time.Second

	var embedder *embedding.Client
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.NewClient(
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.BaseURL,
			time.Duration(cfg.Embedding.TimeoutSec)*time.Second,
			embedCache,
			cacheTTL,
		)
	} else {
		appLogger.Warn("No embedding API key configured, canonicalization will not use the embedding stage")
	}

	var milvusClient *milvus.Client
	if cfg.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(
			cfg.Milvus.Address,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create name collection", zap.Error(err))
		}
	}

	canonCfg := canonical.Config{
		FuzzyThreshold:     cfg.Canonicalizer.FuzzyThreshold,
		EmbeddingThreshold: cfg.Canonicalizer.EmbeddingThreshold,
		AmbiguousMargin:    cfg.Canonicalizer.AmbiguousMargin,
		ContainmentMaxLen:  cfg.Canonicalizer.ContainmentMaxLen,
		Logger:             appLogger.GetLogger(),
	}
	if embedder != nil {
		canonCfg.Embedder = embedder
	}
	if milvusClient != nil {
		canonCfg.Index = milvusClient
	}
	canonicalizer := canonical.NewCanonicalizer(dict, canonCfg)

	var registrarEmbedder canonical.Embedder
	var registrarWriter canonical.NameWriter
	if embedder != nil {
		registrarEmbedder = embedder
	}
	if milvusClient != nil {
		registrarWriter = milvusClient
	}
	registrar := canonical.NewRegistrar(dict, registrarEmbedder, registrarWriter, appLogger.GetLogger())

	scorerCfg := scoring.Config{
		ConnectionThreshold: cfg.Scoring.ConnectionThreshold,
		SemanticMode:        cfg.Scoring.SemanticMode,
		Logger:              appLogger.GetLogger(),
	}
	if embedder != nil {
		scorerCfg.Embedder = embedder
	}
	scorer, err := scoring.NewScorer(scorerCfg)
	if err != nil {
		appLogger.Fatal("Failed to create scorer", zap.Error(err))
	}

	aggregator := aggregation.NewAggregator(neo4jClient, appLogger.GetLogger())
	resolverEngine := resolver.NewResolver(neo4jClient, canonicalizer, aggregator, appLogger.GetLogger())

	pipeline := ingestion.NewPipeline(ingestion.Config{
		Graph:     neo4jClient,
		Meta:      sqliteClient,
		Canon:     canonicalizer,
		Registrar: registrar,
		Scorer:    scorer,
		Rollups:   aggregator,
		Cache:     resolutionCache,
		CacheTTL:  cacheTTL,
		Workers:   cfg.Ingest.Workers,
	})

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Environment == "development",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxBodyBytes: cfg.Server.BodyLimit,
		Logger:       appLogger.GetLogger(),
	}))

	ingestHandler := handlers.NewIngestHandler(pipeline, sqliteClient)
	entityHandler := handlers.NewEntityHandler(neo4jClient)

	var reindexIndex handlers.NameIndex
	if milvusClient != nil {
		reindexIndex = milvusClient
	}
	maintenanceHandler := handlers.NewMaintenanceHandler(
		resolverEngine,
		aggregator,
		neo4jClient,
		embedder,
		reindexIndex,
		cfg.Resolver.RequireConfirm,
	)
	dictionaryHandler := handlers.NewDictionaryHandler(dict, registrar, sqliteClient, invalidator)
	wsHandler := handlers.NewWebSocketHandler(resolverEngine, aggregator, cfg.Resolver.RequireConfirm)

	api := app.Group("/api/v1")

	api.Post("/papers", ingestHandler.SubmitPaper)
	api.Post("/papers/batch", ingestHandler.SubmitBatch)
	api.Get("/papers", ingestHandler.ListPapers)
	api.Get("/runs", ingestHandler.ListRuns)
	api.Get("/quarantine", ingestHandler.ListQuarantined)

	api.Get("/entities/:kind", entityHandler.ListEntities)
	api.Get("/entities/:kind/:name", entityHandler.GetEntity)
	api.Get("/relationships", entityHandler.GetRelationship)
	api.Get("/relationships/pairs", entityHandler.ListPairs)

	api.Post("/maintenance/scan-duplicates", maintenanceHandler.ScanDuplicates)
	api.Post("/maintenance/merge", maintenanceHandler.ApplyMerges)
	api.Post("/maintenance/recompute-aggregates", maintenanceHandler.RecomputeAggregates)
	api.Post("/maintenance/reindex-vectors", maintenanceHandler.ReindexVectors)

	api.Post("/dictionary", dictionaryHandler.AddSynonym)
	api.Get("/dictionary/:kind", dictionaryHandler.ListDictionary)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/maintenance", websocket.New(wsHandler.HandleConnection))

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
