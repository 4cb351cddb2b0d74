package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/reply"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/retrieval"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/routing"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/usage"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/api"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/api/handlers"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/config"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/database"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers/factory"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/repository/postgres"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	integrationRepo := postgres.NewIntegrationRepository(db.DB)
	usageRepo := postgres.NewUsageRepository(db.DB)
	usageService := usage.NewService(usageRepo, log)

	registry, err := factory.BuildRegistry(cfg.Providers, integrationRepo)
	if err != nil {
		log.WithError(err).Fatal("failed to build provider registry")
	}

	premium := make(map[string]string, len(cfg.Providers))
	for id, p := range cfg.Providers {
		if p.PremiumModel != "" {
			premium[id] = p.PremiumModel
		}
	}
	router := routing.NewService(registry, cfg.Routing.Preference, premium, usageService, log)

	store, err := buildStore(cfg, integrationRepo, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build retrieval store")
	}

	replyService := reply.NewService(router, store, reply.Config{
		MaxGenerationAttempts: cfg.Contract.MaxGenerationAttempts,
		RawFallbackLimit:      cfg.Contract.RawFallbackLimit,
		RetrievalTopK:         cfg.Retrieval.TopK,
		RetrievalThreshold:    cfg.Retrieval.SimilarityThreshold,
	}, log)

	app := fiber.New(fiber.Config{
		AppName:      "AI Reply Core",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: getOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	api.SetupRoutes(app, &handlers.Deps{
		Reply:    replyService,
		Store:    store,
		Registry: registry,
		Usage:    usageService,
		Log:      log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("starting server")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// buildStore wires the retrieval store over an OpenAI embedding client.
// The embedding credential rides the same layered resolution as the
// chat providers, through the "openai" integration.
func buildStore(cfg *config.Config, integrations *postgres.IntegrationRepository, log *logrus.Logger) (*retrieval.Store, error) {
	apiKey := ""
	if p, ok := cfg.Providers["openai"]; ok && p.APIKey != "" {
		apiKey = p.APIKey
	}
	if apiKey == "" {
		record, err := integrations.GetIntegration(context.Background(), "openai")
		if err != nil {
			return nil, err
		}
		if record != nil && record.Enabled {
			apiKey = record.APIKey
		}
	}
	if apiKey == "" {
		log.Warn("no embedding credential resolved, knowledge indexing will fail until one is configured")
	}

	client := openai.NewClient(apiKey)
	embedder, err := retrieval.NewOpenAIEmbedder(client, retrieval.EmbedderConfig{
		Model:         cfg.Retrieval.EmbeddingModel,
		MaxTextLength: cfg.Retrieval.MaxTextLength,
		CacheSize:     cfg.Retrieval.CacheSize,
	}, log)
	if err != nil {
		return nil, err
	}
	return retrieval.NewStore(embedder, log), nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func getOrigins() string {
	if origins := os.Getenv("REPLYCORE_CORS_ORIGINS"); origins != "" {
		return origins
	}
	return "http://localhost:5173"
}
