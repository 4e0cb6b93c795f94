package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/api"
	"github.com/biologic-optimizer/internal/config"
	"github.com/biologic-optimizer/internal/database"
	"github.com/biologic-optimizer/internal/domain"
	"github.com/biologic-optimizer/internal/llm"
	"github.com/biologic-optimizer/internal/repository"
	"github.com/biologic-optimizer/internal/service"
	"github.com/biologic-optimizer/pkg/druglabel"
)

const localEvidencePath = "data/evidence.db"

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setupLogger(&cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checks []api.HealthCheck

	// Postgres is preferred but not required; without it the service runs
	// on in-memory reference data and a local evidence store.
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Warn("Database unavailable, running with in-memory formulary")
		db = nil
	} else {
		defer db.Close()
		checks = append(checks, api.HealthCheck{Name: "database", Check: db.Health})

		runner, err := database.NewMigrationRunner(database.URL(&cfg.Database), cfg.Database.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize migration runner")
		}
		if err := runner.Up(); err != nil {
			logger.WithError(err).Fatal("Failed to apply database migrations")
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}

	redisClient, err := repository.NewRedisClient(cfg.Cache)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running with in-process caches only")
		redisClient = nil
	} else {
		defer redisClient.Close()
		checks = append(checks, api.HealthCheck{Name: "cache", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	formulary := buildFormulary(db, redisClient, cfg, logger)
	evidence := buildEvidence(db, cfg, logger)
	labels := buildLabels(cfg, redisClient, logger)
	dosing := service.NewReferenceDosingTable()

	var llmClient domain.LLMClient
	if cfg.LLM.Enabled {
		client, err := llm.NewOpenAIClient(&cfg.LLM, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize LLM client")
		}
		llmClient = client
		logger.WithField("model", cfg.LLM.Model).Info("LLM path enabled")
	} else {
		logger.Info("LLM path disabled, running rule-based only")
	}

	engine := service.NewEngine(logger, formulary, labels, evidence, dosing, llmClient, cfg.LLM.Timeout)
	server := api.NewServer(configManager, engine, formulary, logger, checks...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting biologic optimizer server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func setupLogger(cfg *domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}

func buildFormulary(db *database.DB, redisClient *redis.Client, cfg *domain.Config, logger *logrus.Logger) domain.FormularyService {
	if db == nil {
		logger.Warn("Formulary backed by empty in-memory store; load entries via the API")
		return repository.NewMemoryFormulary()
	}

	base := repository.NewPostgresFormulary(db.Pool, logger)
	cached, err := repository.NewCachedFormulary(base, redisClient, cfg.Cache.DefaultTTL, logger)
	if err != nil {
		logger.WithError(err).Warn("Formulary cache unavailable, using direct lookups")
		return base
	}
	return cached
}

func buildEvidence(db *database.DB, cfg *domain.Config, logger *logrus.Logger) domain.EvidenceService {
	if db != nil {
		store, err := repository.NewPostgresEvidenceFromURL(database.URL(&cfg.Database))
		if err == nil {
			return store
		}
		logger.WithError(err).Warn("Postgres evidence store unavailable, falling back to local store")
	}

	store, err := repository.NewSQLiteEvidence(localEvidencePath)
	if err != nil {
		logger.WithError(err).Warn("Local evidence store unavailable, evidence lookups disabled")
		return repository.NewMemoryEvidence()
	}
	return store
}

func buildLabels(cfg *domain.Config, redisClient *redis.Client, logger *logrus.Logger) domain.DrugLabelService {
	client := druglabel.NewClient(&cfg.DrugLabel, logger)
	return druglabel.NewResilientClient(client, &cfg.DrugLabel, redisClient, logger)
}
