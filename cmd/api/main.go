package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/essaymark/essaymark-go-api/internal/config"
	"github.com/essaymark/essaymark-go-api/internal/database"
	"github.com/essaymark/essaymark-go-api/internal/examiner"
	"github.com/essaymark/essaymark-go-api/internal/handler"
	"github.com/essaymark/essaymark-go-api/internal/middleware"
	"github.com/essaymark/essaymark-go-api/internal/models"
	"github.com/essaymark/essaymark-go-api/internal/progress"
	"github.com/essaymark/essaymark-go-api/internal/ratelimit"
	"github.com/essaymark/essaymark-go-api/internal/repository"
	"github.com/essaymark/essaymark-go-api/internal/router"
	"github.com/essaymark/essaymark-go-api/internal/service"
	"github.com/essaymark/essaymark-go-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.GradingRecord{}, &models.ExaminerResultRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	limiter, err := buildLimiter(cfg)
	if err != nil {
		log.Fatalf("failed to configure rate limiter: %v", err)
	}

	completer := buildCompleter(cfg, logger)

	var runner *examiner.Runner
	var summarizer *service.SummaryGenerator
	if completer != nil {
		runner = examiner.NewRunner(completer, examiner.RunnerConfig{
			Timeout:       cfg.ExaminerTimeout,
			FallbackRatio: cfg.FallbackRatio,
		}, logger)
		summarizer = service.NewSummaryGenerator(completer, service.SummaryConfig{
			Timeout: cfg.SummaryTimeout,
		}, logger)
	} else {
		logger.Warn().Msg("no language model configured, grading requests will be rejected")
	}

	hub := progress.NewHub(logger)
	broadcaster := progress.Fanout{hub}
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		broadcaster = append(broadcaster, progress.NewNATSBroadcaster(natsConn, "", logger))
	}

	bands, err := service.ParseGradeBands(cfg.GradeBands)
	if err != nil {
		log.Fatalf("invalid grade bands: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	registry := examiner.NewRegistry()
	gradingRepo := repository.NewGradingRepository(db)

	gradingService := service.NewGradingService(registry, runner, summarizer, limiter, broadcaster, gradingRepo, validate, bands, logger)

	gradingHandler := handler.NewGradingHandler(gradingService, validate, logger)
	progressHandler := handler.NewProgressHandler(hub, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, logger)
	router.Register(app, cfg, router.Dependencies{
		GradingHandler:  gradingHandler,
		ProgressHandler: progressHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		AIConfigured:    completer != nil,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildLimiter(cfg config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimitBackend == "redis" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(redisClient), nil
	}
	return ratelimit.NewMemoryLimiter(), nil
}

// buildCompleter returns nil whenever no usable language model is configured, which
// makes the service reject grading requests with 503 instead of degrading every
// panel to placeholder results.
func buildCompleter(cfg config.Config, logger zerolog.Logger) ai.Completer {
	if cfg.AIProvider != "openai" {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("unsupported language model provider, grading requests will be rejected")
		return nil
	}
	if cfg.OpenAIAPIKey == "" {
		return nil
	}

	completer, err := ai.NewOpenAICompleter(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
		Logger: logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create openai completer")
		return nil
	}
	return completer
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
