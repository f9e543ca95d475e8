package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/complaint-intake-api/internal/config"
	"github.com/noah-isme/complaint-intake-api/internal/database"
	"github.com/noah-isme/complaint-intake-api/internal/handler"
	"github.com/noah-isme/complaint-intake-api/internal/middleware"
	"github.com/noah-isme/complaint-intake-api/internal/repository"
	"github.com/noah-isme/complaint-intake-api/internal/router"
	"github.com/noah-isme/complaint-intake-api/internal/service"
	"github.com/noah-isme/complaint-intake-api/internal/utils"
	"github.com/noah-isme/complaint-intake-api/pkg/ai"
	cloud "github.com/noah-isme/complaint-intake-api/pkg/cloudinary"
	"github.com/noah-isme/complaint-intake-api/pkg/objectstore"
	"github.com/noah-isme/complaint-intake-api/pkg/vectorstore"
	"github.com/noah-isme/complaint-intake-api/pkg/videointel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", cfg.AppName).Logger()
	ctx := context.Background()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// OpenAI always serves vision, transcription and embeddings; ai.provider
	// only selects the chat model.
	openaiClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:          cfg.OpenAIAPIKey,
		Model:           cfg.OpenAIModel,
		EmbeddingModel:  cfg.OpenAIEmbeddingModel,
		VisionMaxTokens: cfg.OpenAIVisionMaxTokens,
		Temperature:     cfg.OpenAITemperature,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create openai client")
	}

	chat, err := chatModel(ctx, cfg, openaiClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create chat model")
	}

	index, closeIndex, err := vectorIndex(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare vector index")
	}
	defer closeIndex()

	storage, err := fileStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create file storage")
	}

	var annotator service.VideoAnnotator
	if cfg.GoogleProjectID != "" {
		videoClient, err := videointel.New(ctx, videointel.Config{
			ProjectID:    cfg.GoogleProjectID,
			PrivateKey:   cfg.GooglePrivateKey,
			ClientEmail:  cfg.GoogleClientEmail,
			LanguageCode: cfg.VideoLanguageCode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create video intelligence client")
		}
		defer videoClient.Close()
		annotator = videoClient
	} else {
		logger.Warn().Msg("google project id not set, video analysis disabled")
	}

	var events service.ComplaintEvents = service.NopComplaintEvents{}
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, complaint events disabled")
		} else {
			defer conn.Drain()
			events = service.NewNATSComplaintEvents(conn, cfg.NATSSubject, logger)
		}
	}

	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, rate limiting per instance")
		} else {
			defer redisClient.Close()
			limiterStorage = middleware.NewRedisStorage(redisClient, "intake:ratelimit")
		}
	}

	complaintRepo := repository.NewComplaintRepository(db)
	complaintService := service.NewComplaintService(complaintRepo, events, validate, logger)
	if _, err := complaintService.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure complaint schema")
	}

	inputs := service.NewInputNormalizer(storage, openaiClient, openaiClient, annotator, cfg.UploadMaxSizeMB, logger)
	retriever := service.NewSelfQueryRetriever(chat, openaiClient, index, cfg.VectorTopK, logger)
	analysisService := service.NewAnalysisService(
		inputs,
		service.NewClassifier(chat, logger),
		service.NewCategoryResolver(chat, retriever, logger),
		complaintService,
		logger,
	)
	referenceService := service.NewReferenceService(openaiClient, index, retriever, chat, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes()) + 1<<20,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AnalysisHandler:  handler.NewAnalysisHandler(analysisService, cfg.UploadMaxBytes(), logger),
		ComplaintHandler: handler.NewComplaintHandler(complaintService, middleware.AdminGuard(cfg.JWTSecret, "admin"), logger),
		ReferenceHandler: handler.NewReferenceHandler(referenceService, cfg.UploadMaxBytes(), logger),
		Identity:         middleware.IdentifyCaller(cfg.JWTSecret),
		RateLimiter:      middleware.RateLimit("analysis", cfg.RateLimitMax, cfg.RateLimitWindow, limiterStorage),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	logger.Info().
		Str("addr", cfg.HTTPAddress()).
		Str("chat_provider", chat.Name()).
		Str("vector_store", index.Name()).
		Msg("complaint intake api started")

	waitForShutdown(app, logger)
}

func chatModel(ctx context.Context, cfg config.Config, openaiClient *ai.OpenAIClient, logger zerolog.Logger) (ai.ChatModel, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicClient(ai.AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			Temperature: float64(cfg.OpenAITemperature),
			Logger:      logger,
		})
	case "gemini":
		return ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.OpenAITemperature,
			Logger:      logger,
		})
	default:
		return openaiClient, nil
	}
}

func vectorIndex(ctx context.Context, cfg config.Config, db *gorm.DB, logger zerolog.Logger) (vectorstore.Index, func(), error) {
	noop := func() {}

	switch cfg.VectorStore {
	case "milvus":
		index, err := vectorstore.NewMilvusIndex(ctx, vectorstore.MilvusConfig{
			Address:    cfg.MilvusAddr,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			APIKey:     cfg.MilvusAPIKey,
			Collection: cfg.MilvusCollection,
			Dimension:  cfg.VectorDimensions,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return index, func() { _ = index.Close() }, nil
	case "memory":
		logger.Warn().Msg("using in-memory vector index, reference documents are lost on restart")
		return vectorstore.NewMemoryIndex(cfg.VectorDimensions), noop, nil
	default:
		index := vectorstore.NewPGVectorIndex(db, cfg.VectorDimensions, logger)
		if err := index.Migrate(ctx); err != nil {
			return nil, noop, fmt.Errorf("migrate pgvector index: %w", err)
		}
		return index, noop, nil
	}
}

func fileStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.StorageProvider == "minio" {
		return objectstore.New(objectstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			Region:    cfg.MinioRegion,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.UploadFolder,
			UseSSL:    cfg.MinioUseSSL,
			URLExpiry: cfg.MinioURLExpiry,
		}, logger)
	}

	return cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.UploadFolder,
	}, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
