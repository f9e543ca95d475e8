package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the intake service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string
	JWTSecret   string

	AIProvider            string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAITemperature     float32
	OpenAIEmbeddingModel  string
	OpenAIVisionMaxTokens int
	AnthropicAPIKey       string
	AnthropicModel        string
	GeminiAPIKey          string
	GeminiModel           string

	VectorStore      string
	VectorTopK       int
	VectorDimensions int
	MilvusAddr       string
	MilvusUsername   string
	MilvusPassword   string
	MilvusAPIKey     string
	MilvusCollection string

	StorageProvider     string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	UploadFolder        string
	MinioEndpoint       string
	MinioRegion         string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioUseSSL         bool
	MinioURLExpiry      time.Duration

	GoogleProjectID   string
	GooglePrivateKey  string
	GoogleClientEmail string
	VideoLanguageCode string

	UploadMaxSizeMB int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UploadMaxBytes returns the upload ceiling in bytes.
func (c Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTAKE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Complaint Intake API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject_base", "complaints")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.embedding_model", "text-embedding-ada-002")
	v.SetDefault("openai.vision_max_tokens", 300)
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("vector.store", "pgvector")
	v.SetDefault("vector.top_k", 4)
	v.SetDefault("vector.dimensions", 1536)
	v.SetDefault("milvus.addr", "localhost:19530")
	v.SetDefault("milvus.collection", "reference_documents")
	v.SetDefault("storage.provider", "cloudinary")
	v.SetDefault("storage.folder", "images")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket", "complaint-evidence")
	v.SetDefault("minio.url_expiry", "168h")
	v.SetDefault("video.language_code", "en-US")
	v.SetDefault("upload.max_size_mb", 50)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	window, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	expiry, err := time.ParseDuration(v.GetString("minio.url_expiry"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid minio url expiry: %w", err)
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		NATSSubject: strings.Trim(v.GetString("nats.subject_base"), "."),
		JWTSecret:   v.GetString("jwt.secret"),

		AIProvider:            strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIModel:           v.GetString("openai.model"),
		OpenAITemperature:     float32(v.GetFloat64("openai.temperature")),
		OpenAIEmbeddingModel:  v.GetString("openai.embedding_model"),
		OpenAIVisionMaxTokens: v.GetInt("openai.vision_max_tokens"),
		AnthropicAPIKey:       v.GetString("anthropic_api_key"),
		AnthropicModel:        v.GetString("anthropic.model"),
		GeminiAPIKey:          v.GetString("gemini_api_key"),
		GeminiModel:           v.GetString("gemini.model"),

		VectorStore:      strings.ToLower(v.GetString("vector.store")),
		VectorTopK:       v.GetInt("vector.top_k"),
		VectorDimensions: v.GetInt("vector.dimensions"),
		MilvusAddr:       v.GetString("milvus.addr"),
		MilvusUsername:   v.GetString("milvus.username"),
		MilvusPassword:   v.GetString("milvus.password"),
		MilvusAPIKey:     v.GetString("milvus.api_key"),
		MilvusCollection: v.GetString("milvus.collection"),

		StorageProvider:     strings.ToLower(v.GetString("storage.provider")),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		UploadFolder:        v.GetString("storage.folder"),
		MinioEndpoint:       v.GetString("minio.endpoint"),
		MinioRegion:         v.GetString("minio.region"),
		MinioAccessKey:      v.GetString("minio.access_key"),
		MinioSecretKey:      v.GetString("minio.secret_key"),
		MinioBucket:         v.GetString("minio.bucket"),
		MinioUseSSL:         v.GetBool("minio.use_ssl"),
		MinioURLExpiry:      expiry,

		GoogleProjectID:   v.GetString("google.project_id"),
		GooglePrivateKey:  v.GetString("google.private_key"),
		GoogleClientEmail: v.GetString("google.client_email"),
		VideoLanguageCode: v.GetString("video.language_code"),

		UploadMaxSizeMB: v.GetInt("upload.max_size_mb"),
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: window,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("openai api key must be provided")
	}

	switch cfg.AIProvider {
	case "openai", "anthropic", "gemini":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	switch cfg.VectorStore {
	case "pgvector", "milvus", "memory":
	default:
		return Config{}, fmt.Errorf("unsupported vector store %q", cfg.VectorStore)
	}

	switch cfg.StorageProvider {
	case "cloudinary", "minio":
	default:
		return Config{}, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}

	if cfg.VectorTopK <= 0 {
		cfg.VectorTopK = 4
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 50
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}

	return cfg, nil
}
