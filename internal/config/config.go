package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	pkgRetry "github.com/repoqa/repoqa-backend/internal/pkg/retry"
)

const (
	defaultGitHubURL  = "https://api.github.com"
	defaultRawBaseURL = "https://raw.githubusercontent.com"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr  string `env:"SERVER_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Message broker configuration
	BrokerCfg BrokerConfig `envPrefix:"AMQP_"`

	// Local content store
	StorageRoot string `env:"STORAGE_ROOT" envDefault:"./Repository_Files"`

	// Pipeline workers
	DownloadCfg    DownloadConfig    `envPrefix:"DOWNLOAD_"`
	EmbedWorkerCfg EmbedWorkerConfig `envPrefix:"EMBED_WORKER_"`

	// External service configurations
	OpenAICfg OpenAIConfig `envPrefix:"OPENAI_"`
	GitHubCfg GitHubConfig `envPrefix:"GITHUB_"`

	QueryCfg   QueryConfig   `envPrefix:"QUERY_"`
	AuthCfg    AuthConfig    `envPrefix:"AUTH_"`
	WebhookCfg WebhookConfig `envPrefix:"WEBHOOK_"`

	RegistryCacheTTL time.Duration `env:"REGISTRY_CACHE_TTL" envDefault:"1m"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

type BrokerConfig struct {
	URL            string        `env:"URL,notEmpty"`
	ConnectionName string        `env:"CONNECTION_NAME" envDefault:"repoqa"`
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
	Heartbeat      time.Duration `env:"HEARTBEAT" envDefault:"10s"`
}

// DownloadConfig configures the acquisition worker pool
type DownloadConfig struct {
	HTTPClientConfig
	Concurrency int64           `env:"CONCURRENCY" envDefault:"5"`
	Timeout     time.Duration   `env:"TIMEOUT" envDefault:"300s"`
	MaxFileSize int64           `env:"MAX_FILE_SIZE" envDefault:"10485760"`
	Retry       pkgRetry.Policy `envPrefix:"RETRY_"`
}

type EmbedWorkerConfig struct {
	// Prefetch of the Embeddings Queue consumer, 0 is unlimited
	Prefetch int `env:"PREFETCH" envDefault:"0"`
}

type OpenAIConfig struct {
	APIKey         string          `env:"API_KEY"`
	BaseURL        string          `env:"BASE_URL"`
	EmbeddingModel string          `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	ChatModel      string          `env:"CHAT_MODEL" envDefault:"gpt-4.1-mini"`
	Timeout        time.Duration   `env:"TIMEOUT" envDefault:"60s"`
	Retry          pkgRetry.Policy `envPrefix:"RETRY_"`
}

type GitHubConfig struct {
	HTTPClientConfig
	RawBaseURL         string          `env:"RAW_BASE_URL" envDefault:"https://raw.githubusercontent.com"`
	DefaultBranch      string          `env:"DEFAULT_BRANCH" envDefault:"main"`
	WebhookCallbackURL string          `env:"WEBHOOK_CALLBACK_URL"`
	WebhookSecret      string          `env:"WEBHOOK_SECRET"`
	Retry              pkgRetry.Policy `envPrefix:"RETRY_"`
}

type QueryConfig struct {
	TopK        int     `env:"TOP_K" envDefault:"10"`
	Temperature float32 `env:"TEMPERATURE" envDefault:"0.2"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type WebhookConfig struct {
	DedupTTL time.Duration `env:"DEDUP_TTL" envDefault:"10m"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	UserAgent             string        `env:"USER_AGENT"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

// Component names a process of the binary; each validates the settings it needs.
type Component string

const (
	ComponentServer      Component = "serve"
	ComponentAcquisition Component = "acquire"
	ComponentEmbedding   Component = "embed"
)

func LoadConfig(environment string, component Component) (*Config, error) {
	envFile := getEnvFile(environment)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment
	applyDefaults(cfg)

	if err := validateConfig(cfg, component); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.GitHubCfg.Url == "" {
		cfg.GitHubCfg.Url = defaultGitHubURL
	}
	cfg.GitHubCfg.Url = strings.TrimRight(cfg.GitHubCfg.Url, "/")
	if cfg.GitHubCfg.RawBaseURL == "" {
		cfg.GitHubCfg.RawBaseURL = defaultRawBaseURL
	}
}

func validateConfig(cfg *Config, component Component) error {
	var errors []string

	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	if cfg.DownloadCfg.Concurrency < 1 || cfg.DownloadCfg.Concurrency > 256 {
		errors = append(errors, fmt.Sprintf("DOWNLOAD_CONCURRENCY must be between 1 and 256, got %d", cfg.DownloadCfg.Concurrency))
	}

	if cfg.DownloadCfg.Retry.Attempts < 1 {
		errors = append(errors, "DOWNLOAD_RETRY_ATTEMPTS must be at least 1")
	}

	if cfg.EmbedWorkerCfg.Prefetch < 0 {
		errors = append(errors, fmt.Sprintf("EMBED_WORKER_PREFETCH must not be negative, got %d", cfg.EmbedWorkerCfg.Prefetch))
	}

	if cfg.QueryCfg.TopK < 1 || cfg.QueryCfg.TopK > 100 {
		errors = append(errors, fmt.Sprintf("QUERY_TOP_K must be between 1 and 100, got %d", cfg.QueryCfg.TopK))
	}

	if cfg.QueryCfg.Temperature < 0 || cfg.QueryCfg.Temperature > 2 {
		errors = append(errors, fmt.Sprintf("QUERY_TEMPERATURE must be between 0 and 2, got %v", cfg.QueryCfg.Temperature))
	}

	needsOpenAI := component == ComponentServer || component == ComponentEmbedding
	if needsOpenAI && !cfg.EnableMocks && cfg.OpenAICfg.APIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required unless ENABLE_MOCKS is set")
	}

	if component == ComponentServer && cfg.AuthCfg.JWTSecret == "" {
		errors = append(errors, "AUTH_JWT_SECRET is required to serve the API")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
