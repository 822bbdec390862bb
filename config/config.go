package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment `ignored:"true"`

	// Server configuration
	ServerPort     string   `envconfig:"SERVER_PORT" default:"8080"`
	ServerHost     string   `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	PublicBaseURL  string   `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`

	// Database configuration
	DBDriver      string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost        string `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER"`
	DBPassword    string `envconfig:"DB_PASSWORD"`
	DBName        string `envconfig:"DB_NAME" default:"storefront"`
	DBSSLMode     string `envconfig:"DB_SSL_MODE" default:"disable"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"storefront.db"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	// Redis configuration
	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisURL      string `envconfig:"REDIS_URL"`

	// Platform app credentials. AppAPISecret signs admin session tokens,
	// AppProxySecret signs storefront proxy requests.
	AppAPISecret       string `envconfig:"APP_API_SECRET"`
	AppProxySecret     string `envconfig:"APP_PROXY_SECRET"`
	TokenEncryptionKey string `envconfig:"TOKEN_ENCRYPTION_KEY"`

	// Commerce configuration
	StoreName           string        `envconfig:"STORE_NAME" default:"our store"`
	ShopifyAPIVersion   string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-10"`
	ShopifyShopDomain   string        `envconfig:"SHOPIFY_SHOP_DOMAIN"`
	ShopifyAccessToken  string        `envconfig:"SHOPIFY_ACCESS_TOKEN"`
	LocalCatalogEnabled bool          `envconfig:"LOCAL_CATALOG_ENABLED" default:"true"`
	ProductCacheTTL     time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`
	SearchResultLimit   int           `envconfig:"SEARCH_RESULT_LIMIT" default:"5"`

	// Generative AI configuration
	AIProvider        string        `envconfig:"AI_PROVIDER" default:"none"`
	AITemperature     float32       `envconfig:"AI_TEMPERATURE" default:"0.4"`
	AITimeout         time.Duration `envconfig:"AI_TIMEOUT" default:"20s"`
	AIHistoryWindow   int           `envconfig:"AI_HISTORY_WINDOW" default:"10"`
	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel       string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	DeepSeekAPIKey    string        `envconfig:"DEEPSEEK_API_KEY"`
	DeepSeekAPIURL    string        `envconfig:"DEEPSEEK_API_URL" default:"https://api.deepseek.com/v1"`
	DeepSeekModel     string        `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
	EmbeddingProvider string        `envconfig:"EMBEDDING_PROVIDER" default:"hash"`

	// Chat configuration
	SessionStore       string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionMaxMessages int           `envconfig:"SESSION_MAX_MESSAGES" default:"50"`
	MaxMessageLength   int           `envconfig:"MAX_MESSAGE_LENGTH" default:"1000"`
	ChatRateLimit      int           `envconfig:"CHAT_RATE_LIMIT" default:"30"`
	IntentsFile        string        `envconfig:"INTENTS_FILE"`

	// Transcript archive
	S3BucketName string `envconfig:"S3_BUCKET_NAME"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// secretFields maps Docker secret names to the config fields they fill
// when the matching environment variable is empty.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"db_user":              &cfg.DBUser,
		"db_password":          &cfg.DBPassword,
		"redis_password":       &cfg.RedisPassword,
		"redis_url":            &cfg.RedisURL,
		"app_api_secret":       &cfg.AppAPISecret,
		"app_proxy_secret":     &cfg.AppProxySecret,
		"token_encryption_key": &cfg.TokenEncryptionKey,
		"shopify_access_token": &cfg.ShopifyAccessToken,
		"gemini_api_key":       &cfg.GeminiAPIKey,
		"deepseek_api_key":     &cfg.DeepSeekAPIKey,
	}
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := &Config{Environment: env}

	// Load configuration based on environment
	switch env {
	case CI:
		if err := loadCIConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load CI configuration: %w", err)
		}
	case Development, Test:
		if err := loadDevConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load development configuration: %w", err)
		}
	case Production:
		if err := loadProdConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load production configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadCIConfig loads configuration for CI using environment variables only.
// Sensitive values come from the TEST_ prefixed GitHub Actions secrets.
func loadCIConfig(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	if v := os.Getenv("TEST_DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if cfg.DBPassword == "" {
		return fmt.Errorf("TEST_DB_PASSWORD environment variable is required in CI environment")
	}
	if v := os.Getenv("TEST_APP_API_SECRET"); v != "" {
		cfg.AppAPISecret = v
	}
	if v := os.Getenv("TEST_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TEST_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	return nil
}

// loadDevConfig loads configuration for development and test. A .env file in
// the working directory is honoured, then Docker secrets fill any gaps.
func loadDevConfig(cfg *Config) error {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	fillSecrets(cfg)
	return nil
}

// loadProdConfig loads configuration for production. Secrets must be provided
// through Docker secrets or *_FILE variables, never plain environment.
func loadProdConfig(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	fillSecrets(cfg)
	return nil
}

// fillSecrets reads every unset secret field from NAME_FILE or the secrets directory
func fillSecrets(cfg *Config) {
	for name, field := range secretFields(cfg) {
		if *field != "" {
			continue
		}
		if path := os.Getenv(strings.ToUpper(name) + "_FILE"); path != "" {
			if data, err := os.ReadFile(path); err == nil {
				*field = strings.TrimSpace(string(data))
				continue
			}
		}
		if cfg.Environment.UsesSecretsDir() {
			*field = readSecret(name)
		}
	}
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

// ServerAddr returns the listen address
func (c *Config) ServerAddr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// RedisEnabled reports whether enough Redis settings exist to try a connection
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// ArchiveEnabled reports whether transcripts can be archived to S3
func (c *Config) ArchiveEnabled() bool {
	return c.S3BucketName != ""
}
