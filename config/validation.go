package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigRequirements defines required configuration for each environment
type ConfigRequirements struct {
	RequiredSettings []string
	RequiredSecrets  []string
}

var (
	// Environment-specific requirements
	requirements = map[Environment]ConfigRequirements{
		Development: {},
		Test:        {},
		CI: {
			RequiredSettings: []string{
				"DB_HOST",
				"DB_USER",
				"DB_NAME",
			},
		},
		Production: {
			RequiredSettings: []string{
				"DB_HOST",
				"DB_NAME",
				"PUBLIC_BASE_URL",
			},
			RequiredSecrets: []string{
				"db_user",
				"db_password",
				"app_api_secret",
				"token_encryption_key",
			},
		},
	}

	validDrivers        = []string{"postgres", "sqlite"}
	validAIProviders    = []string{"none", "gemini", "openai"}
	validSessionStores  = []string{"memory", "redis"}
	validEmbeddingKinds = []string{"hash", "gemini"}
)

// settingValue resolves a required setting name to its loaded value
func settingValue(cfg *Config, name string) string {
	switch name {
	case "DB_HOST":
		return cfg.DBHost
	case "DB_USER":
		return cfg.DBUser
	case "DB_NAME":
		return cfg.DBName
	case "PUBLIC_BASE_URL":
		return cfg.PublicBaseURL
	}
	return ""
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	env := cfg.Environment
	if env == "" {
		env = GetEnvironment()
	}
	reqs := requirements[env]

	var errs []error

	if cfg.DBDriver == "postgres" {
		for _, name := range reqs.RequiredSettings {
			if settingValue(cfg, name) == "" {
				errs = append(errs, ValidationError{Field: name, Message: "required setting is not set"})
			}
		}
	}

	secrets := secretFields(cfg)
	for _, name := range reqs.RequiredSecrets {
		if field, ok := secrets[name]; !ok || *field == "" {
			errs = append(errs, ValidationError{Field: name, Message: "required secret is not set"})
		}
	}

	if !oneOf(cfg.DBDriver, validDrivers) {
		errs = append(errs, ValidationError{Field: "DB_DRIVER", Message: fmt.Sprintf("must be one of %s", strings.Join(validDrivers, ", "))})
	}
	if !oneOf(cfg.AIProvider, validAIProviders) {
		errs = append(errs, ValidationError{Field: "AI_PROVIDER", Message: fmt.Sprintf("must be one of %s", strings.Join(validAIProviders, ", "))})
	}
	if !oneOf(cfg.SessionStore, validSessionStores) {
		errs = append(errs, ValidationError{Field: "SESSION_STORE", Message: fmt.Sprintf("must be one of %s", strings.Join(validSessionStores, ", "))})
	}
	if !oneOf(cfg.EmbeddingProvider, validEmbeddingKinds) {
		errs = append(errs, ValidationError{Field: "EMBEDDING_PROVIDER", Message: fmt.Sprintf("must be one of %s", strings.Join(validEmbeddingKinds, ", "))})
	}

	if cfg.AIProvider == "gemini" && cfg.GeminiAPIKey == "" {
		errs = append(errs, ValidationError{Field: "GEMINI_API_KEY", Message: "required when AI_PROVIDER=gemini"})
	}
	if cfg.AIProvider == "openai" && cfg.DeepSeekAPIKey == "" {
		errs = append(errs, ValidationError{Field: "DEEPSEEK_API_KEY", Message: "required when AI_PROVIDER=openai"})
	}
	if cfg.EmbeddingProvider == "gemini" && cfg.GeminiAPIKey == "" {
		errs = append(errs, ValidationError{Field: "GEMINI_API_KEY", Message: "required when EMBEDDING_PROVIDER=gemini"})
	}
	if cfg.SessionStore == "redis" && !cfg.RedisEnabled() {
		errs = append(errs, ValidationError{Field: "REDIS_HOST", Message: "required when SESSION_STORE=redis"})
	}

	if cfg.TokenEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil || len(key) != 32 {
			errs = append(errs, ValidationError{Field: "TOKEN_ENCRYPTION_KEY", Message: "must be 64 hex characters"})
		}
	}

	if cfg.MaxMessageLength <= 0 {
		errs = append(errs, ValidationError{Field: "MAX_MESSAGE_LENGTH", Message: "must be positive"})
	}
	if cfg.SessionMaxMessages < 2 {
		errs = append(errs, ValidationError{Field: "SESSION_MAX_MESSAGES", Message: "must be at least 2"})
	}
	if cfg.SearchResultLimit <= 0 || cfg.SearchResultLimit > 50 {
		errs = append(errs, ValidationError{Field: "SEARCH_RESULT_LIMIT", Message: "must be between 1 and 50"})
	}

	if len(errs) > 0 {
		lines := make([]string, 0, len(errs))
		for _, err := range errs {
			lines = append(lines, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(lines, "\n"))
	}

	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
