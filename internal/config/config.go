package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// LoadEnv loads .env files into the process environment. Variables already
// set in the environment win.
func LoadEnv(logger *slog.Logger, files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file", "file", file, "error", err)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		logger.Debug("no env files loaded, relying on process environment")
		return
	}
	logger.Debug("loaded env files", "files", strings.Join(loaded, ", "))
}

// Load builds the application config from defaults and environment variables.
// Sealed ("enc:") API keys are decrypted with the HOSTELSCOUT_SECRET_KEY.
func Load() (*domain.AppConfig, error) {
	cfg := domain.DefaultConfig()

	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Server.ClientTimeout = getDuration("HTTP_CLIENT_TIMEOUT", cfg.Server.ClientTimeout)
	cfg.Server.SearchTimeout = getDuration("SEARCH_TIMEOUT", cfg.Server.SearchTimeout)
	cfg.Server.MaxConcurrentSearches = int64(getInt("MAX_CONCURRENT_SEARCHES", int(cfg.Server.MaxConcurrentSearches)))
	cfg.Server.SearchLogPath = getEnv("SEARCH_LOG_PATH", cfg.Server.SearchLogPath)

	cfg.LLM.Mode = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Mode))
	cfg.LLM.AnthropicURL = getEnv("ANTHROPIC_API_URL", cfg.LLM.AnthropicURL)
	cfg.LLM.RemoteURL = getEnv("LLM_REMOTE_URL", cfg.LLM.RemoteURL)
	cfg.LLM.LocalURL = getEnv("LLM_LOCAL_URL", cfg.LLM.LocalURL)
	cfg.LLM.MaxTokens = getInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	if cfg.LLM.Mode == "anthropic" {
		cfg.LLM.APIKey = getEnv("ANTHROPIC_API_KEY", "")
		cfg.LLM.DefaultModel = getEnv("ANTHROPIC_MODEL", cfg.LLM.DefaultModel)
	} else {
		cfg.LLM.APIKey = getEnv("LLM_API_KEY", "")
		cfg.LLM.DefaultModel = getEnv("LLM_MODEL", "")
	}

	cfg.Inventory.ServerURL = getEnv("MCP_SERVER_URL", cfg.Inventory.ServerURL)
	cfg.Inventory.ToolCacheTTL = getDuration("TOOL_CACHE_TTL", cfg.Inventory.ToolCacheTTL)

	cfg.Retry.CompletionAttempts = getInt("COMPLETION_MAX_ATTEMPTS", cfg.Retry.CompletionAttempts)
	cfg.Retry.ToolCallAttempts = getInt("TOOL_CALL_MAX_ATTEMPTS", cfg.Retry.ToolCallAttempts)

	if IsSealed(cfg.LLM.APIKey) {
		secret, err := NewSecretKey()
		if err != nil {
			return nil, fmt.Errorf("failed to load secret key: %w", err)
		}
		plain, err := secret.Decrypt(cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal llm api key: %w", err)
		}
		cfg.LLM.APIKey = plain
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with
func Validate(cfg *domain.AppConfig) error {
	switch cfg.LLM.Mode {
	case "anthropic", "local", "remote":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLM.Mode)
	}
	if strings.TrimSpace(cfg.Inventory.ServerURL) == "" {
		return fmt.Errorf("MCP_SERVER_URL must not be empty")
	}
	if cfg.Inventory.ToolCacheTTL <= 0 {
		return fmt.Errorf("TOOL_CACHE_TTL must be positive")
	}
	if cfg.Retry.CompletionAttempts < 1 || cfg.Retry.ToolCallAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if cfg.Server.MaxConcurrentSearches < 1 {
		return fmt.Errorf("MAX_CONCURRENT_SEARCHES must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getDuration accepts Go duration strings ("90s", "5m") or bare milliseconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := cast.ToDurationE(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
