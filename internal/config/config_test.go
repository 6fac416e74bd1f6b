package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-plain")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Mode)
	assert.Equal(t, "sk-ant-plain", cfg.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.DefaultModel)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.Inventory.ToolCacheTTL)
	assert.Equal(t, 3, cfg.Retry.CompletionAttempts)
	assert.Equal(t, 2, cfg.Retry.ToolCallAttempts)
	assert.Contains(t, cfg.Inventory.ServerURL, "inventory-mcp-service-plan-trip-server/mcp")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Local")
	t.Setenv("LLM_MODEL", "qwen2.5:7b")
	t.Setenv("TOOL_CACHE_TTL", "60000")
	t.Setenv("SEARCH_TIMEOUT", "45s")
	t.Setenv("MAX_CONCURRENT_SEARCHES", "4")
	t.Setenv("TOOL_CALL_MAX_ATTEMPTS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SEARCH_LOG_PATH", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.LLM.Mode)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.DefaultModel)
	assert.Equal(t, time.Minute, cfg.Inventory.ToolCacheTTL)
	assert.Equal(t, 45*time.Second, cfg.Server.SearchTimeout)
	assert.Equal(t, int64(4), cfg.Server.MaxConcurrentSearches)
	assert.Equal(t, 3, cfg.Retry.ToolCallAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "off", cfg.Server.SearchLogPath)
}

func TestLoad_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("TOOL_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.Inventory.ToolCacheTTL)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := Load()
	assert.ErrorContains(t, err, "unsupported LLM_PROVIDER")
}

func TestLoad_UnsealsAPIKey(t *testing.T) {
	t.Setenv(SecretKeyEnv, "deploy-passphrase")
	secret, err := NewSecretKey()
	require.NoError(t, err)
	sealed, err := secret.Encrypt("sk-ant-sealed")
	require.NoError(t, err)

	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", sealed)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-sealed", cfg.LLM.APIKey)
}

func TestLoadEnv_ProcessEnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("HOSTELSCOUT_TEST_A=from-file\nHOSTELSCOUT_TEST_B=from-file\n"), 0o600))

	t.Setenv("HOSTELSCOUT_TEST_A", "from-env")
	t.Setenv("HOSTELSCOUT_TEST_B", "")
	require.NoError(t, os.Unsetenv("HOSTELSCOUT_TEST_B"))

	LoadEnv(slog.New(slog.NewTextHandler(io.Discard, nil)), file)

	assert.Equal(t, "from-env", os.Getenv("HOSTELSCOUT_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("HOSTELSCOUT_TEST_B"))
}
