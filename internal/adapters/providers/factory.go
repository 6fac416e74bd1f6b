package providers

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/manthysbr/hostelscout/internal/adapters/llm"
	"github.com/manthysbr/hostelscout/internal/adapters/resilient"
	"github.com/manthysbr/hostelscout/internal/core/domain"
	"github.com/manthysbr/hostelscout/internal/core/ports"
)

// Build creates the completion service from app configuration.
// It hides anthropic/local/remote provider selection from callers.
func Build(config *domain.AppConfig, client *http.Client, logger *slog.Logger) (ports.CompletionService, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	cfg := config.LLM

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "anthropic":
		transport := resilient.New(client, "anthropic", logger)
		return llm.NewAnthropicProvider(
			transport,
			strings.TrimSpace(cfg.AnthropicURL),
			strings.TrimSpace(cfg.APIKey),
			strings.TrimSpace(cfg.DefaultModel),
			cfg.MaxTokens,
		), nil
	case "local":
		baseURL := strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
		if baseURL == "" {
			baseURL = strings.TrimSpace(cfg.LocalURL)
		}
		return llm.NewOpenAIProvider(
			resilient.New(client, "llm-local", logger),
			normalizeOpenAIBaseURL(baseURL),
			strings.TrimSpace(cfg.APIKey),
			strings.TrimSpace(cfg.DefaultModel),
			cfg.MaxTokens,
		), nil
	case "remote":
		if strings.TrimSpace(cfg.RemoteURL) == "" {
			return nil, fmt.Errorf("llm remote_url is required when mode=remote")
		}
		return llm.NewOpenAIProvider(
			resilient.New(client, "llm-remote", logger),
			strings.TrimSpace(cfg.RemoteURL),
			strings.TrimSpace(cfg.APIKey),
			strings.TrimSpace(cfg.DefaultModel),
			cfg.MaxTokens,
		), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider mode: %s", cfg.Mode)
	}
}

// normalizeOpenAIBaseURL makes sure a bare Ollama host points at its /v1 API
func normalizeOpenAIBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" || strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}
