package domain

import "time"

// LLMProviderConfig configures the completion service
type LLMProviderConfig struct {
	Mode         string `json:"mode"`          // "anthropic", "remote" or "local"
	AnthropicURL string `json:"anthropic_url"` // "https://api.anthropic.com/v1/messages"
	LocalURL     string `json:"local_url"`     // "http://localhost:11434/v1"
	RemoteURL    string `json:"remote_url"`    // "https://api.openai.com/v1"
	APIKey       string `json:"api_key"`       // may be sealed with the "enc:" prefix
	DefaultModel string `json:"default_model"` // "claude-sonnet-4-5"
	MaxTokens    int    `json:"max_tokens"`
}

// InventoryConfig configures the remote MCP tool service
type InventoryConfig struct {
	ServerURL    string        `json:"server_url"`
	ToolCacheTTL time.Duration `json:"tool_cache_ttl"`
}

// RetryConfig sets attempt budgets for the resilient transport
type RetryConfig struct {
	CompletionAttempts int `json:"completion_attempts"`
	ToolCallAttempts   int `json:"tool_call_attempts"`
}

// ServerConfig configures the inbound HTTP surface
type ServerConfig struct {
	Addr                  string        `json:"addr"`
	AllowedOrigins        []string      `json:"allowed_origins"`
	ClientTimeout         time.Duration `json:"client_timeout"`
	SearchTimeout         time.Duration `json:"search_timeout"`
	MaxConcurrentSearches int64         `json:"max_concurrent_searches"`
	SearchLogPath         string        `json:"search_log_path"` // "" is in-memory, "off" disables
}

// AppConfig is the main application configuration
type AppConfig struct {
	LLM       LLMProviderConfig `json:"llm"`
	Inventory InventoryConfig   `json:"inventory"`
	Retry     RetryConfig       `json:"retry"`
	Server    ServerConfig      `json:"server"`
}

// DefaultConfig returns safe defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		LLM: LLMProviderConfig{
			Mode:         "anthropic",
			AnthropicURL: "https://api.anthropic.com/v1/messages",
			LocalURL:     "http://localhost:11434/v1",
			RemoteURL:    "https://api.openai.com/v1",
			DefaultModel: "claude-sonnet-4-5",
			MaxTokens:    4096,
		},
		Inventory: InventoryConfig{
			ServerURL:    "https://test.apigee.hostelworld.com/inventory-mcp-service-plan-trip-server/mcp",
			ToolCacheTTL: 5 * time.Minute,
		},
		Retry: RetryConfig{
			CompletionAttempts: 3,
			ToolCallAttempts:   2,
		},
		Server: ServerConfig{
			Addr:                  ":8080",
			AllowedOrigins:        []string{"*"},
			ClientTimeout:         60 * time.Second,
			SearchTimeout:         90 * time.Second,
			MaxConcurrentSearches: 16,
		},
	}
}
