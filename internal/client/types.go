package client

// Wire types mirroring the extraction API's request/response schema.

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	URL           string `json:"url"`
	Prompt        string `json:"prompt"`
	Model         string `json:"model,omitempty"`
	SchemaName    string `json:"schema_name,omitempty"`
	RateLimitMode string `json:"rate_limit_mode,omitempty"`
	StealthLevel  string `json:"stealth_level,omitempty"`
	UseCache      bool   `json:"use_cache"`
	MarkdownMode  bool   `json:"markdown_mode"`
}

// ScrapeMetadata describes how a scrape executed.
type ScrapeMetadata struct {
	ExecutionTime    float64 `json:"execution_time"`
	ModelUsed        string  `json:"model_used"`
	FallbackAttempts int     `json:"fallback_attempts"`
	Cached           bool    `json:"cached"`
	ValidationPassed *bool   `json:"validation_passed"`
}

// ScrapeResponse is the result of a single-URL extraction.
type ScrapeResponse struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data"`
	Metadata ScrapeMetadata `json:"metadata"`
	Error    *string        `json:"error"`
}

// HealthConnections reports the backend's upstream connections.
type HealthConnections struct {
	Ollama bool `json:"ollama"`
	Redis  bool `json:"redis"`
}

// HealthBackend reports which backend features are active.
type HealthBackend struct {
	CacheEnabled   bool `json:"cache_enabled"`
	MetricsEnabled bool `json:"metrics_enabled"`
}

// HealthStatus is the payload of GET /health. Status is "healthy",
// "degraded", or "unhealthy".
type HealthStatus struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Version       string            `json:"version"`
	Connections   HealthConnections `json:"connections"`
	Backend       HealthBackend     `json:"backend"`
}

// Healthy reports whether the service considers itself fully operational.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// RemoteConfig is the payload of GET /api/v1/config.
type RemoteConfig struct {
	OllamaBaseURL       string `json:"ollama_base_url"`
	RedisHost           string `json:"redis_host"`
	RedisPort           int    `json:"redis_port"`
	DefaultModel        string `json:"default_model"`
	DefaultRateLimit    string `json:"default_rate_limit"`
	DefaultStealthLevel string `json:"default_stealth_level"`
}

// RemoteConfigUpdate is the payload of PUT /api/v1/config. Nil fields are
// left unchanged by the server.
type RemoteConfigUpdate struct {
	OllamaBaseURL       *string `json:"ollama_base_url,omitempty"`
	RedisHost           *string `json:"redis_host,omitempty"`
	RedisPort           *int    `json:"redis_port,omitempty"`
	DefaultModel        *string `json:"default_model,omitempty"`
	DefaultRateLimit    *string `json:"default_rate_limit,omitempty"`
	DefaultStealthLevel *string `json:"default_stealth_level,omitempty"`
}
