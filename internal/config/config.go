package config

type (
	Config struct {
		Gateway   GatewayConfig             `yaml:"gateway"`
		Logging   LoggingConfig             `yaml:"logging"`
		Fetch     FetchConfig               `yaml:"fetch"`
		Browser   BrowserConfig             `yaml:"browser"`
		Cache     CacheConfig               `yaml:"cache"`
		RateLimit RateLimitConfig           `yaml:"rate_limit"`
		Jobs      JobsConfig                `yaml:"jobs"`
		Escalate  EscalateConfig            `yaml:"escalate"`
		Providers map[string]ProviderConfig `yaml:"providers"`
		Baas      map[string]BaasConfig     `yaml:"baas"`
	}

	GatewayConfig struct {
		Bind           string `yaml:"bind"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	FetchConfig struct {
		TimeoutSec   int   `yaml:"timeout_sec"`
		MaxRedirects int   `yaml:"max_redirects"`
		MaxBodyBytes int64 `yaml:"max_body_bytes"`
		MaxDocBytes  int64 `yaml:"max_doc_bytes"`
	}

	BrowserConfig struct {
		MaxConcurrentPages int    `yaml:"max_concurrent_pages"`
		NavTimeoutSec      int    `yaml:"nav_timeout_sec"`
		BinaryPath         string `yaml:"binary_path"`
	}

	CacheConfig struct {
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		LRUSize       int    `yaml:"lru_size"`
	}

	RateLimitConfig struct {
		MainPerMinute    int `yaml:"main_per_minute"`
		ExtractPerMinute int `yaml:"extract_per_minute"`
		BatchPerMinute   int `yaml:"batch_per_minute"`
		AsyncPerMinute   int `yaml:"async_per_minute"`
	}

	JobsConfig struct {
		TTLSec int `yaml:"ttl_sec"`
	}

	EscalateConfig struct {
		DefaultProviderID string `yaml:"default_provider_id"`
		DefaultModel      string `yaml:"default_model"`
	}

	// ProviderConfig mirrors the shape internal/provider's constructors
	// expect: an opaque map handed to the backend-specific config parser.
	ProviderConfig struct {
		ID     string         `yaml:"-"`
		Type   string         `yaml:"type"` // openai, anthropic, gemini, ollama, qwen
		Config map[string]any `yaml:"config"`
	}

	// BaasConfig configures one browser-as-a-service anti-bot provider.
	BaasConfig struct {
		ID        string `yaml:"-"`
		Type      string `yaml:"type"` // cloudflare, scraperapi, browserless
		APIKey    string `yaml:"api_key"`
		AccountID string `yaml:"account_id,omitempty"`
		Endpoint  string `yaml:"endpoint,omitempty"`
		// Order ranks providers cheapest/highest-quality first; lower runs first.
		Order int `yaml:"order"`
	}
)
