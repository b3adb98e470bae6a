package config

import "time"

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string
	Port int

	// Requests per minute allowed for one client IP, 0 disables the limiter
	RateLimitPerMinute int
}

// EndpointConfig is one upstream chat-completions target
type EndpointConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	Weight   int
	Priority int
}

// UpstreamConfig holds the upstream targets and call timeouts
type UpstreamConfig struct {
	Endpoints      []EndpointConfig
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	IdleTimeout    time.Duration
}

// BudgetConfig bounds the input sent upstream, in tokens
type BudgetConfig struct {
	MaxInputTokens  int
	ResponseReserve int
	DocumentCap     int
}

// Usable is the budget left for system prompt, documents and history
func (b BudgetConfig) Usable() int {
	return b.MaxInputTokens - b.ResponseReserve
}

// ModelRoute maps a requested model onto the model actually called and the
// system prompt variant injected for it
type ModelRoute struct {
	EffectiveModel string
	PromptVariant  string
}

type ModelsConfig struct {
	Default ModelRoute
	Routes  map[string]ModelRoute
}

type ToolsConfig struct {
	// Enabled turns on the tool-aware path for every request
	Enabled     bool
	CatalogFile string

	SearchEndpoint string
	SearchAPIKey   string
	FetchMaxChars  int
	ImageEndpoint  string
	ImageAPIKey    string
	Timeout        time.Duration
}

type StorageConfig struct {
	SQLitePath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// StatusTTL bounds how long tool status is kept for a request
	StatusTTL time.Duration
}

// ObjectStoreConfig enables uploading generated images instead of inlining them
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

type AuthConfig struct {
	StaticKeys []string
	// NameClaim is the JWT claim used as display name when the key is a JWT
	NameClaim string
}

// Config holds all service configuration
type Config struct {
	Server      ServerConfig
	Upstream    UpstreamConfig
	Budget      BudgetConfig
	Models      ModelsConfig
	Prompts     map[string]string
	Tools       ToolsConfig
	Storage     StorageConfig
	Redis       RedisConfig
	ObjectStore ObjectStoreConfig
	Log         LogConfig
	Auth        AuthConfig
}
