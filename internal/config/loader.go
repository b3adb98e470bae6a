package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
)

const envPrefix = "CHATPROXY"

// ChangeHandler is notified with the freshly decoded config after the file changes
type ChangeHandler func(Config)

// Loader owns the viper instance backing one config file
type Loader struct {
	v    *viper.Viper
	path string

	mu       sync.Mutex
	handlers []ChangeHandler
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rateLimitPerMinute", 10)

	v.SetDefault("upstream.connectTimeout", 30*time.Second)
	v.SetDefault("upstream.totalTimeout", 300*time.Second)
	v.SetDefault("upstream.idleTimeout", 60*time.Second)

	v.SetDefault("budget.maxInputTokens", 8000)
	v.SetDefault("budget.responseReserve", 500)
	v.SetDefault("budget.documentCap", 6000)

	v.SetDefault("tools.fetchMaxChars", 5000)
	v.SetDefault("tools.timeout", 100*time.Second)

	v.SetDefault("storage.sqlitePath", "data/chat-proxy.db")
	v.SetDefault("redis.statusTTL", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 5)
	v.SetDefault("auth.nameClaim", "name")
}

// NewLoader reads the optional .env file, then the YAML file at configPath.
// Environment variables prefixed with CHATPROXY_ override file values.
func NewLoader(configPath string) (*Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return &Loader{v: v, path: configPath}, nil
}

// Load decodes the current config
func (l *Loader) Load() (Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.expandSecrets()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// expandSecrets resolves ${NAME} references in credential fields, so keys
// can live in .env instead of the YAML file
func (c *Config) expandSecrets() {
	for i := range c.Upstream.Endpoints {
		c.Upstream.Endpoints[i].APIKey = os.ExpandEnv(c.Upstream.Endpoints[i].APIKey)
	}
	c.Tools.SearchAPIKey = os.ExpandEnv(c.Tools.SearchAPIKey)
	c.Tools.ImageAPIKey = os.ExpandEnv(c.Tools.ImageAPIKey)
	c.Redis.Password = os.ExpandEnv(c.Redis.Password)
	c.ObjectStore.AccessKey = os.ExpandEnv(c.ObjectStore.AccessKey)
	c.ObjectStore.SecretKey = os.ExpandEnv(c.ObjectStore.SecretKey)
	for i, k := range c.Auth.StaticKeys {
		c.Auth.StaticKeys[i] = os.ExpandEnv(k)
	}
}

// OnChange registers a handler for hot reloads
func (l *Loader) OnChange(h ChangeHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Watch starts watching the config file. Invalid edits are logged and ignored.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := l.Load()
		if err != nil {
			logger.Error("ignoring invalid config change",
				zap.String("file", e.Name),
				zap.Error(err),
			)
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))

		l.mu.Lock()
		handlers := append([]ChangeHandler(nil), l.handlers...)
		l.mu.Unlock()
		for _, h := range handlers {
			h(c)
		}
	})
	l.v.WatchConfig()
}

// Validate checks the settings the proxy cannot run without
func (c Config) Validate() error {
	if len(c.Upstream.Endpoints) == 0 {
		return errors.New("config: upstream.endpoints must not be empty")
	}
	for i, ep := range c.Upstream.Endpoints {
		if ep.BaseURL == "" {
			return fmt.Errorf("config: upstream.endpoints[%d].baseURL is empty", i)
		}
	}
	if c.Budget.Usable() <= 0 {
		return fmt.Errorf("config: budget leaves no usable tokens (max %d, reserve %d)",
			c.Budget.MaxInputTokens, c.Budget.ResponseReserve)
	}
	if c.Models.Default.EffectiveModel == "" {
		return errors.New("config: models.default.effectiveModel is empty")
	}
	return nil
}

// MustLoadConfig loads configuration and panics if there's an error
func MustLoadConfig(configPath string) Config {
	l, err := NewLoader(configPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	c, err := l.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return c
}
