package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	LLM         LLMConfig                 `json:"llm"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// LLMConfig selects the active provider and the sampling parameters shared by all of them.
type LLMConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	Store             string `json:"store"`
	UploadDir         string `json:"upload_dir"`
	UploadTTL         int    `json:"upload_ttl_minutes"`
	CleanInterval     int    `json:"clean_interval_minutes"`
	MaxUploadBytes    int64  `json:"max_upload_bytes"`
	SessionTTL        int    `json:"session_ttl_minutes"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout_seconds"`
	LogLevel          string `json:"log_level"`
	LogFormat         string `json:"log_format"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite3"
	StoreMySQL  = "mysql"
)

// Default returns a configuration usable without any config file: in-memory store, groq provider.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:     ":8000",
			Store:             StoreMemory,
			UploadDir:         "./temp_uploads",
			UploadTTL:         60,
			CleanInterval:     10,
			MaxUploadBytes:    10 << 20,
			SessionTTL:        24 * 60,
			MinWorkers:        2,
			MaxWorkers:        16,
			QueueSize:         128,
			WorkerIdleTimeout: 30,
			LogLevel:          "info",
			LogFormat:         "json",
		},
		LLM: LLMConfig{
			Provider:       "groq",
			Temperature:    0.7,
			TimeoutSeconds: 60,
		},
		Providers: map[string]ProviderConfig{
			"groq":     {BaseURL: "https://api.groq.com/openai/v1", Model: "llama3-8b-8192"},
			"openai":   {Model: "gpt-4o-mini"},
			"claude":   {Model: "claude-3-5-haiku-latest"},
			"gemini":   {Model: "gemini-2.0-flash"},
			"deepseek": {BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat"},
		},
		Databases: map[string]DatabaseConfig{
			StoreSQLite: {DSN: "./data/legalmind.db"},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: defaults plus environment overrides are used.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("LEGALMIND_CONFIG")
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv()

	if db, ok := cfg.Databases[StoreSQLite]; ok && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases[StoreSQLite] = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var providerKeyEnv = map[string]string{
	"groq":     "GROQ_API_KEY",
	"openai":   "OPENAI_API_KEY",
	"claude":   "ANTHROPIC_API_KEY",
	"gemini":   "GEMINI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LEGALMIND_ADDR"); v != "" {
		c.BasicConfig.ServerAddress = v
	}
	if v := os.Getenv("LEGALMIND_STORE"); v != "" {
		c.BasicConfig.Store = v
	}
	if v := os.Getenv("LEGALMIND_LOG_LEVEL"); v != "" {
		c.BasicConfig.LogLevel = v
	}
	if v := os.Getenv("LEGALMIND_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LEGALMIND_MODEL"); v != "" {
		c.LLM.Model = v
	}
	// older deployments set only GROQ_MODEL_NAME
	if v := os.Getenv("GROQ_MODEL_NAME"); v != "" && c.LLM.Model == "" && c.LLM.Provider == "groq" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LEGALMIND_REDIS_ADDR"); v != "" {
		if host, port, ok := strings.Cut(v, ":"); ok {
			c.Redis.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, env := range providerKeyEnv {
		key := strings.TrimSpace(os.Getenv(env))
		if key == "" {
			continue
		}
		prov := c.Providers[name]
		prov.APIKey = key
		c.Providers[name] = prov
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.BasicConfig.Store) {
	case StoreMemory, StoreRedis, StoreSQLite, "sqlite", StoreMySQL:
	default:
		return fmt.Errorf("unsupported store backend: %s", c.BasicConfig.Store)
	}
	if c.BasicConfig.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes cannot be negative")
	}
	if c.BasicConfig.MinWorkers < 0 || c.BasicConfig.MaxWorkers < 0 || c.BasicConfig.QueueSize < 0 {
		return errors.New("worker pool sizes cannot be negative")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm timeout cannot be negative")
	}
	return nil
}

// ActiveProvider returns the configured provider name and its settings, with the
// llm.model override applied.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	name := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	prov := c.Providers[name]
	if c.LLM.Model != "" {
		prov.Model = c.LLM.Model
	}
	return name, prov
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.BasicConfig.SessionTTL) * time.Minute
}

func (c *Config) UploadTTL() time.Duration {
	return time.Duration(c.BasicConfig.UploadTTL) * time.Minute
}

func (c *Config) CleanInterval() time.Duration {
	return time.Duration(c.BasicConfig.CleanInterval) * time.Minute
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) WorkerIdleTimeout() time.Duration {
	return time.Duration(c.BasicConfig.WorkerIdleTimeout) * time.Second
}
