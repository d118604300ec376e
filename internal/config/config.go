package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Limits   LimitsConfig   `yaml:"limits"`
	Provider ProviderConfig `yaml:"provider"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Accounts AccountsConfig `yaml:"accounts"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the read-only status API. An empty Addr disables it.
type ServerConfig struct {
	Addr string     `yaml:"addr"`
	Cors CorsConfig `yaml:"cors"`
}

type CorsConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type ProxyConfig struct {
	Global string `yaml:"global"`
}

type LimitsConfig struct {
	GlobalQPS   float64 `yaml:"globalQPS"`
	GlobalBurst int     `yaml:"globalBurst"`
}

type ProviderConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
	UserAgent string `yaml:"userAgent"`
}

func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// WorkflowConfig holds the per-account pacing and retry discipline.
// AutoClearTasks and AutoLevelUp are pointers so that "unset" falls through
// to the interactive prompt.
type WorkflowConfig struct {
	PacingMs       int   `yaml:"pacingMs"`
	RetryAttempts  int   `yaml:"retryAttempts"`
	RetryWaitMs    int   `yaml:"retryWaitMs"`
	IdleMinutes    int   `yaml:"idleMinutes"`
	MinClicks      int   `yaml:"minClicks"`
	MaxClicks      int   `yaml:"maxClicks"`
	BarThreshold   int64 `yaml:"barThreshold"`
	AutoClearTasks *bool `yaml:"autoClearTasks"`
	AutoLevelUp    *bool `yaml:"autoLevelUp"`
}

func (c WorkflowConfig) Pacing() time.Duration {
	if c.PacingMs <= 0 {
		return time.Second
	}
	return time.Duration(c.PacingMs) * time.Millisecond
}

func (c WorkflowConfig) RetryWait() time.Duration {
	if c.RetryWaitMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.RetryWaitMs) * time.Millisecond
}

func (c WorkflowConfig) Idle() time.Duration {
	if c.IdleMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.IdleMinutes) * time.Minute
}

type AccountsConfig struct {
	File string `yaml:"file"`
}

type NotifyConfig struct {
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chatId"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a yaml config file. A missing file yields the defaults so that
// the farmer can run with nothing but an account list.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/tapfarm.db"
	}
	if c.Limits.GlobalQPS <= 0 {
		c.Limits.GlobalQPS = 5
	}
	if c.Limits.GlobalBurst <= 0 {
		c.Limits.GlobalBurst = 5
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.djdog.io"
	}
	if c.Workflow.RetryAttempts <= 0 {
		c.Workflow.RetryAttempts = 5
	}
	if c.Workflow.MinClicks <= 0 {
		c.Workflow.MinClicks = 131
	}
	if c.Workflow.MaxClicks <= 0 {
		c.Workflow.MaxClicks = 432
	}
	if c.Workflow.BarThreshold <= 0 {
		c.Workflow.BarThreshold = 50
	}
	if c.Accounts.File == "" {
		c.Accounts.File = "./hash.txt"
	}
	if c.Notify.Email.Port <= 0 {
		c.Notify.Email.Port = 465
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider.baseURL is required")
	}
	if c.Workflow.MinClicks > c.Workflow.MaxClicks {
		return errors.New("workflow.minClicks must not exceed workflow.maxClicks")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	if c.Notify.Email.Enabled && (c.Notify.Email.Host == "" || c.Notify.Email.To == "") {
		return errors.New("notify.email requires host and to")
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == 0) {
		return errors.New("notify.telegram requires token and chatId")
	}
	return nil
}
