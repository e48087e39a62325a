package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for AgriBot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Model    ModelConfig    `json:"model"`
	Vision   VisionConfig   `json:"vision"`
	Weather  WeatherConfig  `json:"weather"`
	Redis    RedisConfig    `json:"redis"`
	Channels ChannelsConfig `json:"channels"`
	Store    StoreConfig    `json:"store"`
	Advisory AdvisoryConfig `json:"advisory"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"` // optional log file path
	DataDir               string `json:"dataDir"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	HistoryTurns          int    `json:"historyTurns"` // conversation turns loaded per reply
	DefaultLanguage       string `json:"defaultLanguage"`
}

// ModelConfig configures the Anthropic dialogue model.
type ModelConfig struct {
	APIKey         string `json:"apiKey"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"maxTokens"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// VisionConfig configures the HuggingFace crop-disease classifier.
type VisionConfig struct {
	APIURL         string `json:"apiUrl"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// WeatherConfig configures the OpenWeather forecast client.
type WeatherConfig struct {
	APIKey          string `json:"apiKey"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	CacheTTLMinutes int    `json:"cacheTtlMinutes"`
}

// RedisConfig enables the optional forecast cache.
type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
	Web      WebConfig      `json:"web"`
}

type WhatsAppConfig struct {
	Enabled       bool   `json:"enabled"`
	AppSecret     string `json:"appSecret,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	WebhookPath   string `json:"webhookPath,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool   `json:"enabled"`
	Token     string `json:"token"`
	ParseMode string `json:"parseMode"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type WebConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"authToken,omitempty"` // bearer token for admin endpoints
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

// AdvisoryConfig configures the planting calendar.
type AdvisoryConfig struct {
	CalendarPath string `json:"calendarPath,omitempty"` // optional YAML override
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.agribot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agribot"
	}
	return filepath.Join(home, ".agribot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Advisory.CalendarPath = ExpandPath(cfg.Advisory.CalendarPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.HistoryTurns < 0 {
		errs = append(errs, "general.historyTurns must be >= 0")
	}

	if cfg.Model.MaxTokens < 1 {
		errs = append(errs, "model.maxTokens must be >= 1")
	}
	if cfg.Model.TimeoutSeconds < 1 {
		errs = append(errs, "model.timeoutSeconds must be >= 1")
	}
	if cfg.Vision.TimeoutSeconds < 1 {
		errs = append(errs, "vision.timeoutSeconds must be >= 1")
	}
	if cfg.Weather.TimeoutSeconds < 1 {
		errs = append(errs, "weather.timeoutSeconds must be >= 1")
	}
	if cfg.Weather.CacheTTLMinutes < 0 {
		errs = append(errs, "weather.cacheTtlMinutes must be >= 0")
	}

	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		errs = append(errs, "redis.url is required when redis is enabled")
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.WhatsApp.Enabled {
		if cfg.Channels.WhatsApp.AccessToken == "" {
			errs = append(errs, "channels.whatsapp.accessToken is required when whatsapp is enabled")
		}
		if cfg.Channels.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, "channels.whatsapp.phoneNumberId is required when whatsapp is enabled")
		}
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}

	if cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
