package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "imaginator"

type Config struct {
	AI      AIConfig      `yaml:"ai" validate:"required"`
	Limits  Limits        `yaml:"limits" validate:"required"`
	Storage StorageConfig `yaml:"storage" validate:"required"`
	Server  ServerConfig  `yaml:"server" validate:"required"`
	Log     LogConfig     `yaml:"log" validate:"required"`
}

type AIConfig struct {
	Provider string `yaml:"provider" env:"IMAGINATOR_AI_PROVIDER" validate:"required,oneof=anthropic openai mock"`
	APIKey   string `yaml:"api_key" env:"IMAGINATOR_API_KEY" validate:"required_unless=Provider mock"`
	Model    string `yaml:"model" env:"IMAGINATOR_AI_MODEL" validate:"required"`
	BaseURL  string `yaml:"base_url" env:"IMAGINATOR_AI_BASE_URL" validate:"required,url"`
	Timeout  int    `yaml:"timeout" env:"IMAGINATOR_AI_TIMEOUT" validate:"required,min=10,max=3600"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver" env:"IMAGINATOR_STORAGE_DRIVER" validate:"required,oneof=sqlite memory"`
	DatabasePath string `yaml:"database_path" env:"IMAGINATOR_DATABASE_PATH" validate:"required_if=Driver sqlite"`
	ExportDir    string `yaml:"export_dir" env:"IMAGINATOR_EXPORT_DIR" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"IMAGINATOR_ADDR" validate:"required,hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"IMAGINATOR_LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" env:"IMAGINATOR_LOG_FORMAT" validate:"required,oneof=text json"`
}

// SlogLevel maps the configured level name onto slog
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads the config file, applies .env and environment overrides and
// validates the result. A missing file is not an error; defaults are used.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func LoadFile(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		slog.Default().Debug("no config file, using defaults", "path", configPath)
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.applyProviderKey()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a config that runs against Anthropic with a local sqlite database
func Default() *Config {
	dataDir := dataHome()
	return &Config{
		AI: AIConfig{
			Provider: "anthropic",
			Model:    "claude-3-5-sonnet-20241022",
			BaseURL:  "https://api.anthropic.com/v1",
			Timeout:  120,
		},
		Limits: DefaultLimits(),
		Storage: StorageConfig{
			Driver:       "sqlite",
			DatabasePath: filepath.Join(dataDir, "stories.db"),
			ExportDir:    filepath.Join(dataDir, "exports"),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Path locates the config file: IMAGINATOR_CONFIG, then XDG_CONFIG_HOME, then ~/.config
func Path() string {
	if path := os.Getenv("IMAGINATOR_CONFIG"); path != "" {
		return expandTilde(path)
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func dataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// applyProviderKey falls back to the provider's conventional key variable
func (c *Config) applyProviderKey() {
	if c.AI.APIKey != "" && !strings.HasPrefix(c.AI.APIKey, "${") {
		return
	}
	c.AI.APIKey = ""
	switch c.AI.Provider {
	case "anthropic":
		c.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) validate() error {
	c.Storage.DatabasePath = expandTilde(c.Storage.DatabasePath)
	c.Storage.ExportDir = expandTilde(c.Storage.ExportDir)
	if c.Limits.ExportWorkers == 0 {
		c.Limits.ExportWorkers = DefaultLimits().ExportWorkers
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Save writes cfg as YAML. The API key is replaced by an environment placeholder.
func Save(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfgToSave := *cfg
	cfgToSave.AI.APIKey = "${IMAGINATOR_API_KEY}"

	data, err := yaml.Marshal(&cfgToSave)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0o600)
}
