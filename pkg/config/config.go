package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// ProviderConfig holds backend provider configuration
type ProviderConfig struct {
	Kind         string        `mapstructure:"kind"` // Selected provider: openai, langchain, custom
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	VoiceURL     string        `mapstructure:"voice_url"` // WebSocket endpoint for voice sessions
	Timeout      time.Duration `mapstructure:"timeout"`
	TimeoutStr   string        `mapstructure:"timeout"` // For parsing string duration
}

// StorageConfig holds thread persistence configuration
type StorageConfig struct {
	Adapter    string        `mapstructure:"adapter"` // Selected adapter: local, remote, none
	Prefix     string        `mapstructure:"prefix"`
	Directory  string        `mapstructure:"directory"`
	BaseURL    string        `mapstructure:"base_url"`
	UserID     string        `mapstructure:"user_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TimeoutStr string        `mapstructure:"timeout"` // For parsing string duration
}

// DefaultsConfig holds defaults applied to newly created resources
type DefaultsConfig struct {
	ThreadTitle string `mapstructure:"thread_title"`
	AutoTitle   bool   `mapstructure:"auto_title"`
}

var (
	// Global config instance
	cfg *Config
)

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	// Set defaults first
	setDefaults()

	// Configure viper
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Set config search paths
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}
		spindleCfgHome := filepath.Join(xdgConfigHome, ".spindle")

		viper.AddConfigPath("./.spindle")   // Check project directory first
		viper.AddConfigPath(spindleCfgHome) // Then check XDG config location
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings.yaml")
	}

	// Enable environment variable support
	viper.AutomaticEnv()

	// Bind specific environment variables to Viper keys for explicit mapping
	bindEnvironmentVariables()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		// Config file found and parsed; nothing else to do
	}

	// Create config instance
	cfg = &Config{}

	// Unmarshal into struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Post-process durations (viper doesn't handle time.Duration directly)
	if err := processDurations(cfg); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	// Provider defaults
	viper.SetDefault("provider.kind", "openai")
	viper.SetDefault("provider.base_url", "https://api.openai.com/v1")
	viper.SetDefault("provider.model", "gpt-4o-mini")
	viper.SetDefault("provider.api_key", "")
	viper.SetDefault("provider.system_prompt", "")
	viper.SetDefault("provider.voice_url", "")
	viper.SetDefault("provider.timeout", "90s")

	// Storage defaults
	viper.SetDefault("storage.adapter", "local")
	viper.SetDefault("storage.prefix", "spindle")
	viper.SetDefault("storage.directory", "./.spindle/threads")
	viper.SetDefault("storage.base_url", "")
	viper.SetDefault("storage.user_id", "default")
	viper.SetDefault("storage.timeout", "30s")

	// Defaults applied to new threads
	viper.SetDefault("defaults.thread_title", "New Conversation")
	viper.SetDefault("defaults.auto_title", true)

	// Logging defaults
	viper.SetDefault("logging.log_file", "./.spindle/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")
}

func bindEnvironmentVariables() {
	// OpenAI API key from standard environment variable
	viper.BindEnv("OPENAI_API_KEY")
	viper.BindEnv("provider.api_key", "OPENAI_API_KEY")

	// Logging
	viper.BindEnv("logging.log_file", "SPINDLE_LOG_FILE")
	viper.BindEnv("logging.level", "SPINDLE_LOG_LEVEL")
	viper.BindEnv("logging.preserve", "SPINDLE_LOG_PRESERVE")

	// Provider
	viper.BindEnv("provider.kind", "SPINDLE_PROVIDER_KIND")
	viper.BindEnv("provider.base_url", "SPINDLE_PROVIDER_BASE_URL")
	viper.BindEnv("provider.model", "SPINDLE_PROVIDER_MODEL")
	viper.BindEnv("provider.api_key", "SPINDLE_PROVIDER_API_KEY")
	viper.BindEnv("provider.timeout", "SPINDLE_PROVIDER_TIMEOUT")
	viper.BindEnv("provider.voice_url", "SPINDLE_PROVIDER_VOICE_URL")

	// Storage
	viper.BindEnv("storage.adapter", "SPINDLE_STORAGE_ADAPTER")
	viper.BindEnv("storage.prefix", "SPINDLE_STORAGE_PREFIX")
	viper.BindEnv("storage.directory", "SPINDLE_STORAGE_DIRECTORY")
	viper.BindEnv("storage.base_url", "SPINDLE_STORAGE_BASE_URL")
	viper.BindEnv("storage.user_id", "SPINDLE_STORAGE_USER_ID")
}

// processDurations converts string durations to time.Duration
func processDurations(cfg *Config) error {
	// Process Provider timeout
	if cfg.Provider.TimeoutStr != "" {
		d, err := time.ParseDuration(cfg.Provider.TimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid provider.timeout: %w", err)
		}
		cfg.Provider.Timeout = d
	} else if cfg.Provider.Timeout == 0 {
		// Use default if not set
		cfg.Provider.Timeout = 90 * time.Second
	}

	// Process Storage timeout
	if cfg.Storage.TimeoutStr != "" {
		d, err := time.ParseDuration(cfg.Storage.TimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid storage.timeout: %w", err)
		}
		cfg.Storage.Timeout = d
	} else if cfg.Storage.Timeout == 0 {
		// Use default if not set
		cfg.Storage.Timeout = 30 * time.Second
	}

	return nil
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
