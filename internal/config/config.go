// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Storage() StorageConfig
	Run() RunConfig
	SetRunConfig(rc RunConfig)

	// Engine Setters
	SetEngineScriptTimeout(d time.Duration)
	SetEngineMaxTreeDepth(n int)

	// Storage Setters
	SetStorageEnabled(b bool)
	SetStorageDir(dir string)
}

// Config holds the entire application configuration. Viper unmarshals into
// the exported fields; everything else goes through the Interface methods.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	StorageCfg StorageConfig `mapstructure:"storage" yaml:"storage"`
	// RunCfg gets its marching orders from CLI flags, not the config file.
	RunCfg RunConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Storage() StorageConfig { return c.StorageCfg }
func (c *Config) Run() RunConfig         { return c.RunCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunConfig(rc RunConfig) { c.RunCfg = rc }

// Engine Setters
func (c *Config) SetEngineScriptTimeout(d time.Duration) { c.EngineCfg.ScriptTimeout = d }
func (c *Config) SetEngineMaxTreeDepth(n int)            { c.EngineCfg.MaxTreeDepth = n }

// Storage Setters
func (c *Config) SetStorageEnabled(b bool) { c.StorageCfg.Enabled = b }
func (c *Config) SetStorageDir(dir string) { c.StorageCfg.Dir = dir }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes the script runtime and the document model it drives.
type EngineConfig struct {
	// ScriptTimeout bounds a single script execution, including any
	// promise it returns.
	ScriptTimeout time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
	// MaxTreeDepth bounds every link-following walk over the document.
	// Exceeding it is treated as a detected cycle.
	MaxTreeDepth int `mapstructure:"max_tree_depth" yaml:"max_tree_depth"`
}

// StorageConfig controls the on-disk origin storage backing indexedDB.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// RunConfig holds settings populated from CLI flags for a specific run.
type RunConfig struct {
	Scripts  []string
	HTMLFile string
	Timeout  time.Duration
	DumpHTML bool
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "umbra")
	v.SetDefault("logger.log_file", "umbra.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.script_timeout", "30s")
	v.SetDefault("engine.max_tree_depth", 1024)

	// -- Storage --
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.dir", "umbra-data")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment overrides that make sense outside a config file.
	v.BindEnv("storage.dir", "UMBRA_STORAGE_DIR")
	v.BindEnv("logger.level", "UMBRA_LOG_LEVEL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.ScriptTimeout <= 0 {
		return fmt.Errorf("engine.script_timeout must be a positive duration")
	}
	if c.EngineCfg.MaxTreeDepth <= 0 {
		return fmt.Errorf("engine.max_tree_depth must be a positive integer")
	}
	if err := c.StorageCfg.Validate(); err != nil {
		return fmt.Errorf("storage configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the storage configuration.
func (s *StorageConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Dir == "" {
		return fmt.Errorf("dir is required when storage is enabled")
	}
	return nil
}
