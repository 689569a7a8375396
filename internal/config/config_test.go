// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "umbra", cfg.Logger().ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Engine().ScriptTimeout)
	assert.Equal(t, 1024, cfg.Engine().MaxTreeDepth)
	assert.True(t, cfg.Storage().Enabled)
	assert.Equal(t, "umbra-data", cfg.Storage().Dir)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		// Start with a valid default config.
		cfg := NewDefaultConfig()

		err := cfg.Validate()
		assert.NoError(t, err, "A valid config should not produce a validation error")

		cfgInvalidTimeout := *cfg
		cfgInvalidTimeout.EngineCfg.ScriptTimeout = 0
		err = cfgInvalidTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.script_timeout must be a positive duration")

		cfgInvalidDepth := *cfg
		cfgInvalidDepth.EngineCfg.MaxTreeDepth = -1
		err = cfgInvalidDepth.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine.max_tree_depth must be a positive integer")
	})

	t.Run("Storage Validation", func(t *testing.T) {
		validStorage := StorageConfig{
			Enabled: true,
			Dir:     "/tmp/umbra-test",
		}
		assert.NoError(t, validStorage.Validate())

		disabledStorage := validStorage
		disabledStorage.Enabled = false
		disabledStorage.Dir = ""
		assert.NoError(t, disabledStorage.Validate(), "disabled storage config should always be valid")

		missingDir := validStorage
		missingDir.Dir = ""
		err := missingDir.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "dir is required when storage is enabled")
	})
}

// -- Setter Tests --

func TestConfigSetters(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.SetEngineScriptTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, cfg.Engine().ScriptTimeout)

	cfg.SetEngineMaxTreeDepth(64)
	assert.Equal(t, 64, cfg.Engine().MaxTreeDepth)

	cfg.SetStorageEnabled(false)
	assert.False(t, cfg.Storage().Enabled)

	cfg.SetStorageDir("/var/lib/umbra")
	assert.Equal(t, "/var/lib/umbra", cfg.Storage().Dir)

	rc := RunConfig{
		Scripts:  []string{"main.js"},
		HTMLFile: "page.html",
		Timeout:  time.Minute,
		DumpHTML: true,
	}
	cfg.SetRunConfig(rc)
	assert.Equal(t, rc, cfg.Run())
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
engine:
  script_timeout: 10s
  max_tree_depth: 256
storage:
  dir: "/tmp/umbra-yaml"
`)
		v := viper.New()
		SetDefaults(v) // Set defaults first
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 10*time.Second, cfg.Engine().ScriptTimeout)
		assert.Equal(t, 256, cfg.Engine().MaxTreeDepth)
		assert.Equal(t, "/tmp/umbra-yaml", cfg.Storage().Dir)
		// Check a default value was also loaded
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("engine.max_tree_depth", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "engine.max_tree_depth must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		// Env vars bound by NewConfigFromViper must override values
		// loaded from a config file.
		v := viper.New()
		SetDefaults(v)

		yamlConfig := []byte(`
storage:
  dir: "/from/config/file"
logger:
  level: warn
`)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlConfig))
		require.NoError(t, err, "Failed to read mock config buffer")

		t.Setenv("UMBRA_STORAGE_DIR", "/from/env")
		t.Setenv("UMBRA_LOG_LEVEL", "debug")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "/from/env", cfg.Storage().Dir)
		assert.Equal(t, "debug", cfg.Logger().Level)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/umbra.log
  colors:
    error: "31"
engine:
  script_timeout: 5s
storage:
  enabled: false
`
	v := viper.New()
	SetDefaults(v) // Set defaults first
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/umbra.log", cfg.Logger().LogFile)
	assert.Equal(t, "31", cfg.Logger().Colors.Error)
	assert.Equal(t, 5*time.Second, cfg.Engine().ScriptTimeout)
	assert.False(t, cfg.Storage().Enabled)
}
