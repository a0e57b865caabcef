// Package core contains the business logic for mdboard: configuration, the
// project registry and the Board service that guards task mutations.
package core

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// ConfigurationManager loads and validates the process-wide configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper to read
// config.yaml with environment overrides.
type viperConfigManager struct {
	// basePath is the config directory where config.yaml resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// config.yaml from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Host:       "127.0.0.1",
		Port:       3050,
		DebounceMS: 100,
		LogLevel:   "info",
	}
}

// LoadGlobalConfig reads config.yaml from the base path. Missing files yield
// the defaults. Every key can be overridden with an MDBOARD_ environment
// variable; tasks_dir also honours TASKS_DIR and server.port honours PORT.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetEnvPrefix("MDBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("tasks_dir", "MDBOARD_TASKS_DIR", "TASKS_DIR")
	_ = v.BindEnv("server.port", "MDBOARD_SERVER_PORT", "PORT")

	v.SetDefault("server.host", cfg.Host)
	v.SetDefault("server.port", cfg.Port)
	v.SetDefault("watch.debounce_ms", cfg.DebounceMS)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("tasks_dir", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	cfg.Host = v.GetString("server.host")
	cfg.Port = v.GetInt("server.port")
	cfg.DebounceMS = v.GetInt("watch.debounce_ms")
	cfg.LogLevel = strings.ToLower(v.GetString("log.level"))
	cfg.TasksDir = v.GetString("tasks_dir")

	return cfg, nil
}

var validLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ValidateConfig checks cfg for invalid values and reports every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range 1-65535", cfg.Port))
	}
	if cfg.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if cfg.DebounceMS < 0 {
		errs = append(errs, fmt.Sprintf("watch.debounce_ms must be non-negative, got %d", cfg.DebounceMS))
	}
	if _, ok := validLogLevels[cfg.LogLevel]; !ok {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogLevel maps a configured level name to a slog.Level, defaulting to info.
func LogLevel(name string) slog.Level {
	if level, ok := validLogLevels[strings.ToLower(name)]; ok {
		return level
	}
	return slog.LevelInfo
}

// ResolveConfigDir returns $MDBOARD_HOME, or ~/.mdboard when unset.
func ResolveConfigDir() string {
	if home := os.Getenv("MDBOARD_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".mdboard"
	}
	return filepath.Join(userHome, ".mdboard")
}
