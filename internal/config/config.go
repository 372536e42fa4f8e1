// Package config handles configuration loading for branchpilot.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for branchpilot.
type Config struct {
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Worktrees WorktreesConfig `mapstructure:"worktrees"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Resume    ResumeConfig    `mapstructure:"resume"`
	History   HistoryConfig   `mapstructure:"history"`
}

// DefaultsConfig holds scheduling defaults.
type DefaultsConfig struct {
	// MaxWorkers is the worker-pool ceiling for concurrent workspaces.
	MaxWorkers int `mapstructure:"max_workers"`
	// Mainline is the shared integration branch.
	Mainline string `mapstructure:"mainline"`
}

// WorktreesConfig holds workspace materialization settings.
type WorktreesConfig struct {
	// BaseDir is where isolated working trees are created. Empty selects
	// <repo>/.branchpilot/worktrees.
	BaseDir string `mapstructure:"base_dir"`
}

// HooksConfig holds external tool invocation settings.
type HooksConfig struct {
	// TaskCommand is the shell command invoked once per task.
	TaskCommand string `mapstructure:"task_command"`
	// VerifyCommand is the shell command run in the testing phase.
	VerifyCommand string `mapstructure:"verify_command"`
	// Timeout bounds a single hook invocation.
	Timeout time.Duration `mapstructure:"timeout"`
}

// MergeConfig holds merge coordination settings.
type MergeConfig struct {
	// SettleDelay is observed between consecutive merges.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// ResumeConfig holds startup resume-scan settings.
type ResumeConfig struct {
	// Window is how recent a workspace's last activity must be to
	// qualify for automatic resumption.
	Window time.Duration `mapstructure:"window"`
}

// HistoryConfig holds run-ledger retention settings.
type HistoryConfig struct {
	// Retention is how long finished runs are kept before purging.
	Retention time.Duration `mapstructure:"retention"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (BRANCHPILOT_*)
// 2. Project config (.branchpilot.yaml in current directory or parent)
// 3. User config (~/.config/branchpilot/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("defaults.max_workers", "BRANCHPILOT_MAX_WORKERS")
	v.BindEnv("defaults.mainline", "BRANCHPILOT_MAINLINE")
	v.BindEnv("hooks.task_command", "BRANCHPILOT_TASK_COMMAND")
	v.BindEnv("hooks.verify_command", "BRANCHPILOT_VERIFY_COMMAND")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Hooks.TaskCommand = os.ExpandEnv(cfg.Hooks.TaskCommand)
	cfg.Hooks.VerifyCommand = os.ExpandEnv(cfg.Hooks.VerifyCommand)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Hooks.TaskCommand = os.ExpandEnv(cfg.Hooks.TaskCommand)
	cfg.Hooks.VerifyCommand = os.ExpandEnv(cfg.Hooks.VerifyCommand)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("defaults.max_workers", cfg.Defaults.MaxWorkers)
	v.Set("defaults.mainline", cfg.Defaults.Mainline)
	v.Set("worktrees.base_dir", cfg.Worktrees.BaseDir)
	v.Set("hooks.task_command", cfg.Hooks.TaskCommand)
	v.Set("hooks.verify_command", cfg.Hooks.VerifyCommand)
	v.Set("hooks.timeout", cfg.Hooks.Timeout.String())
	v.Set("merge.settle_delay", cfg.Merge.SettleDelay.String())
	v.Set("resume.window", cfg.Resume.Window.String())
	v.Set("history.retention", cfg.History.Retention.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.max_workers", 3)
	v.SetDefault("defaults.mainline", "main")

	v.SetDefault("worktrees.base_dir", "")

	v.SetDefault("hooks.task_command", "")
	v.SetDefault("hooks.verify_command", "")
	v.SetDefault("hooks.timeout", "15m")

	v.SetDefault("merge.settle_delay", "2s")
	v.SetDefault("resume.window", "168h")
	v.SetDefault("history.retention", "720h")
}

// getUserConfigDir returns the XDG config directory for branchpilot.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "branchpilot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "branchpilot")
	}
	return filepath.Join(home, ".config", "branchpilot")
}

// findProjectConfig searches for .branchpilot.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".branchpilot.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			MaxWorkers: 3,
			Mainline:   "main",
		},
		Hooks: HooksConfig{
			Timeout: 15 * time.Minute,
		},
		Merge: MergeConfig{
			SettleDelay: 2 * time.Second,
		},
		Resume: ResumeConfig{
			Window: 7 * 24 * time.Hour,
		},
		History: HistoryConfig{
			Retention: 30 * 24 * time.Hour,
		},
	}
}
