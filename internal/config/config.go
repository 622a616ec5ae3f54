// Package config loads the supervisor's configuration file: a name→program
// mapping plus the additive metrics/http/history/log sections SPEC_FULL.md
// adds around spec.md's core program format (spec.md §6 "Configuration
// format").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/arashiyama/supervisr/internal/program"
)

// File is the fully parsed configuration file.
type File struct {
	Programs map[string]program.Config `mapstructure:"programs"`
	Metrics  MetricsConfig             `mapstructure:"metrics"`
	HTTP     HTTPConfig                `mapstructure:"http"`
	History  HistoryConfig             `mapstructure:"history"`
	Log      LogConfig                 `mapstructure:"log"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HTTPConfig controls the optional read-only status API.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HistoryConfig selects the append-only audit-trail sink.
type HistoryConfig struct {
	Backend         string `mapstructure:"backend"` // "", "sql", "clickhouse"
	DSN             string `mapstructure:"dsn"`
	ClickHouseAddr  string `mapstructure:"clickhouse_addr"`
	ClickHouseTable string `mapstructure:"clickhouse_table"`
}

// LogConfig controls the supervisor's own event log.
type LogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

var allowedAutoRestart = map[program.AutoRestart]bool{
	program.AutoRestartAlways:     true,
	program.AutoRestartNever:      true,
	program.AutoRestartUnexpected: true,
	"":                            true, // defaults to "never" below
}

// Load reads and validates path, a configuration file whose content is
// structured (YAML syntax, regardless of its ".conf" suffix — spec.md §6
// treats the configuration format as an external collaborator; this
// module picks YAML as the concrete syntax). Unknown keys are rejected;
// missing keys take documented defaults (spec.md §6).
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := v.UnmarshalExact(&f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for name, cfg := range f.Programs {
		applyDefaults(&cfg)
		if err := validate(name, cfg); err != nil {
			return nil, err
		}
		f.Programs[name] = cfg
	}

	return &f, nil
}

// Programs adapts Load to supervisor.ConfigLoader, re-reading path fresh
// on every call (used both at startup and on reload).
func Programs(path string) (map[string]program.Config, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return f.Programs, nil
}

func applyDefaults(c *program.Config) {
	if c.NumProcs == 0 {
		c.NumProcs = 1
	}
	if c.AutoRestart == "" {
		c.AutoRestart = program.AutoRestartNever
	}
	if c.StopSignal == "" {
		c.StopSignal = "SIGTERM"
	}
}

func validate(name string, c program.Config) error {
	if len(c.Cmd) == 0 {
		return fmt.Errorf("program %q: cmd is required", name)
	}
	if c.NumProcs < 0 {
		return fmt.Errorf("program %q: numprocs must be >= 0", name)
	}
	if !allowedAutoRestart[c.AutoRestart] {
		return fmt.Errorf("program %q: invalid autorestart %q (want always, never, or unexpected)", name, c.AutoRestart)
	}
	if c.WorkingDir != "" {
		info, err := os.Stat(c.WorkingDir)
		if err != nil {
			return fmt.Errorf("program %q: workingdir %q: %w", name, c.WorkingDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("program %q: workingdir %q is not a directory", name, c.WorkingDir)
		}
	}
	if _, err := program.ParseSignal(c.StopSignal); err != nil {
		return fmt.Errorf("program %q: stopsignal: %w", name, err)
	}
	if _, err := program.ParseUmask(c.Umask); err != nil {
		return fmt.Errorf("program %q: umask: %w", name, err)
	}
	if c.StartRetries < 0 {
		return fmt.Errorf("program %q: startretries must be >= 0", name)
	}
	return nil
}

// ValidatePath enforces the CLI's invocation contract: one positional
// argument, an existing regular file whose suffix is "conf" (spec.md §6).
func ValidatePath(path string) error {
	if strings.ToLower(filepath.Ext(path)) != ".conf" {
		return fmt.Errorf("config path %q must have a .conf suffix", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config path %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path %q is not a regular file", path)
	}
	return nil
}
