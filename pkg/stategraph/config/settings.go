package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default service settings.
const (
	DefaultMaxVisits     = 25
	DefaultWorkers       = 4
	DefaultSweepInterval = time.Minute
	DefaultSaveAttempts  = 1
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Settings holds the service-level knobs read from a settings file.
//
// Recognised keys:
//
//	max_visits      per-node visit budget for every run (default 25)
//	workers         tracker worker pool size (default 4)
//	retention       age after which terminal runs are evicted (0 keeps them)
//	sweep_interval  how often retention is enforced (default 1m)
//	checkpoint_path SQLite file for the checkpoint trail (empty disables it)
//	save_attempts   tries per checkpoint save before giving up (default 1)
//	log_level       debug, info, warn or error
//	log_format      text or json
type Settings struct {
	MaxVisits      int
	Workers        int
	Retention      time.Duration
	SweepInterval  time.Duration
	CheckpointPath string
	SaveAttempts   int
	LogLevel       string
	LogFormat      string
}

// DefaultSettings returns the settings used when no file is supplied.
func DefaultSettings() Settings {
	return Settings{
		MaxVisits:     DefaultMaxVisits,
		Workers:       DefaultWorkers,
		SweepInterval: DefaultSweepInterval,
		SaveAttempts:  DefaultSaveAttempts,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}

// SettingsFrom reads Settings out of c, falling back to defaults for absent keys.
func SettingsFrom(c Config) (Settings, error) {
	d := DefaultSettings()
	s := Settings{
		MaxVisits:      c.Int("max_visits", d.MaxVisits),
		Workers:        c.Int("workers", d.Workers),
		Retention:      c.Duration("retention", d.Retention),
		SweepInterval:  c.Duration("sweep_interval", d.SweepInterval),
		CheckpointPath: c.String("checkpoint_path", d.CheckpointPath),
		SaveAttempts:   c.Int("save_attempts", d.SaveAttempts),
		LogLevel:       strings.ToLower(c.String("log_level", d.LogLevel)),
		LogFormat:      strings.ToLower(c.String("log_format", d.LogFormat)),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a YAML or JSON settings file.
func LoadSettings(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := SettingsFrom(c)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate reports every out-of-range setting.
func (s Settings) Validate() error {
	var errs []error
	if s.MaxVisits < 1 {
		errs = append(errs, fmt.Errorf("max_visits must be at least 1, got %d", s.MaxVisits))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", s.Workers))
	}
	if s.Retention < 0 {
		errs = append(errs, fmt.Errorf("retention must not be negative, got %s", s.Retention))
	}
	if s.Retention > 0 && s.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep_interval must be positive when retention is set, got %s", s.SweepInterval))
	}
	if s.SaveAttempts < 1 {
		errs = append(errs, fmt.Errorf("save_attempts must be at least 1, got %d", s.SaveAttempts))
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", s.LogLevel))
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", s.LogFormat))
	}
	return errors.Join(errs...)
}
