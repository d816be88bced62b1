package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := config.DefaultSettings()

	assert.Equal(t, 25, s.MaxVisits)
	assert.Equal(t, 4, s.Workers)
	assert.Zero(t, s.Retention)
	assert.Equal(t, time.Minute, s.SweepInterval)
	assert.Equal(t, 1, s.SaveAttempts)
	assert.NoError(t, s.Validate())
}

func TestSettingsFrom(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		check   func(t *testing.T, s config.Settings)
		wantErr []string
	}{
		{
			name: "empty uses defaults",
			data: nil,
			check: func(t *testing.T, s config.Settings) {
				assert.Equal(t, config.DefaultSettings(), s)
			},
		},
		{
			name: "all keys",
			data: map[string]any{
				"max_visits":      10.0,
				"workers":         2,
				"retention":       "1h",
				"sweep_interval":  30,
				"checkpoint_path": "runs.db",
				"save_attempts":   3,
				"log_level":       "DEBUG",
				"log_format":      "json",
			},
			check: func(t *testing.T, s config.Settings) {
				assert.Equal(t, 10, s.MaxVisits)
				assert.Equal(t, 2, s.Workers)
				assert.Equal(t, time.Hour, s.Retention)
				assert.Equal(t, 30*time.Second, s.SweepInterval)
				assert.Equal(t, "runs.db", s.CheckpointPath)
				assert.Equal(t, 3, s.SaveAttempts)
				assert.Equal(t, "debug", s.LogLevel)
				assert.Equal(t, "json", s.LogFormat)
			},
		},
		{
			name: "invalid values are all reported",
			data: map[string]any{
				"max_visits":    0,
				"workers":       -1,
				"save_attempts": 0,
				"log_level":     "loud",
				"log_format":    "xml",
			},
			wantErr: []string{"max_visits", "workers", "save_attempts", "log_level", "log_format"},
		},
		{
			name: "retention needs a sweep interval",
			data: map[string]any{
				"retention":      "1h",
				"sweep_interval": "0s",
			},
			wantErr: []string{"sweep_interval"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := config.SettingsFrom(config.New(tt.data))
			if len(tt.wantErr) > 0 {
				require.Error(t, err)
				for _, want := range tt.wantErr {
					assert.Contains(t, err.Error(), want)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stategraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\nmax_visits: 5\n"), 0o644))

	s, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Workers)
	assert.Equal(t, 5, s.MaxVisits)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"workers": 0}`), 0o644))
	_, err = config.LoadSettings(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}
