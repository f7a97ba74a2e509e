package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler/internal/application"
)

func writeSchedule(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://localhost:5432/reconciler?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, application.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, 60*time.Second, cfg.Every(application.JobActivate))
	assert.Equal(t, 30*time.Second, cfg.Every(application.JobEnd))
	assert.Equal(t, 30*time.Second, cfg.Every(application.JobMarkOverdue))
	assert.Equal(t, 45*time.Second, cfg.Every(application.JobMarkAbsent))
	for _, name := range application.JobNames {
		assert.True(t, cfg.Enabled(name), name)
	}

	opts := cfg.JobOptions()
	assert.Equal(t, application.DefaultOverdueWindow, opts.OverdueWindow)
	assert.Equal(t, application.DefaultAbsentWindow, opts.AbsentWindow)
}

func TestLoad_ScheduleFileOverridesDefaults(t *testing.T) {
	t.Setenv("RECONCILER_SCHEDULE_FILE", writeSchedule(t, `
absent_window = "2m"

[jobs.mark_absent]
every = "10s"

[jobs.end]
enabled = false
`))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Every(application.JobMarkAbsent))
	assert.Equal(t, 30*time.Second, cfg.Every(application.JobEnd), "cadence kept when only enabled is set")
	assert.False(t, cfg.Enabled(application.JobEnd))
	assert.Equal(t, 2*time.Minute, cfg.JobOptions().AbsentWindow)
	assert.Equal(t, time.Minute, cfg.JobOptions().OverdueWindow)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown store", map[string]string{"RECONCILER_STORE": "mongo"}, "RECONCILER_STORE"},
		{"url without host", map[string]string{"DATABASE_URL": "postgres:///reconciler"}, "DATABASE_URL"},
		{"empty sqlite path", map[string]string{"RECONCILER_STORE": "sqlite", "RECONCILER_SQLITE_PATH": " "}, "RECONCILER_SQLITE_PATH"},
		{"chunk above hard cap", map[string]string{"RECONCILER_CHUNK_SIZE": "501"}, "RECONCILER_CHUNK_SIZE"},
		{"zero chunk", map[string]string{"RECONCILER_CHUNK_SIZE": "0"}, "RECONCILER_CHUNK_SIZE"},
		{"log format", map[string]string{"RECONCILER_LOG_FORMAT": "xml"}, "RECONCILER_LOG_FORMAT"},
		{"health port", map[string]string{"RECONCILER_HEALTH_PORT": "70000"}, "RECONCILER_HEALTH_PORT"},
		{"not a number", map[string]string{"RECONCILER_CHUNK_SIZE": "many"}, "config:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_RejectsBadScheduleFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown job", "[jobs.rollback]\nevery = \"10s\"\n", "tâche inconnue"},
		{"unknown key", "overdue = \"10s\"\n", "invalide"},
		{"bad duration", "[jobs.end]\nevery = \"soon\"\n", "invalide"},
		{"negative cadence", "[jobs.end]\nevery = \"-5s\"\n", "cadence"},
		{"negative window", "overdue_window = \"-1s\"\n", "fenêtres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RECONCILER_SCHEDULE_FILE", writeSchedule(t, tt.content))
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingScheduleFile(t *testing.T) {
	t.Setenv("RECONCILER_SCHEDULE_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()

	assert.ErrorContains(t, err, "lecture du planning")
}
