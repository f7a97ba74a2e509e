package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"reconciler/internal/application"
)

// Stores supportés.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Store        string `env:"RECONCILER_STORE"         envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLitePath   string `env:"RECONCILER_SQLITE_PATH"   envDefault:"reconciler.db"`
	MaxConns     int32  `env:"RECONCILER_DB_MAX_CONNS"  envDefault:"4"`
	AutoMigrate  bool   `env:"RECONCILER_AUTO_MIGRATE"  envDefault:"false"`
	ChunkSize    int    `env:"RECONCILER_CHUNK_SIZE"    envDefault:"400"`
	LogLevel     string `env:"RECONCILER_LOG_LEVEL"     envDefault:"info"`
	LogFormat    string `env:"RECONCILER_LOG_FORMAT"    envDefault:"text"`
	MetricsAddr  string `env:"RECONCILER_METRICS_ADDR"`
	HealthPort   int    `env:"RECONCILER_HEALTH_PORT"`
	OTelEndpoint string `env:"RECONCILER_OTEL_ENDPOINT"`
	ScheduleFile string `env:"RECONCILER_SCHEDULE_FILE"`

	Schedule Schedule `env:"-"`
}

// Load charge la configuration depuis les variables d'environnement, le
// planning optionnel, et la valide.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env est optionnel lorsque les variables sont fournies par l'environnement (Docker, CI, etc.).
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	schedule, err := DefaultSchedule()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ScheduleFile) != "" {
		schedule, err = loadScheduleFile(schedule, cfg.ScheduleFile)
		if err != nil {
			return nil, err
		}
	}
	cfg.Schedule = schedule

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Every renvoie la cadence de la tâche job.
func (c *Config) Every(job string) time.Duration {
	return time.Duration(c.Schedule.Jobs[job].Every)
}

// Enabled indique si la tâche job doit être planifiée.
func (c *Config) Enabled(job string) bool {
	enabled := c.Schedule.Jobs[job].Enabled
	return enabled == nil || *enabled
}

// JobOptions traduit la configuration en options des tâches.
func (c *Config) JobOptions() application.Options {
	return application.Options{
		ChunkSize:     c.ChunkSize,
		OverdueWindow: time.Duration(c.Schedule.OverdueWindow),
		AbsentWindow:  time.Duration(c.Schedule.AbsentWindow),
	}
}

// validate applique toutes les règles métier sur la configuration chargée.
func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			// Valeur par défaut utile en local lorsque DATABASE_URL n'est pas fournie.
			c.DatabaseURL = "postgres://localhost:5432/reconciler?sslmode=disable"
		}
		parsed, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("config: DATABASE_URL invalide (%q): %w", c.DatabaseURL, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: DATABASE_URL invalide (%q): scheme ou host manquant", c.DatabaseURL)
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("config: RECONCILER_SQLITE_PATH est requis avec le store sqlite")
		}
	default:
		return fmt.Errorf("config: RECONCILER_STORE doit valoir %q ou %q, reçu %q", StorePostgres, StoreSQLite, c.Store)
	}

	if c.ChunkSize < 1 || c.ChunkSize > application.MaxChunkSize {
		return fmt.Errorf("config: RECONCILER_CHUNK_SIZE doit être entre 1 et %d, reçu %d", application.MaxChunkSize, c.ChunkSize)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: RECONCILER_LOG_FORMAT doit valoir text ou json, reçu %q", c.LogFormat)
	}

	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("config: RECONCILER_HEALTH_PORT invalide (%d)", c.HealthPort)
	}

	if c.Schedule.OverdueWindow <= 0 || c.Schedule.AbsentWindow <= 0 {
		return fmt.Errorf("config: les fenêtres overdue_window et absent_window doivent être positives")
	}
	known := make(map[string]bool, len(application.JobNames))
	for _, name := range application.JobNames {
		known[name] = true
		if c.Every(name) <= 0 {
			return fmt.Errorf("config: la cadence de la tâche %q doit être positive", name)
		}
	}
	for name := range c.Schedule.Jobs {
		if !known[name] {
			return fmt.Errorf("config: tâche inconnue dans le planning: %q", name)
		}
	}

	return nil
}
