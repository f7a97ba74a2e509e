package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"reconciler/internal/adapters/health"
	"reconciler/internal/adapters/scheduler"
	"reconciler/internal/application"
	"reconciler/internal/config"
	"reconciler/internal/infrastructure/database"
	"reconciler/internal/infrastructure/database/sqlite"
	"reconciler/internal/infrastructure/metrics"
	"reconciler/internal/infrastructure/telemetry"
	"reconciler/internal/ports/input"
	"reconciler/internal/ports/output"
)

type flags struct {
	once    bool
	job     string
	migrate bool
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, error) {
	var f flags
	fs.BoolVar(&f.once, "once", false, "run the selected jobs once and exit")
	fs.StringVar(&f.job, "job", "", "restrict -once to one job ("+strings.Join(application.JobNames, ", ")+")")
	fs.BoolVar(&f.migrate, "migrate", false, "apply database migrations before starting")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if f.job != "" && !f.once {
		return flags{}, fmt.Errorf("-job requires -once")
	}
	return f, nil
}

func main() {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("❌ Arguments invalides: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erreur de configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, f); err != nil {
		log.Printf("❌ Arrêt du reconciler sur erreur: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags) error {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, "reconciler", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("échec de l'arrêt du traçage", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, f.migrate || cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := cfg.JobOptions()
	opts.Logger = logger
	opts.Recorder = metrics.New(reg)
	jobs, err := application.NewJobSet(store, opts)
	if err != nil {
		return fmt.Errorf("wire jobs: %w", err)
	}

	if f.once {
		selected, err := selectJobs(jobs, cfg, f.job)
		if err != nil {
			return err
		}
		scheduler.RunOnce(ctx, selected...)
		return nil
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, reg)
		go func() {
			if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("échec du serveur de métriques", "error", err)
			}
		}()
		defer shutdownHTTP(srv)
		logger.Info("métriques exposées", "addr", cfg.MetricsAddr)
	}

	if cfg.HealthPort > 0 {
		hs := health.NewServer()
		addr, err := hs.Start(cfg.HealthPort)
		if err != nil {
			return err
		}
		hs.SetServing(true)
		defer func() {
			if err := hs.Stop(); err != nil {
				logger.Warn("échec de l'arrêt du serveur de santé", "error", err)
			}
		}()
		logger.Info("service de santé gRPC démarré", "addr", addr.String())
	}

	var entries []scheduler.Entry
	for _, job := range jobs.All() {
		if !cfg.Enabled(job.Name()) {
			logger.Info("tâche désactivée", "job", job.Name())
			continue
		}
		entries = append(entries, scheduler.Entry{Job: job, Every: cfg.Every(job.Name())})
	}
	sched, err := scheduler.New(logger, entries...)
	if err != nil {
		return err
	}
	sched.Run(ctx)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool) (output.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Printf("✅ Base SQLite ouverte (%s).", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	default:
		if migrate {
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return database.NewStore(pool), pool.Close, nil
	}
}

// selectJobs returns the enabled jobs in run order, or only the named one.
func selectJobs(jobs *application.JobSet, cfg *config.Config, name string) ([]input.LifecycleJob, error) {
	if name != "" {
		job, err := jobs.Lookup(name)
		if err != nil {
			return nil, err
		}
		return []input.LifecycleJob{job}, nil
	}
	var out []input.LifecycleJob
	for _, job := range jobs.All() {
		if cfg.Enabled(job.Name()) {
			out = append(out, job)
		}
	}
	return out, nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func shutdownHTTP(srv *metrics.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
