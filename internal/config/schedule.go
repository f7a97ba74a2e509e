package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed schedule.toml
var defaultScheduleTOML []byte

// Duration is a time.Duration decoded from strings such as "45s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// JobSchedule règle une tâche. Enabled absent vaut true.
type JobSchedule struct {
	Every   Duration `toml:"every"`
	Enabled *bool    `toml:"enabled"`
}

// Schedule décrit les cadences des tâches et les fenêtres de séjour.
type Schedule struct {
	OverdueWindow Duration               `toml:"overdue_window"`
	AbsentWindow  Duration               `toml:"absent_window"`
	Jobs          map[string]JobSchedule `toml:"jobs"`
}

// DefaultSchedule renvoie le planning embarqué.
func DefaultSchedule() (Schedule, error) {
	var s Schedule
	if err := toml.Unmarshal(defaultScheduleTOML, &s); err != nil {
		return Schedule{}, fmt.Errorf("config: planning par défaut invalide: %w", err)
	}
	return s, nil
}

// loadScheduleFile superpose le fichier path au planning s. Les clés absentes
// du fichier gardent leur valeur.
func loadScheduleFile(s Schedule, path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("config: lecture du planning %q: %w", path, err)
	}
	var override Schedule
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&override); err != nil {
		return Schedule{}, fmt.Errorf("config: planning %q invalide: %w", path, err)
	}

	if override.OverdueWindow != 0 {
		s.OverdueWindow = override.OverdueWindow
	}
	if override.AbsentWindow != 0 {
		s.AbsentWindow = override.AbsentWindow
	}
	merged := make(map[string]JobSchedule, len(s.Jobs))
	for name, job := range s.Jobs {
		merged[name] = job
	}
	for name, job := range override.Jobs {
		base := merged[name]
		if job.Every != 0 {
			base.Every = job.Every
		}
		if job.Enabled != nil {
			base.Enabled = job.Enabled
		}
		merged[name] = base
	}
	s.Jobs = merged
	return s, nil
}
