// Package config loads the coordinator's bootstrap configuration: the
// server's listen address and logging setup (in the shape of
// _examples/wilke-GoWe/internal/config/config.go's flat ServerConfig)
// plus a declarative list of services and tasks the coordinator should
// register at startup, parsed with gopkg.in/yaml.v3 the way
// _examples/wilke-GoWe/internal/parser/parser.go parses workflow
// documents.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/coordinate/internal/scheduler"
	"github.com/me/coordinate/pkg/model"
)

// ServerConfig holds the coordinator daemon's process-level settings.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // Audit history database path, ":memory:" for testing
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    "coordinate.db",
	}
}

// ServiceDecl is one service entry in a bootstrap document.
type ServiceDecl struct {
	Name       string `yaml:"name"`
	Concurrent int    `yaml:"concurrent"`
	Rate       string `yaml:"rate"` // e.g. "10/min", parsed with internal/rate
}

// TaskDecl is one task entry in a bootstrap document. It names the
// service the task runs against and how many attempts it gets;
// wiring the actual handler function is left to the caller, since
// Go functions cannot come from YAML.
type TaskDecl struct {
	Name        string `yaml:"name"`
	Service     string `yaml:"service"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Document is the top-level shape of a coordinator bootstrap file.
type Document struct {
	Server   ServerConfig     `yaml:"-"`
	Services []ServiceDecl    `yaml:"services"`
	Tasks    []TaskDecl       `yaml:"tasks"`
	Timing   TimingDecl       `yaml:"timing"`
}

// TimingDecl mirrors scheduler.Config with YAML-friendly duration
// strings ("100ms", "30s") instead of time.Duration's raw integer.
type TimingDecl struct {
	PollInterval     string `yaml:"poll_interval"`
	PendingWarnAfter string `yaml:"pending_warn_after"`
	PendingTimeout   string `yaml:"pending_timeout"`
	StallWarnAfter   string `yaml:"stall_warn_after"`
	StallTimeout     string `yaml:"stall_timeout"`
	MaxRetryBackoff  string `yaml:"max_retry_backoff"`
}

// Load parses a bootstrap document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &doc, nil
}

// SchedulerConfig converts the document's Timing block into a
// scheduler.Config, filling any unset field from scheduler.DefaultConfig.
func (d *Document) SchedulerConfig() (scheduler.Config, error) {
	cfg := scheduler.DefaultConfig()

	set := func(raw string, dst *time.Duration) error {
		if raw == "" {
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", raw, err)
		}
		*dst = parsed
		return nil
	}

	if err := set(d.Timing.PollInterval, &cfg.PollInterval); err != nil {
		return cfg, err
	}
	if err := set(d.Timing.PendingWarnAfter, &cfg.PendingWarnAfter); err != nil {
		return cfg, err
	}
	if err := set(d.Timing.PendingTimeout, &cfg.PendingTimeout); err != nil {
		return cfg, err
	}
	if err := set(d.Timing.StallWarnAfter, &cfg.StallWarnAfter); err != nil {
		return cfg, err
	}
	if err := set(d.Timing.StallTimeout, &cfg.StallTimeout); err != nil {
		return cfg, err
	}
	if err := set(d.Timing.MaxRetryBackoff, &cfg.MaxRetryBackoff); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ServiceSpecs converts every ServiceDecl into a model.ServiceSpec,
// parsing each Rate string with internal/rate's grammar.
func (d *Document) ServiceSpecs(parseRate func(string) (int, time.Duration, error)) ([]model.ServiceSpec, error) {
	out := make([]model.ServiceSpec, 0, len(d.Services))
	for _, s := range d.Services {
		spec := model.ServiceSpec{Name: s.Name, Concurrent: s.Concurrent}
		if s.Rate != "" {
			count, window, err := parseRate(s.Rate)
			if err != nil {
				return nil, fmt.Errorf("config: service %q: %w", s.Name, err)
			}
			spec.RateCount = count
			spec.RateWindow = window
		}
		out = append(out, spec)
	}
	return out, nil
}

// TaskTypes converts every TaskDecl into a model.TaskType.
func (d *Document) TaskTypes() []model.TaskType {
	out := make([]model.TaskType, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		out = append(out, model.TaskType{Name: t.Name, ServiceName: t.Service, MaxAttempts: t.MaxAttempts})
	}
	return out
}
