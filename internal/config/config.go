// Package config resolves the runtime configuration from defaults, an
// optional YAML file and TASKIFY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kausik11/taskify/internal/scheduler"
	"github.com/kausik11/taskify/internal/session"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable holding the YAML config path.
const FileEnv = "TASKIFY_CONFIG"

type RuntimeConfig struct {
	DBPath          string        `yaml:"db_path"`
	Timezone        string        `yaml:"timezone"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	GenerateSpec    string        `yaml:"generate_schedule"`
	HolidaySpec     string        `yaml:"holiday_schedule"`
	NotifySpec      string        `yaml:"notify_schedule"`
	NotifyHorizon   time.Duration `yaml:"notify_horizon"`
	UpcomingDays    int           `yaml:"upcoming_days"`
	SchedulerBuffer int           `yaml:"scheduler_buffer"`
	WhatsAppURL     string        `yaml:"whatsapp_url"`
	WhatsAppToken   string        `yaml:"whatsapp_token"`
	PermissionsFile string        `yaml:"permissions_file"`
	User            string        `yaml:"user"`
	Roles           []string      `yaml:"roles"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DBPath:          "taskify.db",
		Timezone:        "UTC",
		LogLevel:        "info",
		LogFormat:       "text",
		GenerateSpec:    "0 1 * * *",
		HolidaySpec:     "30 0 * * *",
		NotifySpec:      "*/15 * * * *",
		NotifyHorizon:   48 * time.Hour,
		UpcomingDays:    7,
		SchedulerBuffer: 64,
	}
}

// Load applies the file named by TASKIFY_CONFIG (if any) and then the
// environment on top of the defaults, and validates the result.
func Load() (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		var err error
		if cfg, err = LoadFile(path, cfg); err != nil {
			return RuntimeConfig{}, err
		}
	}
	cfg = RuntimeConfigFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path on base. Keys missing from the
// file keep their base value.
func LoadFile(path string, base RuntimeConfig) (RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v, ok := getEnvString("TASKIFY_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvString("TASKIFY_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("TASKIFY_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString("TASKIFY_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := getEnvString("TASKIFY_GENERATE_SCHEDULE"); ok {
		cfg.GenerateSpec = v
	}
	if v, ok := getEnvString("TASKIFY_HOLIDAY_SCHEDULE"); ok {
		cfg.HolidaySpec = v
	}
	if v, ok := getEnvString("TASKIFY_NOTIFY_SCHEDULE"); ok {
		cfg.NotifySpec = v
	}
	if v, ok := getEnvDuration("TASKIFY_NOTIFY_HORIZON"); ok && v > 0 {
		cfg.NotifyHorizon = v
	}
	if v, ok := getEnvInt("TASKIFY_UPCOMING_DAYS"); ok && v > 0 {
		cfg.UpcomingDays = v
	}
	if v, ok := getEnvInt("TASKIFY_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.SchedulerBuffer = v
	}
	if v, ok := getEnvString("TASKIFY_WHATSAPP_URL"); ok {
		cfg.WhatsAppURL = v
	}
	if v, ok := getEnvString("TASKIFY_WHATSAPP_TOKEN"); ok {
		cfg.WhatsAppToken = v
	}
	if v, ok := getEnvString("TASKIFY_PERMISSIONS_FILE"); ok {
		cfg.PermissionsFile = v
	}
	if v, ok := getEnvString("TASKIFY_USER"); ok {
		cfg.User = v
	}
	if v, ok := getEnvString("TASKIFY_ROLES"); ok {
		cfg.Roles = splitRoles(v)
	}
	return cfg
}

func (c RuntimeConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("config: db_path is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("config: timezone %q: %w", c.Timezone, err))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log_format %q", c.LogFormat))
	}
	for name, spec := range map[string]string{
		"generate_schedule": c.GenerateSpec,
		"holiday_schedule":  c.HolidaySpec,
		"notify_schedule":   c.NotifySpec,
	} {
		if err := scheduler.ValidateSpec(spec); err != nil {
			errs = append(errs, fmt.Errorf("config: %s %q: %w", name, spec, err))
		}
	}
	if c.NotifyHorizon <= 0 {
		errs = append(errs, errors.New("config: notify_horizon must be positive"))
	}
	return errors.Join(errs...)
}

// Location is the configured timezone, falling back to UTC.
func (c RuntimeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Actor is the identity commands run as. Without a configured user that is
// the system actor.
func (c RuntimeConfig) Actor() session.Actor {
	if strings.TrimSpace(c.User) == "" {
		return session.System()
	}
	return session.Actor{User: c.User, Roles: c.Roles}
}

func (c RuntimeConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log_level %q: %w", raw, err)
	}
	return level, nil
}

func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvDuration(name string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
