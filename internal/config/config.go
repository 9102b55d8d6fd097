package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"availcal/internal/model"
)

const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultTimezone     = "UTC"
	DefaultLocale       = "en-US"
	DefaultEnvPrefix    = "CALENDAR"
	DefaultColor        = "#3174ad"
	DefaultRefreshCron  = "*/15 * * * *"
	DefaultFetchTimeout = 15 * time.Second
	DefaultHorizonDays  = 90
	DefaultBackfillDays = 31
	DefaultBreakpoint   = 768
	DefaultDayStart     = "05:00"
	DefaultDayEnd       = "20:00"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Config is the top-level application configuration. Calendar sources are
// not part of the file; they come from the environment (see ResolveSources).
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale is the BCP 47 culture tag handed to the calendar widget.
	Locale string `yaml:"locale" json:"locale"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// EnvPrefix is the <PREFIX> in <PREFIX>_<NAME>_URL.
	EnvPrefix string `yaml:"env_prefix" json:"env_prefix"`

	// DefaultColor is used for sources without a _COLOR key.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	// RefreshCron is a cron-style schedule for periodic re-aggregation.
	// "off" disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeout bounds a single feed request.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// HorizonDays / BackfillDays bound recurrence expansion around now.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// Breakpoint is the viewport width in px below which narrow views are used.
	Breakpoint int `yaml:"breakpoint" json:"breakpoint"`

	// DefaultView is the view shown at startup.
	DefaultView model.View `yaml:"default_view" json:"default_view"`

	// DayStart / DayEnd bound the visible time-of-day window (HH:MM).
	DayStart string `yaml:"day_start" json:"day_start"`
	DayEnd   string `yaml:"day_end" json:"day_end"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFile, if set, sends logs to a rotating file instead of stderr.
	LogFile string `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       DefaultListen,
		Timezone:     DefaultTimezone,
		Locale:       DefaultLocale,
		WeekStart:    "monday",
		EnvPrefix:    DefaultEnvPrefix,
		DefaultColor: DefaultColor,
		RefreshCron:  DefaultRefreshCron,
		FetchTimeout: DefaultFetchTimeout,
		HorizonDays:  DefaultHorizonDays,
		BackfillDays: DefaultBackfillDays,
		Breakpoint:   DefaultBreakpoint,
		DefaultView:  model.ViewWeek,
		DayStart:     DefaultDayStart,
		DayEnd:       DefaultDayEnd,
		LogLevel:     "info",
	}
}

// Normalize fills in missing or invalid values so that partially-filled
// files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = DefaultEnvPrefix
	}
	if c.DefaultColor == "" {
		c.DefaultColor = DefaultColor
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = DefaultBackfillDays
	}
	if c.Breakpoint <= 0 {
		c.Breakpoint = DefaultBreakpoint
	}
	if !c.DefaultView.Valid() {
		c.DefaultView = model.ViewWeek
	}
	if !clockPattern.MatchString(c.DayStart) {
		c.DayStart = DefaultDayStart
	}
	if !clockPattern.MatchString(c.DayEnd) || c.DayEnd <= c.DayStart {
		c.DayEnd = DefaultDayEnd
		if c.DayEnd <= c.DayStart {
			c.DayStart = DefaultDayStart
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load loads configuration from the given YAML path on fsys.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(fsys, path, cfg); err != nil {
				// Caller decides whether a read-only location is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".availcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer fsys.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return fsys.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(fsys afero.Fs, path string) error {
	return Save(fsys, path, c)
}
