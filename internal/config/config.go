package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Generation GenerationConfig `toml:"generation"`
	Providers  ProvidersConfig  `toml:"providers"`
	Portal     PortalConfig     `toml:"portal"`
	Submission SubmissionConfig `toml:"submission"`
	Skills     SkillsConfig     `toml:"skills"`
}

type GenerationConfig struct {
	SkipWeekends bool    `toml:"skip_weekends"`
	SkipHolidays bool    `toml:"skip_holidays"`
	HolidayICS   string  `toml:"holiday_ics"` // URL or file path
	HoursMin     float64 `toml:"hours_min"`
	HoursMax     float64 `toml:"hours_max"`
}

type ProvidersConfig struct {
	Preferred      string `toml:"preferred"` // empty means priority order
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PortalConfig struct {
	LoginURL string `toml:"login_url"`
	DiaryURL string `toml:"diary_url"`
	Headless bool   `toml:"headless"`
}

type SubmissionConfig struct {
	Workers     int     `toml:"workers"`
	PaceSeconds float64 `toml:"pace_seconds"`
	Notify      bool    `toml:"notify"`
}

type SkillsConfig struct {
	CatalogPath string `toml:"catalog_path"`
}

func DefaultConfig() Config {
	return Config{
		Generation: GenerationConfig{
			SkipWeekends: true,
			SkipHolidays: true,
			HoursMin:     8.0,
			HoursMax:     9.0,
		},
		Providers: ProvidersConfig{
			TimeoutSeconds: 120,
		},
		Portal: PortalConfig{
			Headless: true,
		},
		Submission: SubmissionConfig{
			Workers:     2,
			PaceSeconds: 3.0,
			Notify:      true,
		},
	}
}

// ProviderTimeout returns the per-request synthesis timeout.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Providers.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// Pace returns the delay between one worker's consecutive submissions.
func (c *Config) Pace() time.Duration {
	return time.Duration(c.Submission.PaceSeconds * float64(time.Second))
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "internlog"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INTERNLOG_PORTAL_LOGIN_URL"); v != "" {
		cfg.Portal.LoginURL = v
	}
	if v := os.Getenv("INTERNLOG_PORTAL_DIARY_URL"); v != "" {
		cfg.Portal.DiaryURL = v
	}
	if v := os.Getenv("INTERNLOG_PREFERRED_PROVIDER"); v != "" {
		cfg.Providers.Preferred = v
	}
	if v := os.Getenv("INTERNLOG_HOLIDAY_ICS"); v != "" {
		cfg.Generation.HolidayICS = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
