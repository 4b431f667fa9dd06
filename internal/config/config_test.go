package config_test

import (
	"testing"
	"time"

	"github.com/internlog/internlog/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.Generation.HoursMin != 8.0 || cfg.Generation.HoursMax != 9.0 {
		t.Errorf("default hours band %v–%v, want 8–9", cfg.Generation.HoursMin, cfg.Generation.HoursMax)
	}
	if !cfg.Generation.SkipWeekends {
		t.Error("weekends should be skipped by default")
	}
	if cfg.Submission.Workers != 2 {
		t.Errorf("default workers %d, want 2", cfg.Submission.Workers)
	}
	if !cfg.Portal.Headless {
		t.Error("headless should default to true")
	}
}

func TestConfig_ProviderTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := cfg.ProviderTimeout(); got != 120*time.Second {
		t.Errorf("default timeout %v, want 120s", got)
	}

	cfg.Providers.TimeoutSeconds = -5
	if got := cfg.ProviderTimeout(); got != 120*time.Second {
		t.Errorf("invalid timeout should fall back to the default, got %v", got)
	}

	cfg.Providers.TimeoutSeconds = 30
	if got := cfg.ProviderTimeout(); got != 30*time.Second {
		t.Errorf("timeout %v, want 30s", got)
	}
}

func TestConfig_Pace(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Submission.PaceSeconds = 1.5
	if got := cfg.Pace(); got != 1500*time.Millisecond {
		t.Errorf("pace %v, want 1.5s", got)
	}
}
