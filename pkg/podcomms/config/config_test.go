package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Session.PrimeUnits != 2.6 {
		t.Errorf("Session.PrimeUnits = %v, want 2.6", cfg.Session.PrimeUnits)
	}
	if cfg.Session.NominalPodLife != 72*time.Hour {
		t.Errorf("Session.NominalPodLife = %v, want 72h", cfg.Session.NominalPodLife)
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "LOUD", Format: "text"},
		Metrics: MetricsConfig{Enabled: false},
		Session: Defaults(),
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted an invalid log level")
	}
}

func TestPrimeDurationMatchesPulseCount(t *testing.T) {
	d := Defaults()
	// 2.6U at 0.05U/pulse is 52 pulses; at 1s/pulse that is 52s.
	if got := d.PrimeDuration(); got != 52*time.Second {
		t.Errorf("PrimeDuration = %v, want 52s", got)
	}
}

func TestBolusDurationScalesWithUnits(t *testing.T) {
	d := Defaults()
	half := d.BolusDuration(1.0)
	full := d.BolusDuration(2.0)
	if full != 2*half {
		t.Errorf("BolusDuration(2.0) = %v, want 2x BolusDuration(1.0) = %v", full, 2*half)
	}
}
