// Package config loads and validates the runtime configuration for a
// pod communication session: logging, metrics, and the session timing
// constants the Setup Sequencer and Delivery Operations are built around.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (PODCOMMS_*)
//  2. Configuration file (YAML)
//  3. Defaults
//
// Load binds no command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for a podcomms host process.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Session holds the timing constants that drive setup sequencing and
	// delivery timestamping.
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// LoggingConfig controls log output, mirroring internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true" yaml:"addr"`
}

// SessionConfig holds the prime/cannula timing constants, pod lifetime
// windows, and the bolus timestamping offset.
type SessionConfig struct {
	PrimeUnits            float64       `mapstructure:"prime_units" validate:"gt=0" yaml:"prime_units"`
	SecondsPerPrimePulse  time.Duration `mapstructure:"seconds_per_prime_pulse" validate:"gt=0" yaml:"seconds_per_prime_pulse"`
	CannulaInsertionUnits float64       `mapstructure:"cannula_insertion_units" validate:"gt=0" yaml:"cannula_insertion_units"`
	SecondsPerBolusPulse  time.Duration `mapstructure:"seconds_per_bolus_pulse" validate:"gt=0" yaml:"seconds_per_bolus_pulse"`

	NominalPodLife             time.Duration `mapstructure:"nominal_pod_life" validate:"gt=0" yaml:"nominal_pod_life"`
	ServiceDuration            time.Duration `mapstructure:"service_duration" validate:"gt=0" yaml:"service_duration"`
	EndOfServiceImminentWindow time.Duration `mapstructure:"end_of_service_imminent_window" validate:"gt=0" yaml:"end_of_service_imminent_window"`
	ExpirationAdvisoryWindow   time.Duration `mapstructure:"expiration_advisory_window" validate:"gt=0" yaml:"expiration_advisory_window"`

	// CommsOffset compensates for radio/firmware latency when
	// timestamping a bolus start.
	CommsOffset time.Duration `mapstructure:"comms_offset" yaml:"comms_offset"`
}

// Defaults returns a SessionConfig populated with the pod's nominal
// timing constants: ~55s total prime, cannula insertion at 0.5U/1s, a
// 72h nominal pod life, and a -1.5s bolus comms offset.
func Defaults() SessionConfig {
	return SessionConfig{
		PrimeUnits:                 2.6,
		SecondsPerPrimePulse:       time.Second,
		CannulaInsertionUnits:      0.5,
		SecondsPerBolusPulse:       2 * time.Second,
		NominalPodLife:             72 * time.Hour,
		ServiceDuration:            80 * time.Hour,
		EndOfServiceImminentWindow: time.Hour,
		ExpirationAdvisoryWindow:   4 * time.Hour,
		CommsOffset:                -1500 * time.Millisecond,
	}
}

// PrimeDuration is the estimated total time to deliver PrimeUnits, at one
// pulse (0.05U) per SecondsPerPrimePulse.
func (c SessionConfig) PrimeDuration() time.Duration {
	pulses := c.PrimeUnits / 0.05
	return time.Duration(pulses) * c.SecondsPerPrimePulse
}

// CannulaInsertionDuration is the estimated time to deliver
// CannulaInsertionUnits at one pulse per second.
func (c SessionConfig) CannulaInsertionDuration() time.Duration {
	pulses := c.CannulaInsertionUnits / 0.05
	return time.Duration(pulses) * time.Second
}

// BolusDuration estimates how long the pod takes to deliver units at its
// fixed bolus pulse rate.
func (c SessionConfig) BolusDuration(units float64) time.Duration {
	pulses := units / 0.05
	return time.Duration(pulses) * c.SecondsPerBolusPulse
}

var validate = validator.New()

// Load reads configuration from file (if non-empty), environment
// variables prefixed PODCOMMS_, and then applies defaults for anything
// left unset, following the same viper + mapstructure pipeline the
// teacher's pkg/config uses.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PODCOMMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	d := Defaults()
	v.SetDefault("session.prime_units", d.PrimeUnits)
	v.SetDefault("session.seconds_per_prime_pulse", d.SecondsPerPrimePulse)
	v.SetDefault("session.cannula_insertion_units", d.CannulaInsertionUnits)
	v.SetDefault("session.seconds_per_bolus_pulse", d.SecondsPerBolusPulse)
	v.SetDefault("session.nominal_pod_life", d.NominalPodLife)
	v.SetDefault("session.service_duration", d.ServiceDuration)
	v.SetDefault("session.end_of_service_imminent_window", d.EndOfServiceImminentWindow)
	v.SetDefault("session.expiration_advisory_window", d.ExpirationAdvisoryWindow)
	v.SetDefault("session.comms_offset", d.CommsOffset)
}

// Validate runs struct-tag validation over the whole config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}
