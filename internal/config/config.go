// Package config loads xvcprog settings from defaults, an optional config
// file, XVCPROG_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OpenTraceLab/xvcprog/internal/logging"
	"github.com/OpenTraceLab/xvcprog/pkg/jtag"
	"github.com/OpenTraceLab/xvcprog/pkg/regs"
	"github.com/OpenTraceLab/xvcprog/pkg/sequence"
)

// Config holds the settings for a programming run.
type Config struct {
	// Device
	Device  string `mapstructure:"device"`   // UIO node exposing the JTAG core
	MapSize uint64 `mapstructure:"map-size"` // bytes to map (default: 0x10000)

	// Engine
	InstructionBits uint32        `mapstructure:"instruction-bits"` // IR width (default: 6)
	PollLimit       uint64        `mapstructure:"poll-limit"`       // busy polls per shift, 0 disables
	Timeout         time.Duration `mapstructure:"timeout"`          // per shift, 0 disables
	Verbose         bool          `mapstructure:"verbose"`          // trace every shift
	DryRun          bool          `mapstructure:"dry-run"`          // use the register simulator

	// Sequence script; empty selects the built-in one.
	Script string `mapstructure:"script"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// DefaultConfig returns a Config for an UltraScale+ part behind /dev/uio0.
func DefaultConfig() *Config {
	return &Config{
		Device:          "/dev/uio0",
		MapSize:         regs.MapSize,
		InstructionBits: sequence.DefaultInstructionBits,
		PollLimit:       jtag.DefaultPollLimit,
		Timeout:         0,
		Verbose:         false,
		DryRun:          false,
		Script:          "",
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("config: device must be set")
	}
	if c.MapSize < uint64(regs.Control)+4 {
		return fmt.Errorf("config: map-size %#x does not cover the register block", c.MapSize)
	}
	if c.InstructionBits == 0 || c.InstructionBits > jtag.MaxShiftBits {
		return fmt.Errorf("config: instruction-bits %d out of range 1..%d", c.InstructionBits, jtag.MaxShiftBits)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %s", c.Timeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log-level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("config: log-format %q must be console or json", c.LogFormat)
	}
	return nil
}

// EngineOptions converts the engine settings to jtag options.
func (c *Config) EngineOptions() []jtag.Option {
	opts := []jtag.Option{jtag.WithPollLimit(c.PollLimit)}
	if c.Timeout > 0 {
		opts = append(opts, jtag.WithTimeout(c.Timeout))
	}
	if c.Verbose {
		opts = append(opts, jtag.WithTrace(true))
	}
	return opts
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("device", d.Device)
	v.SetDefault("map-size", d.MapSize)
	v.SetDefault("instruction-bits", d.InstructionBits)
	v.SetDefault("poll-limit", d.PollLimit)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("dry-run", d.DryRun)
	v.SetDefault("script", d.Script)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
}

// Load reads the configuration into a validated Config. An explicit file
// must exist; otherwise xvcprog.{yaml,json,toml} is searched in the working
// directory and /etc/xvcprog and may be absent. flags may be nil.
func Load(v *viper.Viper, file string, flags *pflag.FlagSet) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("XVCPROG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	} else {
		v.SetConfigName("xvcprog")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/xvcprog")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
