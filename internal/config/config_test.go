package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New(), "", nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if n := len(c.EngineOptions()); n != 1 {
		t.Fatalf("got %d engine options without timeout, want 1", n)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xvcprog.yaml")
	body := strings.Join([]string{
		"device: /dev/uio3",
		"instruction-bits: 18",
		"timeout: 2s",
		"log-format: json",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("XVCPROG_POLL_LIMIT", "5000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("device", "", "")
	if err := flags.Parse([]string{"--device", "/dev/uio7"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	c, err := Load(viper.New(), path, flags)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := DefaultConfig()
	want.Device = "/dev/uio7"
	want.InstructionBits = 18
	want.Timeout = 2 * time.Second
	want.LogFormat = "json"
	want.PollLimit = 5000
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if n := len(c.EngineOptions()); n != 2 {
		t.Fatalf("got %d engine options, want 2", n)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		msg    string
	}{
		{"no device", func(c *Config) { c.Device = "" }, "device must be set"},
		{"small map", func(c *Config) { c.MapSize = 0x10 }, "map-size"},
		{"zero ir", func(c *Config) { c.InstructionBits = 0 }, "instruction-bits"},
		{"wide ir", func(c *Config) { c.InstructionBits = 33 }, "instruction-bits"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "negative timeout"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"bad level", func(c *Config) { c.LogLevel = "verbose" }, "log-level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.modify(c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q does not contain %q", err, tc.msg)
			}
		})
	}

}

func TestLoadZeroPollLimitDisablesBound(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("poll-limit", 1, "")
	if err := flags.Parse([]string{"--poll-limit", "0"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	c, err := Load(viper.New(), "", flags)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.PollLimit != 0 {
		t.Fatalf("PollLimit = %d, want 0 (unbounded)", c.PollLimit)
	}
}

func TestLoadVerboseAndDryRunFromEnv(t *testing.T) {
	t.Setenv("XVCPROG_VERBOSE", "true")
	t.Setenv("XVCPROG_DRY_RUN", "true")

	c, err := Load(viper.New(), "", nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !c.Verbose || !c.DryRun {
		t.Fatalf("Verbose=%v DryRun=%v, want both true", c.Verbose, c.DryRun)
	}
	if n := len(c.EngineOptions()); n != 2 {
		t.Fatalf("got %d engine options with tracing, want 2", n)
	}
}
