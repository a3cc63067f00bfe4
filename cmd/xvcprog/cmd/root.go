package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/xvcprog/internal/config"
	"github.com/OpenTraceLab/xvcprog/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configFile string
	logLevel   string
	logFormat  string

	// Set by the root PersistentPreRunE.
	cfg *config.Config
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "xvcprog",
	Short: "Program Xilinx FPGAs through an AXI-to-JTAG core",
	Long: `xvcprog loads a Xilinx .bit file and shifts it into an FPGA through a
memory-mapped AXI-to-JTAG register block exposed by a UIO device.

Settings come from flags, XVCPROG_* environment variables and an optional
xvcprog.{yaml,json,toml} in the working directory or /etc/xvcprog.

Examples:
  xvcprog program -b design.bit                    # Program through /dev/uio0
  xvcprog program -b design.bit --device /dev/uio2 --timeout 5s
  xvcprog program -b design.bit --dry-run -v       # Trace shifts without hardware
  xvcprog info design.bit                          # Show container metadata
  xvcprog script                                   # Print the built-in sequence`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace every JTAG shift")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: search ./ and /etc/xvcprog)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
}

// setup loads the configuration and builds the logger before any subcommand.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(viper.New(), configFile, cmd.Flags())
	if err != nil {
		return err
	}

	opts := c.LogOptions()
	opts.Output = cmd.ErrOrStderr()
	l, _, err := logging.New(opts)
	if err != nil {
		return err
	}

	cfg = c
	log = l
	return nil
}
