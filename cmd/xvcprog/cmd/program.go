package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/xvcprog/pkg/bitfile"
	"github.com/OpenTraceLab/xvcprog/pkg/jtag"
	"github.com/OpenTraceLab/xvcprog/pkg/regs"
	"github.com/OpenTraceLab/xvcprog/pkg/sequence"
	"github.com/OpenTraceLab/xvcprog/pkg/tap"
)

// Program flags
var (
	bitstreamPath   string
	device          string
	mapSize         uint64
	instructionBits uint32
	pollLimit       uint64
	shiftTimeout    time.Duration
	scriptPath      string
	dryRun          bool
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Shift a bitstream into the FPGA",
	Long: `Load a .bit file, map the JTAG register block and run the programming
sequence: the built-in UltraScale+ sequence, or a script given with --script.

With --dry-run the register block is replaced by an in-memory simulator, so
the complete sequence can be checked without hardware.

Examples:
  xvcprog program -b design.bit
  xvcprog program -b design.bit --script custom.seq --instruction-bits 18
  xvcprog program -b design.bit --dry-run`,
	Args: cobra.NoArgs,
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(programCmd)

	programCmd.Flags().StringVarP(&bitstreamPath, "bitstream", "b", "", "Xilinx .bit file to program")
	programCmd.Flags().StringVarP(&device, "device", "d", "/dev/uio0", "UIO device exposing the JTAG core")
	programCmd.Flags().Uint64Var(&mapSize, "map-size", regs.MapSize, "bytes of the register window to map")
	programCmd.Flags().Uint32Var(&instructionBits, "instruction-bits", sequence.DefaultInstructionBits,
		"instruction register width")
	programCmd.Flags().Uint64Var(&pollLimit, "poll-limit", jtag.DefaultPollLimit,
		"busy polls allowed per shift before giving up (0 means unbounded)")
	programCmd.Flags().DurationVar(&shiftTimeout, "timeout", 0, "wall-clock limit per shift (0 disables)")
	programCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "sequence script (default: built-in)")
	programCmd.Flags().BoolVar(&dryRun, "dry-run", false, "use the register simulator instead of the device")
	programCmd.MarkFlagRequired("bitstream")
}

func runProgram(cmd *cobra.Command, args []string) error {
	f, err := bitfile.LoadWithLogger(bitstreamPath, log)
	if err != nil {
		return err
	}

	script, err := loadScript(cfg.Script)
	if err != nil {
		return err
	}

	var (
		block regs.Block
		sim   *regs.Sim
	)
	if cfg.DryRun {
		sim = regs.NewSim(tap.StateTestLogicReset)
		sim.Discard = true
		block = sim
	} else {
		m, err := regs.Open(cfg.Device, int(cfg.MapSize))
		if err != nil {
			return fmt.Errorf("failed to map %s: %w", cfg.Device, err)
		}
		defer m.Close()
		block = m
	}

	opts := append(cfg.EngineOptions(), jtag.WithLogger(log))
	runner := sequence.NewRunner(jtag.New(block, opts...), f)
	runner.InstructionBits = cfg.InstructionBits
	runner.Log = log

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := runner.Run(ctx, script); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Programmed %s (%s, %d words) in %s\n",
		bitstreamPath, f.Part(), f.Words(), time.Since(start).Round(time.Millisecond))
	if sim != nil {
		fmt.Fprintf(out, "Dry run: %d shifts, final TAP state %s\n", sim.Count(), sim.State())
	}
	log.Debug("program finished", zap.String("device", cfg.Device), zap.Bool("dry_run", cfg.DryRun))
	return nil
}

func loadScript(path string) (*sequence.Script, error) {
	if path == "" {
		return sequence.Default()
	}
	p, err := sequence.NewParser()
	if err != nil {
		return nil, err
	}
	return p.ParseFile(path)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
