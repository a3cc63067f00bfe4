package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/xvcprog/pkg/bitfile"
	"github.com/OpenTraceLab/xvcprog/pkg/idcode"
	"github.com/OpenTraceLab/xvcprog/pkg/jtag"
)

// DefaultInstructionBits is the IR width of UltraScale+ devices.
const DefaultInstructionBits = 6

// IDCodeInstruction selects the IDCODE register on UltraScale+ devices.
const IDCodeInstruction = 0x09

var (
	// ErrNoBitstream is returned when a script shifts a bitstream but none was
	// supplied to the Runner.
	ErrNoBitstream = errors.New("sequence: script writes a bitstream but none was loaded")

	// ErrNoDevice is returned when the IDCODE reads as all zeros or all ones.
	ErrNoDevice = errors.New("sequence: no device responded")

	// ErrIDCodeMismatch is returned when the device is not the one the script
	// or the loaded bitstream expects.
	ErrIDCodeMismatch = errors.New("sequence: unexpected device")
)

// Runner executes scripts on an engine.
type Runner struct {
	Engine    *jtag.Engine
	Bitstream *bitfile.File

	// InstructionBits is used by instruction steps without an explicit width.
	InstructionBits uint32

	Log *zap.Logger
}

// NewRunner returns a Runner with the default instruction width and a no-op
// logger.
func NewRunner(engine *jtag.Engine, bitstream *bitfile.File) *Runner {
	return &Runner{
		Engine:          engine,
		Bitstream:       bitstream,
		InstructionBits: DefaultInstructionBits,
		Log:             zap.NewNop(),
	}
}

// Run executes every step of s in order and stops at the first failure or
// when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	if s.UsesBitstream() && r.Bitstream == nil {
		return ErrNoBitstream
	}
	log := r.log()

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sequence: stopped before step %d (%s): %w", i+1, st, err)
		}
		start := time.Now()
		if err := r.step(ctx, st); err != nil {
			return fmt.Errorf("sequence: step %d (%s) at %s: %w", i+1, st, st.Pos, err)
		}
		log.Info("step done",
			zap.Int("step", i+1),
			zap.String("op", st.String()),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

func (r *Runner) step(ctx context.Context, st *Step) error {
	eng := r.Engine
	if st.Trace {
		eng = eng.Verbose(true)
	}

	switch st.Op {
	case "reset":
		return eng.Reset(ctx)
	case "idle":
		return eng.GotoIdle(ctx)
	case "goto-reset":
		return eng.GotoReset(ctx)
	case "instruction":
		bits := r.InstructionBits
		if len(st.Args) == 2 {
			bits = st.Arg(1)
		}
		return eng.ExecuteInstruction(ctx, st.Arg(0), bits)
	case "clock":
		return eng.RunClock(ctx, st.Arg(0))
	case "bitstream":
		return eng.WriteBitstream(ctx, r.Bitstream)
	case "shift":
		_, err := eng.Shift(ctx, st.Arg(0), st.Arg(1), st.Arg(2))
		return err
	case "idcode":
		return r.checkIDCode(ctx, eng, st)
	default:
		return fmt.Errorf("unknown operation %q", st.Op)
	}
}

// checkIDCode reads the device IDCODE and compares it with the statement's
// operand, or else with the part named in the loaded bitstream when the
// device is known.
func (r *Runner) checkIDCode(ctx context.Context, eng *jtag.Engine, st *Step) error {
	raw, err := eng.ReadIDCode(ctx, IDCodeInstruction, r.InstructionBits)
	if err != nil {
		return err
	}
	if raw == 0 || raw == 0xFFFFFFFF {
		return fmt.Errorf("%w: idcode 0x%08X", ErrNoDevice, raw)
	}

	id := idcode.Parse(raw)
	dev, known := idcode.Lookup(raw)
	r.log().Info("idcode",
		zap.String("id", id.String()),
		zap.String("device", dev.Name),
		zap.String("family", dev.Family))

	if len(st.Args) == 1 {
		if !id.Matches(st.Arg(0)) {
			return fmt.Errorf("%w: read %s, want 0x%08X", ErrIDCodeMismatch, id, st.Arg(0))
		}
		return nil
	}
	if r.Bitstream == nil {
		return nil
	}
	part := r.Bitstream.Part()
	if !known {
		r.log().Warn("unknown device, bitstream part not checked", zap.String("part", part))
		return nil
	}
	if !dev.AcceptsPart(part) {
		return fmt.Errorf("%w: device is %s, bitstream targets %s", ErrIDCodeMismatch, dev.Name, part)
	}
	return nil
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
