package jtag

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/xvcprog/pkg/bitfile"
	"github.com/OpenTraceLab/xvcprog/pkg/bitrev"
)

// step is one primitive shift of a composed operation.
type step struct {
	length, tms, tdi uint32
}

func (e *Engine) run(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if _, err := e.Shift(ctx, s.length, s.tms, s.tdi); err != nil {
			return err
		}
	}
	return nil
}

// Reset clocks five TMS=1 cycles, which reaches Test-Logic-Reset from any
// state.
func (e *Engine) Reset(ctx context.Context) error {
	e.log.Debug("tap reset")
	return e.run(ctx, step{5, 0b11111, 0})
}

// GotoIdle moves from Test-Logic-Reset to Run-Test/Idle.
func (e *Engine) GotoIdle(ctx context.Context) error {
	e.log.Debug("tap goto idle")
	return e.run(ctx,
		step{2, 0b11, 0},
		step{2, 0, 0},
	)
}

// GotoReset enters Test-Logic-Reset from Run-Test/Idle.
func (e *Engine) GotoReset(ctx context.Context) error {
	e.log.Debug("tap goto reset")
	return e.run(ctx, step{3, 0b111, 0})
}

// ExecuteInstruction scans code (bits wide) into the instruction register
// starting from Run-Test/Idle. TMS for the data shift is 1<<bits, which places
// the exit bit one clock past the last instruction bit; the trailing 1-bit
// TMS=1 shift performs the exit.
func (e *Engine) ExecuteInstruction(ctx context.Context, code, bits uint32) error {
	if bits == 0 || bits > MaxShiftBits {
		return fmt.Errorf("%w: instruction of %d bits", ErrBitLength, bits)
	}
	// uint32(1)<<32 is 0, matching a 32-bit register with no room for the
	// exit bit.
	tms := uint32(1) << bits

	e.log.Debug("execute instruction", zap.String("code", hex32(code)), zap.Uint32("bits", bits))
	return e.run(ctx,
		step{2, 0b11, 0},
		step{2, 0, 0},
		step{bits, tms, code},
		step{1, 1, 0},
	)
}

// RunClock issues cycles TCK pulses with TMS and TDI held low.
func (e *Engine) RunClock(ctx context.Context, cycles uint32) error {
	full := cycles / MaxShiftBits
	rest := cycles % MaxShiftBits

	e.log.Debug("run clock", zap.Uint32("cycles", cycles))
	for i := uint32(0); i < full; i++ {
		if _, err := e.Shift(ctx, MaxShiftBits, 0, 0); err != nil {
			return err
		}
	}
	if rest != 0 {
		if _, err := e.Shift(ctx, rest, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

// ReadIDCode loads the IDCODE instruction, then walks Exit1-IR to Shift-DR,
// captures the 32-bit data register and returns to Run-Test/Idle.
func (e *Engine) ReadIDCode(ctx context.Context, instruction, bits uint32) (uint32, error) {
	if err := e.ExecuteInstruction(ctx, instruction, bits); err != nil {
		return 0, err
	}
	// Update-IR, Select-DR, Capture-DR, Shift-DR.
	if err := e.run(ctx, step{4, 0b0011, 0}); err != nil {
		return 0, err
	}
	id, err := e.Shift(ctx, MaxShiftBits, 1<<31, 0)
	if err != nil {
		return 0, err
	}
	// Update-DR, Run-Test/Idle.
	if err := e.run(ctx, step{2, 0b01, 0}); err != nil {
		return 0, err
	}
	e.log.Debug("idcode", zap.String("value", hex32(id)))
	return id, nil
}

// WriteBitstream shifts the payload of f into the configuration data
// register. The payload is bit-reversed in place on first use (f.Reversed is
// set) and sent as little-endian 32-bit words; the final word carries TMS on
// its last clock to leave Shift-DR.
//
// The payload must be a non-empty whole number of words; anything else is
// rejected with ErrUnalignedPayload before the hardware is touched.
func (e *Engine) WriteBitstream(ctx context.Context, f *bitfile.File) error {
	if f == nil || !f.Aligned() {
		n := 0
		if f != nil {
			n = len(f.Data)
		}
		return fmt.Errorf("%w: %d bytes", ErrUnalignedPayload, n)
	}

	if !f.Reversed {
		bitrev.Bytes(f.Data)
		f.Reversed = true
	}

	words := f.Words()
	last := words - 1
	e.log.Info("writing bitstream", zap.Int("words", words))

	if err := e.run(ctx, step{1, 1, 0}, step{2, 0, 0}); err != nil {
		return err
	}

	next := 0
	for i := 0; i < words; i++ {
		if pct := i * 100 / words; pct >= next {
			e.report(pct)
			next = pct + 1
		}

		var tms uint32
		if i == last {
			tms = 1 << 31
		}
		word := binary.LittleEndian.Uint32(f.Data[4*i:])
		if _, err := e.Shift(ctx, MaxShiftBits, tms, word); err != nil {
			return fmt.Errorf("jtag: bitstream word %d of %d: %w", i, words, err)
		}
	}
	e.report(100)

	return e.run(ctx, step{1, 1, 0})
}

func (e *Engine) report(percent int) {
	if e.progress != nil {
		e.progress(percent)
		return
	}
	e.log.Info("bitstream progress", zap.Int("percent", percent))
}
