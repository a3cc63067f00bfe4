// Package jtag drives a TAP through the AXI-to-JTAG register block.
//
// Every operation is a fixed sequence of Shift calls. The engine keeps no TAP
// state of its own: each composed operation is only correct when called from
// the state its documentation names, so callers must follow the programming
// order (Reset, GotoIdle, ExecuteInstruction..., WriteBitstream, GotoReset).
//
// An Engine is not safe for concurrent use, and nothing else may touch the
// register block while it is in use.
package jtag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/xvcprog/pkg/regs"
)

// MaxShiftBits is the width of the TMS/TDI/TDO registers.
const MaxShiftBits = 32

// DefaultPollLimit bounds the Control poll loop when no other limit is set.
const DefaultPollLimit = 100_000_000

// ctx and the wall clock are only consulted every ctxCheckInterval polls.
const ctxCheckInterval = 1024

// Engine issues shifts on a register block.
type Engine struct {
	block     regs.Block
	log       *zap.Logger
	trace     bool
	pollLimit uint64
	timeout   time.Duration
	progress  func(percent int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for tracing and progress.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithPollLimit bounds how many times Control is read per shift. Zero
// disables the bound.
func WithPollLimit(n uint64) Option {
	return func(e *Engine) { e.pollLimit = n }
}

// WithTimeout bounds the wall-clock time spent waiting per shift. Zero
// disables the bound. With both bounds disabled a dead core blocks forever.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithProgress replaces the default progress logging of WriteBitstream.
func WithProgress(fn func(percent int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithTrace logs every shift with its LEN/TMS/TDI/TDO values.
func WithTrace(on bool) Option {
	return func(e *Engine) { e.trace = on }
}

// New returns an Engine operating on block.
func New(block regs.Block, opts ...Option) *Engine {
	e := &Engine{
		block:     block,
		log:       zap.NewNop(),
		pollLimit: DefaultPollLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verbose returns a copy of e sharing the same block with shift tracing set
// to on. e itself is unchanged.
func (e *Engine) Verbose(on bool) *Engine {
	c := *e
	c.trace = on
	return &c
}

// Shift performs one transfer of length bits (LSB first) and returns TDO.
//
// A cancelled ctx stops the shift before any register is written.
// Control is cleared before staging so a stale trigger cannot fire with half
// written fields; Length, TMS and TDI are then written in that order and the
// shift is triggered. The block guarantees each write is visible before the
// next one.
func (e *Engine) Shift(ctx context.Context, length, tms, tdi uint32) (uint32, error) {
	if length == 0 || length > MaxShiftBits {
		return 0, fmt.Errorf("%w: %d bits", ErrBitLength, length)
	}
	// A responsive core never reaches the periodic check in wait, so
	// cancellation is observed here before every shift.
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("jtag: shift not started: %w", err)
	}

	b := e.block
	b.Write(regs.Control, regs.ControlIdle)
	b.Write(regs.Length, length)
	b.Write(regs.TMS, tms)
	b.Write(regs.TDI, tdi)
	b.Write(regs.Control, regs.ControlTrigger)

	if err := e.wait(ctx); err != nil {
		return 0, err
	}

	tdo := b.Read(regs.TDO)
	if e.trace {
		e.log.Info("shift",
			zap.String("len", hex32(length)),
			zap.String("tms", hex32(tms)),
			zap.String("tdi", hex32(tdi)),
			zap.String("tdo", hex32(tdo)))
	}
	return tdo, nil
}

func (e *Engine) wait(ctx context.Context) error {
	var start time.Time
	if e.timeout > 0 {
		start = time.Now()
	}

	for polls := uint64(1); ; polls++ {
		if e.block.Read(regs.Control) == regs.ControlIdle {
			return nil
		}
		if e.pollLimit > 0 && polls >= e.pollLimit {
			return &TimeoutError{Polls: polls, Elapsed: elapsed(start)}
		}
		if polls%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("jtag: wait for shift abandoned after %d polls: %w", polls, err)
			}
			if e.timeout > 0 && time.Since(start) >= e.timeout {
				return &TimeoutError{Polls: polls, Elapsed: time.Since(start)}
			}
		}
	}
}

func elapsed(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
