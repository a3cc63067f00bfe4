package jtag

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched when the core did not clear Control within the
	// configured poll limit or timeout.
	ErrTimeout = errors.New("jtag: shift did not complete")

	// ErrBitLength rejects shift lengths outside 1..MaxShiftBits.
	ErrBitLength = errors.New("jtag: invalid shift length")

	// ErrUnalignedPayload rejects payloads that are empty or not a whole
	// number of 32-bit words.
	ErrUnalignedPayload = errors.New("jtag: payload is not a whole number of words")
)

// TimeoutError describes an abandoned wait for shift completion. The core
// may still complete the shift later; the next Shift clears Control first.
type TimeoutError struct {
	Polls   uint64
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("jtag: shift did not complete after %d polls (%s)", e.Polls, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
