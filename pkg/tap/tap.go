// Package tap models the IEEE 1149.1 TAP controller so a simulated register
// block can follow the state the real device would be in.
package tap

import (
	"fmt"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR
)

var stateNames = [...]string{
	StateTestLogicReset: "TestLogicReset",
	StateRunTestIdle:    "RunTestIdle",
	StateSelectDRScan:   "SelectDRScan",
	StateCaptureDR:      "CaptureDR",
	StateShiftDR:        "ShiftDR",
	StateExit1DR:        "Exit1DR",
	StatePauseDR:        "PauseDR",
	StateExit2DR:        "Exit2DR",
	StateUpdateDR:       "UpdateDR",
	StateSelectIRScan:   "SelectIRScan",
	StateCaptureIR:      "CaptureIR",
	StateShiftIR:        "ShiftIR",
	StateExit1IR:        "Exit1IR",
	StatePauseIR:        "PauseIR",
	StateExit2IR:        "Exit2IR",
	StateUpdateIR:       "UpdateIR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Shifting reports whether TDI is sampled into a register on the next clock.
func (s State) Shifting() bool {
	return s == StateShiftDR || s == StateShiftIR
}

// edges[s][0] is the successor on TMS=0, edges[s][1] on TMS=1.
var edges = [16][2]State{
	StateTestLogicReset: {StateRunTestIdle, StateTestLogicReset},
	StateRunTestIdle:    {StateRunTestIdle, StateSelectDRScan},
	StateSelectDRScan:   {StateCaptureDR, StateSelectIRScan},
	StateCaptureDR:      {StateShiftDR, StateExit1DR},
	StateShiftDR:        {StateShiftDR, StateExit1DR},
	StateExit1DR:        {StatePauseDR, StateUpdateDR},
	StatePauseDR:        {StatePauseDR, StateExit2DR},
	StateExit2DR:        {StateShiftDR, StateUpdateDR},
	StateUpdateDR:       {StateRunTestIdle, StateSelectDRScan},
	StateSelectIRScan:   {StateCaptureIR, StateTestLogicReset},
	StateCaptureIR:      {StateShiftIR, StateExit1IR},
	StateShiftIR:        {StateShiftIR, StateExit1IR},
	StateExit1IR:        {StatePauseIR, StateUpdateIR},
	StatePauseIR:        {StatePauseIR, StateExit2IR},
	StateExit2IR:        {StateShiftIR, StateUpdateIR},
	StateUpdateIR:       {StateRunTestIdle, StateSelectDRScan},
}

// NextState returns the state after one TCK with the given TMS level. It
// panics on an out-of-range state.
func NextState(current State, tms bool) State {
	if int(current) >= len(edges) {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return edges[current][1]
	}
	return edges[current][0]
}

// Walk clocks bits TMS values taken LSB first from tms, starting at from, and
// returns every state entered (len == bits).
func Walk(from State, tms uint32, bits int) []State {
	out := make([]State, 0, bits)
	s := from
	for i := 0; i < bits; i++ {
		s = NextState(s, tms>>uint(i)&1 == 1)
		out = append(out, s)
	}
	return out
}

// Machine tracks the TAP controller state locally. The zero value starts in
// Test-Logic-Reset.
type Machine struct {
	state State
}

// NewMachine returns a Machine in the given state.
func NewMachine(initial State) *Machine {
	return &Machine{state: initial}
}

// State reports the current TAP state.
func (m *Machine) State() State {
	return m.state
}

// Clock advances one TCK and returns the new state.
func (m *Machine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}
