package regs

import (
	"github.com/OpenTraceLab/xvcprog/pkg/tap"
)

// Shift captures one triggered shift for inspection within tests.
type Shift struct {
	Length uint32
	TMS    uint32
	TDI    uint32
	TDO    uint32

	From tap.State
	To   tap.State
}

// Access is one register write seen by the simulator.
type Access struct {
	Field Field
	Value uint32
}

// ShiftHook lets the simulator emulate device-specific TDO behavior.
type ShiftHook func(s Shift) uint32

// Sim is an in-memory register block. Writing ControlTrigger performs the
// staged shift immediately, walks the TMS bits through a TAP model and
// clears Control. By default TDO echoes TDI.
type Sim struct {
	OnShift ShiftHook

	// BusyPolls keeps Control set for this many reads after each trigger.
	BusyPolls int
	// Stuck keeps Control set forever, emulating a dead core.
	Stuck bool
	// Discard skips recording shifts and writes, for long dry runs.
	Discard bool

	fields  [int(Control)/4 + 1]uint32
	tap     tap.Machine
	shifts  []Shift
	pending int
	reads   int
	count   int
	writes  []Access
}

var _ Block = (*Sim)(nil)

// NewSim returns a simulator whose TAP starts in the given state.
func NewSim(initial tap.State) *Sim {
	return &Sim{tap: *tap.NewMachine(initial)}
}

func (s *Sim) Write(f Field, v uint32) {
	if !s.Discard {
		s.writes = append(s.writes, Access{Field: f, Value: v})
	}
	s.fields[f/4] = v
	if f == Control && v == ControlTrigger {
		s.trigger()
	}
}

func (s *Sim) Read(f Field) uint32 {
	s.reads++
	if f == Control && s.fields[Control/4] != ControlIdle {
		if s.Stuck {
			return s.fields[Control/4]
		}
		if s.pending > 0 {
			s.pending--
			return s.fields[Control/4]
		}
		s.fields[Control/4] = ControlIdle
	}
	return s.fields[f/4]
}

func (s *Sim) trigger() {
	length := s.fields[Length/4]
	bits := int(length)
	if bits > 32 {
		// The core's counter is 32 bits wide; longer requests are truncated.
		bits = 32
	}

	sh := Shift{
		Length: length,
		TMS:    s.fields[TMS/4],
		TDI:    s.fields[TDI/4],
		From:   s.tap.State(),
	}
	for i := 0; i < bits; i++ {
		s.tap.Clock(sh.TMS>>uint(i)&1 == 1)
	}
	sh.To = s.tap.State()

	if s.OnShift != nil {
		sh.TDO = s.OnShift(sh)
	} else {
		sh.TDO = sh.TDI & mask(bits)
	}
	s.fields[TDO/4] = sh.TDO
	s.count++
	if !s.Discard {
		s.shifts = append(s.shifts, sh)
	}
	s.pending = s.BusyPolls
}

// Shifts returns a copy of every shift triggered so far.
func (s *Sim) Shifts() []Shift {
	return append([]Shift(nil), s.shifts...)
}

// Reset forgets recorded shifts without touching the TAP state.
func (s *Sim) Reset() {
	s.shifts = nil
	s.count = 0
	s.reads = 0
	s.writes = nil
}

// State reports the TAP state the simulated device is in.
func (s *Sim) State() tap.State {
	return s.tap.State()
}

// Writes returns every register write in program order.
func (s *Sim) Writes() []Access {
	return append([]Access(nil), s.writes...)
}

// Count reports how many shifts were triggered, recorded or not.
func (s *Sim) Count() int {
	return s.count
}

// Reads reports how many register reads were issued, polls included.
func (s *Sim) Reads() int {
	return s.reads
}

func mask(bits int) uint32 {
	if bits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<uint(bits) - 1
}
