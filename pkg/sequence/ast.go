package sequence

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// Script is a parsed programming sequence.
type Script struct {
	Steps []*Step `( Terminator | @@ )*`
}

// Step is one statement, e.g. `instruction 0x05 6 trace`.
type Step struct {
	Pos lexer.Position

	Op    string `@( "reset" | "idle" | "goto-reset" | "instruction" | "clock" | "bitstream" | "shift" | "idcode" )`
	Args  []*Arg `@@*`
	Trace bool   `@"trace"? Terminator`
}

// Arg is a numeric operand.
type Arg struct {
	Value Number `@Number`
}

func (s *Step) String() string {
	out := s.Op
	for _, a := range s.Args {
		out += fmt.Sprintf(" 0x%x", uint32(a.Value))
	}
	if s.Trace {
		out += " trace"
	}
	return out
}

// Number is a 32-bit unsigned literal in decimal, 0x, 0b or 0o form.
// Underscores may separate digits.
type Number uint32

// Capture implements participle.Capture.
func (n *Number) Capture(values []string) error {
	v, err := strconv.ParseUint(values[0], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", values[0], err)
	}
	*n = Number(v)
	return nil
}

// arity lists the accepted argument counts per operation.
var arity = map[string][2]int{
	"reset":       {0, 0},
	"idle":        {0, 0},
	"goto-reset":  {0, 0},
	"bitstream":   {0, 0},
	"clock":       {1, 1},
	"instruction": {1, 2},
	"shift":       {3, 3},
	"idcode":      {0, 1},
}

// Arg returns operand i as a uint32.
func (s *Step) Arg(i int) uint32 {
	return uint32(s.Args[i].Value)
}

// Validate checks argument counts and ranges for every step.
func (s *Script) Validate() error {
	for _, st := range s.Steps {
		r, ok := arity[st.Op]
		if !ok {
			return fmt.Errorf("%s: unknown operation %q", st.Pos, st.Op)
		}
		if n := len(st.Args); n < r[0] || n > r[1] {
			if r[0] == r[1] {
				return fmt.Errorf("%s: %s takes %d argument(s), got %d", st.Pos, st.Op, r[0], n)
			}
			return fmt.Errorf("%s: %s takes %d to %d arguments, got %d", st.Pos, st.Op, r[0], r[1], n)
		}
		switch st.Op {
		case "instruction":
			if len(st.Args) == 2 && (st.Arg(1) == 0 || st.Arg(1) > 32) {
				return fmt.Errorf("%s: instruction length %d out of range 1..32", st.Pos, st.Arg(1))
			}
		case "shift":
			if st.Arg(0) == 0 || st.Arg(0) > 32 {
				return fmt.Errorf("%s: shift length %d out of range 1..32", st.Pos, st.Arg(0))
			}
		}
	}
	return nil
}

// UsesBitstream reports whether any step shifts the configuration payload.
func (s *Script) UsesBitstream() bool {
	for _, st := range s.Steps {
		if st.Op == "bitstream" {
			return true
		}
	}
	return false
}
