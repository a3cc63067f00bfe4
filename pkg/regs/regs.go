// Package regs addresses the AXI-to-JTAG register block.
//
// The block exposes five 32-bit fields inside a memory window. Writes to
// Length, TMS and TDI stage a shift; writing 1 to Control triggers it and the
// core clears Control to 0 once TDO is valid.
package regs

import "fmt"

// MapSize is the size of the register window exposed by the UIO device.
const MapSize = 0x10000

// Field is the byte offset of a register within the window.
type Field uint32

const (
	Length  Field = 0x00
	TMS     Field = 0x04
	TDI     Field = 0x08
	TDO     Field = 0x0C
	Control Field = 0x10
)

// Control register values.
const (
	ControlIdle    uint32 = 0
	ControlTrigger uint32 = 1
)

var fieldNames = map[Field]string{
	Length:  "LEN",
	TMS:     "TMS",
	TDI:     "TDI",
	TDO:     "TDO",
	Control: "CTRL",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(0x%02X)", uint32(f))
}

// Block is ordered access to the register window. Implementations must make
// every Write visible to the hardware before any subsequent Write or Read is
// issued, and every Read must observe the hardware, never a cached value.
type Block interface {
	Write(f Field, v uint32)
	Read(f Field) uint32
}
