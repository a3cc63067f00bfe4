// Package idcode decodes IEEE 1149.1 IDCODE values and names the devices
// xvcprog knows how to configure.
package idcode

import (
	"fmt"
	"strings"
)

// VersionMask clears the silicon revision nibble, which differs between
// steppings of the same part.
const VersionMask = 0x0FFFFFFF

// IDCode represents a parsed IEEE 1149.1 JTAG IDCODE
type IDCode struct {
	Raw              uint32 // full IDCODE
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106
	HasIDCode        bool   // bit 0 == 1
}

// Parse splits a raw 32-bit IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8(raw>>28&0xF),
		PartNumber:       uint16(raw>>12&0xFFFF),
		ManufacturerCode: uint16(raw>>1&0x7FF),
		HasIDCode:        raw&1 == 1,
	}
}

// Matches compares two IDCODEs ignoring the version field.
func (id IDCode) Matches(raw uint32) bool {
	return id.Raw&VersionMask == raw&VersionMask
}

func (id IDCode) String() string {
	m := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)", id.Raw, m, id.PartNumber, id.Version)
}

// manufacturers maps IDCODE bits [11:1] (JEP106 bank and identity) of
// programmable-logic vendors.
var manufacturers = map[uint16]string{
	0x009: "Intel",
	0x021: "Lattice",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x23B: "ARM",
}

// LookupManufacturer names a JEP106 manufacturer code.
func LookupManufacturer(code uint16) string {
	if name, ok := manufacturers[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%03X)", code)
}

// Device describes a part by the prefix Vivado writes into .bit headers.
type Device struct {
	IDCode uint32 // version nibble zero
	Name   string // "xczu9"
	Family string
}

var devices = []Device{
	{0x04711093, "xczu2", "Zynq UltraScale+"},
	{0x04710093, "xczu3", "Zynq UltraScale+"},
	{0x04721093, "xczu4", "Zynq UltraScale+"},
	{0x04720093, "xczu5", "Zynq UltraScale+"},
	{0x04739093, "xczu6", "Zynq UltraScale+"},
	{0x04730093, "xczu7", "Zynq UltraScale+"},
	{0x04738093, "xczu9", "Zynq UltraScale+"},
	{0x04740093, "xczu11", "Zynq UltraScale+"},
	{0x04B31093, "xcvu9p", "Virtex UltraScale+"},
	{0x03822093, "xcku040", "Kintex UltraScale"},
}

// Lookup returns the known device with the given IDCODE, ignoring version.
func Lookup(raw uint32) (Device, bool) {
	for _, d := range devices {
		if d.IDCode == raw&VersionMask {
			return d, true
		}
	}
	return Device{}, false
}

// AcceptsPart reports whether a .bit part name such as
// "xczu9eg-ffvb1156-2-e" was built for d.
func (d Device) AcceptsPart(part string) bool {
	part = strings.ToLower(part)
	if !strings.HasPrefix(part, d.Name) {
		return false
	}
	// "xczu1" must not accept "xczu11eg".
	rest := part[len(d.Name):]
	return rest == "" || rest[0] < '0' || rest[0] > '9'
}
