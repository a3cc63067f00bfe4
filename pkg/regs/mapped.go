package regs

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapped is a Block backed by a memory mapping. Every access is a 32-bit
// atomic load or store, which the Go memory model orders sequentially; on ARM
// these carry the DMB barriers the core needs between staging writes.
type Mapped struct {
	mem    []byte
	mapped bool
}

var _ Block = (*Mapped)(nil)

// Open maps size bytes of the UIO device at path. The file descriptor is
// closed before returning; the mapping stays valid until Close.
func Open(path string, size int) (*Mapped, error) {
	if size < int(Control)+4 {
		return nil, fmt.Errorf("regs: map size 0x%x too small for register block", size)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}
	return &Mapped{mem: mem, mapped: true}, nil
}

// NewMapped wraps an existing region. mem must be 4-byte aligned and cover
// the Control register.
func NewMapped(mem []byte) (*Mapped, error) {
	if len(mem) < int(Control)+4 {
		return nil, fmt.Errorf("regs: region of %d bytes too small for register block", len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, fmt.Errorf("regs: region is not 4-byte aligned")
	}
	return &Mapped{mem: mem}, nil
}

func (m *Mapped) word(f Field) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.mem[f]))
}

// Write stores v into field f.
func (m *Mapped) Write(f Field, v uint32) {
	atomic.StoreUint32(m.word(f), v)
}

// Read loads field f.
func (m *Mapped) Read(f Field) uint32 {
	return atomic.LoadUint32(m.word(f))
}

// Close releases the mapping. Regions passed to NewMapped are left alone.
func (m *Mapped) Close() error {
	if !m.mapped || m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	if err != nil {
		return fmt.Errorf("regs: munmap: %w", err)
	}
	return nil
}
