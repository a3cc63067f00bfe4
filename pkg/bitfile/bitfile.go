// Package bitfile reads and writes Xilinx .bit configuration containers.
//
// A container is a 13-byte opaque header followed by five positional,
// tagged sections:
//
//	'a' u16 length  source file name
//	'b' u16 length  target part name
//	'c' u16 length  build date
//	'd' u16 length  build time
//	'e' u32 length  configuration payload
//
// All length fields are big-endian. Sections are not name-addressed: the tag
// found at each position must be the one expected there, otherwise the whole
// load fails.
package bitfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// HeaderSize is the length of the opaque preamble before section 'a'.
const HeaderSize = 13

// File is a decoded container. Data is mutated in place by the JTAG engine
// (bit-reversed) before transmission; Reversed records that this happened.
type File struct {
	Header     [HeaderSize]byte
	SourceFile []byte
	PartName   []byte
	Date       []byte
	Time       []byte

	// Length is the payload length declared by section 'e'.
	Length uint32
	Data   []byte

	Reversed bool
}

type section struct {
	tag        byte
	lengthSize int
	field      func(f *File) *[]byte
}

// layout is the fixed section order of the container.
var layout = []section{
	{tag: 'a', lengthSize: 2, field: func(f *File) *[]byte { return &f.SourceFile }},
	{tag: 'b', lengthSize: 2, field: func(f *File) *[]byte { return &f.PartName }},
	{tag: 'c', lengthSize: 2, field: func(f *File) *[]byte { return &f.Date }},
	{tag: 'd', lengthSize: 2, field: func(f *File) *[]byte { return &f.Time }},
	{tag: 'e', lengthSize: 4, field: func(f *File) *[]byte { return &f.Data }},
}

// Load reads the container at path.
func Load(path string) (*File, error) {
	return LoadWithLogger(path, zap.NewNop())
}

// LoadWithLogger is Load with the successful decode reported on log.
func LoadWithLogger(path string, log *zap.Logger) (*File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Reason: ReasonMissing, Err: err}
	}
	if st.IsDir() {
		return nil, &FileAccessError{Path: path, Reason: ReasonDirectory}
	}
	if st.Size() == 0 {
		return nil, &FileAccessError{Path: path, Reason: ReasonEmpty}
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Reason: ReasonOpen, Err: err}
	}
	defer in.Close()

	f, err := Parse(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info("bitstream loaded",
		zap.String("path", path),
		zap.String("source", f.SourceName()),
		zap.String("part", f.Part()),
		zap.String("date", f.BuildDate()),
		zap.String("time", f.BuildTime()),
		zap.Uint32("length", f.Length))
	return f, nil
}

// Parse decodes a container from r. Any tag mismatch or short read fails the
// decode and no partial File is returned.
func Parse(r io.Reader) (*File, error) {
	cr := &countingReader{r: r}
	f := &File{}

	if _, err := io.ReadFull(cr, f.Header[:]); err != nil {
		return nil, &FormatError{Offset: cr.n, Msg: "short header", Err: err}
	}

	for _, sec := range layout {
		buf, err := readSection(cr, sec)
		if err != nil {
			return nil, err
		}
		*sec.field(f) = buf
	}
	f.Length = uint32(len(f.Data))
	return f, nil
}

func readSection(cr *countingReader, sec section) ([]byte, error) {
	var tag [1]byte
	start := cr.n
	if _, err := io.ReadFull(cr, tag[:]); err != nil {
		return nil, &FormatError{Section: sec.tag, Offset: start, Msg: "missing tag", Err: err}
	}
	if tag[0] != sec.tag {
		return nil, &FormatError{
			Section: sec.tag,
			Offset:  start,
			Msg:     fmt.Sprintf("unexpected tag 0x%02X", tag[0]),
		}
	}

	var lenBuf [4]byte
	lb := lenBuf[:sec.lengthSize]
	if _, err := io.ReadFull(cr, lb); err != nil {
		return nil, &FormatError{Section: sec.tag, Offset: cr.n, Msg: "short length field", Err: err}
	}

	var length uint32
	switch sec.lengthSize {
	case 2:
		length = uint32(binary.BigEndian.Uint16(lb))
	case 4:
		length = binary.BigEndian.Uint32(lb)
	default:
		panic(fmt.Sprintf("bitfile: invalid length size %d", sec.lengthSize))
	}

	// Read through a limit rather than preallocating so a corrupt length
	// cannot force a multi-gigabyte allocation before the short read shows.
	payloadAt := cr.n
	buf, err := io.ReadAll(io.LimitReader(cr, int64(length)))
	if err != nil {
		return nil, &FormatError{Section: sec.tag, Offset: payloadAt, Msg: "payload read failed", Err: err}
	}
	if uint32(len(buf)) != length {
		return nil, &FormatError{
			Section: sec.tag,
			Offset:  payloadAt,
			Msg:     fmt.Sprintf("short payload: got %d of %d bytes", len(buf), length),
			Err:     io.ErrUnexpectedEOF,
		}
	}
	return buf, nil
}

// Encode serializes f back into container form. The payload is written as-is,
// so a File that has already been reversed for transmission is encoded with
// reversed bytes.
func Encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if _, err := cw.Write(f.Header[:]); err != nil {
		return cw.n, err
	}
	for _, sec := range layout {
		payload := *sec.field(f)
		hdr := make([]byte, 1+sec.lengthSize)
		hdr[0] = sec.tag
		switch sec.lengthSize {
		case 2:
			if len(payload) > 0xFFFF {
				return cw.n, fmt.Errorf("bitfile: section '%c' too long: %d bytes", sec.tag, len(payload))
			}
			binary.BigEndian.PutUint16(hdr[1:], uint16(len(payload)))
		case 4:
			if uint64(len(payload)) > 0xFFFFFFFF {
				return cw.n, fmt.Errorf("bitfile: section '%c' too long: %d bytes", sec.tag, len(payload))
			}
			binary.BigEndian.PutUint32(hdr[1:], uint32(len(payload)))
		}
		if _, err := cw.Write(hdr); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write(payload); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// SourceName returns section 'a' as a string without trailing NULs.
func (f *File) SourceName() string { return cstring(f.SourceFile) }

// Part returns section 'b' as a string without trailing NULs.
func (f *File) Part() string { return cstring(f.PartName) }

// BuildDate returns section 'c' as a string without trailing NULs.
func (f *File) BuildDate() string { return cstring(f.Date) }

// BuildTime returns section 'd' as a string without trailing NULs.
func (f *File) BuildTime() string { return cstring(f.Time) }

// Words reports how many complete 32-bit words the payload holds.
func (f *File) Words() int {
	return len(f.Data) / 4
}

// Aligned reports whether the payload is a non-empty whole number of words.
func (f *File) Aligned() bool {
	return len(f.Data) > 0 && len(f.Data)%4 == 0
}

func cstring(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
