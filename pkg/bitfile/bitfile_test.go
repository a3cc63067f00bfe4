package bitfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testHeader = [HeaderSize]byte{0x00, 0x09, 0x0F, 0xF0, 0x0F, 0xF0, 0x0F, 0xF0, 0x0F, 0xF0, 0x00, 0x00, 0x01}

func sampleFile() *File {
	return &File{
		Header:     testHeader,
		SourceFile: []byte("top;UserID=0XFFFFFFFF;Version=2023.2\x00"),
		PartName:   []byte("xcvu9p-flga2104-2L-e\x00"),
		Date:       []byte("2024/03/11\x00"),
		Time:       []byte("17:42:09\x00"),
		Data:       []byte{0xAA, 0x99, 0x55, 0x66, 0x20, 0x00, 0x00, 0x00},
		Length:     8,
	}
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "design.bit")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func mustEncode(t *testing.T, f *File) []byte {
	t.Helper()
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	return raw
}

func TestLoadWellFormed(t *testing.T) {
	want := sampleFile()
	path := writeTemp(t, mustEncode(t, want))

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Load mismatch (-want +got):\n%s", diff)
	}
	if got.Length != 8 || got.Words() != 2 || !got.Aligned() {
		t.Fatalf("Length=%d Words=%d Aligned=%v", got.Length, got.Words(), got.Aligned())
	}
	if got.Part() != "xcvu9p-flga2104-2L-e" {
		t.Fatalf("Part() = %q", got.Part())
	}
	if got.BuildDate() != "2024/03/11" || got.BuildTime() != "17:42:09" {
		t.Fatalf("BuildDate/BuildTime = %q %q", got.BuildDate(), got.BuildTime())
	}
}

func TestParseLayoutBytes(t *testing.T) {
	f := &File{
		Header:     testHeader,
		SourceFile: []byte("x"),
		PartName:   []byte{},
		Date:       []byte("d"),
		Time:       []byte("t"),
		Data:       []byte{1, 2, 3, 4},
	}
	raw := mustEncode(t, f)

	want := append([]byte{}, testHeader[:]...)
	want = append(want, 'a', 0x00, 0x01, 'x')
	want = append(want, 'b', 0x00, 0x00)
	want = append(want, 'c', 0x00, 0x01, 'd')
	want = append(want, 'd', 0x00, 0x01, 't')
	want = append(want, 'e', 0x00, 0x00, 0x00, 0x04, 1, 2, 3, 4)
	if !bytes.Equal(raw, want) {
		t.Fatalf("Encode = % X\nwant     % X", raw, want)
	}

	got, err := Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got.Length != 4 || !bytes.Equal(got.Data, []byte{1, 2, 3, 4}) {
		t.Fatalf("payload = % X (len %d)", got.Data, got.Length)
	}
}

func TestLoadPreconditions(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bit")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct {
		name   string
		path   string
		reason Reason
	}{
		{"missing", filepath.Join(dir, "nope.bit"), ReasonMissing},
		{"directory", dir, ReasonDirectory},
		{"empty", empty, ReasonEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Load(tc.path)
			if f != nil {
				t.Fatalf("Load returned a record alongside error")
			}
			if !errors.Is(err, ErrFileAccess) {
				t.Fatalf("err = %v, want ErrFileAccess", err)
			}
			var fae *FileAccessError
			if !errors.As(err, &fae) || fae.Reason != tc.reason {
				t.Fatalf("err = %v, want reason %s", err, tc.reason)
			}
		})
	}
}

func TestLoadCorruptTag(t *testing.T) {
	f := sampleFile()
	raw := mustEncode(t, f)
	off := HeaderSize + 3 + len(f.SourceFile) + 3 + len(f.PartName)
	if raw[off] != 'c' {
		t.Fatalf("byte at %d = %q, want section tag 'c'", off, raw[off])
	}
	raw[off] = 'x'

	got, err := Load(writeTemp(t, raw))
	if got != nil {
		t.Fatalf("Load returned a record for a corrupt tag")
	}
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Section != 'c' {
		t.Fatalf("err = %v, want FormatError for section 'c'", err)
	}
}

func TestParseTruncated(t *testing.T) {
	raw := mustEncode(t, sampleFile())

	cases := []struct {
		name    string
		cut     int
		section byte
	}{
		{"payload short by one", len(raw) - 1, 'e'},
		{"payload missing", len(raw) - 8, 'e'},
		{"length field cut", len(raw) - 8 - 2, 'e'},
		{"header only", HeaderSize, 'a'},
		{"header cut", 5, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse(bytes.NewReader(raw[:tc.cut]))
			if f != nil {
				t.Fatalf("Parse returned a partial record")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FormatError", err)
			}
			if fe.Section != tc.section {
				t.Fatalf("Section = %q, want %q", fe.Section, tc.section)
			}
		})
	}
}

func TestLoadTruncatedPayloadIsDeterministic(t *testing.T) {
	raw := mustEncode(t, sampleFile())
	path := writeTemp(t, raw[:len(raw)-1])

	for i := 0; i < 3; i++ {
		if _, err := Load(path); !errors.Is(err, ErrFormat) {
			t.Fatalf("attempt %d: err = %v, want ErrFormat", i, err)
		}
	}
}

func TestEncodeRejectsOversizedMetadata(t *testing.T) {
	f := sampleFile()
	f.PartName = make([]byte, 0x10000)
	if _, err := Encode(f); err == nil {
		t.Fatalf("expected error for 64KiB part name")
	}
}
