package bitfile

import (
	"errors"
	"fmt"
)

var (
	// ErrFileAccess is matched by every error that prevented the container
	// file from being opened at all.
	ErrFileAccess = errors.New("bitfile: file access failed")

	// ErrFormat is matched by every error raised while decoding the container.
	ErrFormat = errors.New("bitfile: malformed container")
)

// Reason distinguishes the precondition that rejected a path.
type Reason uint8

const (
	ReasonMissing Reason = iota + 1
	ReasonDirectory
	ReasonEmpty
	ReasonOpen
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonDirectory:
		return "directory"
	case ReasonEmpty:
		return "empty file"
	case ReasonOpen:
		return "open failed"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// FileAccessError reports a path that could not be loaded.
type FileAccessError struct {
	Path   string
	Reason Reason
	Err    error
}

func (e *FileAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bitfile: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("bitfile: %s: %s", e.Path, e.Reason)
}

func (e *FileAccessError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFileAccess, e.Err}
	}
	return []error{ErrFileAccess}
}

// FormatError reports where decoding stopped. Section is 0 for the header.
type FormatError struct {
	Section byte
	Offset  int64
	Msg     string
	Err     error
}

func (e *FormatError) Error() string {
	where := "header"
	if e.Section != 0 {
		where = fmt.Sprintf("section '%c'", e.Section)
	}
	if e.Err != nil {
		return fmt.Sprintf("bitfile: %s at offset %d: %s: %v", where, e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("bitfile: %s at offset %d: %s", where, e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}
