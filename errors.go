package machdump

import (
	"fmt"

	"github.com/appsworld/machdump/types"
)

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError struct {
	off int64
	msg string
	val interface{}
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	return msg
}

// TruncatedError is returned when the underlying stream ends before a
// structure could be read in full.
type TruncatedError struct {
	Off  int64 // offset at which the read started
	Want int   // bytes needed
	Got  int   // bytes actually available
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated read at byte %#x: want %d bytes, got %d", e.Off, e.Want, e.Got)
}

// UnknownCommandError is returned when the load command stream contains a
// command kind the decoder does not understand.
type UnknownCommandError struct {
	Off int64
	Cmd types.LoadCmd
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("encountered unexpected tag with value 0x%08x at byte %#x", uint32(e.Cmd), e.Off)
}

// SeekError is returned when an absolute seek lands outside the file.
type SeekError struct {
	Off  int64 // requested offset
	Size int64 // size of the underlying stream
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("seek to byte %#x is outside the %d byte stream", e.Off, e.Size)
}
