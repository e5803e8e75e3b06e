package machdump

import (
	"encoding/binary"
	"io"
)

// sizedReadSeeker is satisfied by both io.SectionReader and bytes.Reader.
type sizedReadSeeker interface {
	io.ReadSeeker
	Size() int64
}

// A cursor is an offset-tracked sequential reader over a seekable, sized
// byte stream. Every decode in the package goes through one, so decode
// failures always carry the offset at which they happened.
type cursor struct {
	r   sizedReadSeeker
	bo  binary.ByteOrder
	off int64
}

func newCursor(r sizedReadSeeker, bo binary.ByteOrder) (*cursor, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, &SeekError{Off: 0, Size: r.Size()}
	}
	return &cursor{r: r, bo: bo}, nil
}

func (c *cursor) Tell() int64 {
	return c.off
}

// SeekTo repositions the cursor at an absolute offset. Targets outside the
// stream fail before any read is attempted.
func (c *cursor) SeekTo(off int64) error {
	if off < 0 || off > c.r.Size() {
		return &SeekError{Off: off, Size: c.r.Size()}
	}
	if _, err := c.r.Seek(off, io.SeekStart); err != nil {
		return &SeekError{Off: off, Size: c.r.Size()}
	}
	c.off = off
	return nil
}

// Bytes reads exactly n bytes, or fails with a TruncatedError carrying the
// offset the read started at.
func (c *cursor) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	got, err := io.ReadFull(c.r, b)
	if err != nil {
		return nil, &TruncatedError{Off: c.off, Want: n, Got: got}
	}
	c.off += int64(n)
	return b, nil
}

func (c *cursor) Uint8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return c.bo.Uint16(b), nil
}

func (c *cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return c.bo.Uint32(b), nil
}

func (c *cursor) Uint64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return c.bo.Uint64(b), nil
}
