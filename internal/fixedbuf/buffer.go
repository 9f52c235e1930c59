package fixedbuf

import "fmt"

// Buffer is a byte buffer with a hard capacity. The emitter renders the whole
// SDK through one Buffer so artifact size is bounded up front; overflowing it
// is reported as ErrCapacityExceeded, never grown past and never panicked.
//
// The first overflow is sticky: once a write fails, all later writes fail with
// the same error so callers can write a run of lines and check once.
type Buffer struct {
	buf []byte
	err error
}

// NewBuffer allocates a buffer with the given capacity in bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) error {
	if b.err != nil {
		return b.err
	}
	if len(b.buf)+len(s) > cap(b.buf) {
		b.err = ErrCapacityExceeded
		return b.err
	}
	b.buf = append(b.buf, s...)
	return nil
}

// Writef appends a formatted string.
func (b *Buffer) Writef(format string, args ...any) error {
	if b.err != nil {
		return b.err
	}
	n := len(b.buf)
	out := fmt.Appendf(b.buf, format, args...)
	if cap(out) != cap(b.buf) || len(out) > cap(b.buf) {
		// Appendf outgrew the fixed backing array and reallocated.
		b.buf = b.buf[:n]
		b.err = ErrCapacityExceeded
		return b.err
	}
	b.buf = out
	return nil
}

// Err returns the sticky error, nil if every write fit.
func (b *Buffer) Err() error { return b.err }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the written bytes, valid until the next write.
func (b *Buffer) Bytes() []byte { return b.buf }

// String returns a copy of the written bytes.
func (b *Buffer) String() string { return string(b.buf) }

// Reset discards the contents and clears the sticky error.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.err = nil
}
