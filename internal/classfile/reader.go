package classfile

import (
	"encoding/binary"
	"fmt"
)

// reader is a big-endian cursor with a sticky error. Once a read runs past
// the end every later read returns zero and err keeps the first failure.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.data)-r.off)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

// sub returns a reader over the next n bytes and advances past them. Offsets
// reported by the sub-reader are relative to the parent's data.
func (r *reader) sub(n int) *reader {
	if !r.need(n) {
		return &reader{err: r.err}
	}
	s := &reader{data: r.data[:r.off+n], off: r.off}
	r.off += n
	return s
}
