package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// reader decodes little-endian primitives with a sticky error: after
// the first failure every read returns a zero value, so parse loops can
// check r.err once per record instead of after every field.
type reader struct {
	br   *bufio.Reader
	off  int64
	size int64
	err  error
}

func newReader(rd io.Reader, size int64) *reader {
	return &reader{br: bufio.NewReader(rd), size: size}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.size > 0 && r.off+int64(n) > r.size {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		r.err = err
		return nil
	}
	r.off += int64(n)
	return buf
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) f64() float64 {
	return math.Float64frombits(r.u64())
}

func (r *reader) str() string {
	n := r.u64()
	if r.err != nil {
		return ""
	}
	if n == 0 {
		return ""
	}
	if r.size > 0 && n > uint64(r.size) {
		r.err = fmt.Errorf("string length %d exceeds file size", n)
		return ""
	}
	b := r.take(int(n))
	if r.err != nil {
		return ""
	}
	return string(b)
}
