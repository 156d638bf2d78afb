// Package xborsh implements the handful of Borsh primitives the codec
// package needs: fixed-width integers little-endian, length-prefixed byte
// strings, and booleans. Borsh is nearcore's own deterministic binary
// scheme; no library in the example pack (or, to our knowledge, the wider
// Go ecosystem) implements it, so this is hand-rolled on top of
// encoding/binary rather than pulling in a generic serialization library
// (see DESIGN.md).
package xborsh

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrShortBuffer is returned by Reader methods when the remaining buffer
// is too small to satisfy the read.
var ErrShortBuffer = errors.New("xborsh: short buffer")

// Writer appends Borsh-encoded values to an in-memory buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteBytes writes a u32 length prefix followed by the raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteFixed writes raw bytes with no length prefix, for fixed-size fields
// like hashes and public keys.
func (w *Writer) WriteFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteString(s string) { w.WriteBytes([]byte(s)) }

// Reader consumes Borsh-encoded values from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadBytes reads a u32 length prefix followed by that many raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

// ReadFixed reads exactly n raw bytes with no length prefix.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Done reports whether every byte in the buffer has been consumed; callers
// use it to reject trailing garbage after decoding a message.
func (r *Reader) Done() bool { return r.Remaining() == 0 }

var _ io.Writer = (*bufWriter)(nil)

// bufWriter lets Writer be used anywhere an io.Writer is expected.
type bufWriter struct{ w *Writer }

func (bw bufWriter) Write(p []byte) (int, error) {
	bw.w.buf = append(bw.w.buf, p...)
	return len(p), nil
}

func (w *Writer) AsIOWriter() io.Writer { return bufWriter{w} }
