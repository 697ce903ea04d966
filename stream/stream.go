// Package stream provides the forward binary reader the decoders share.
//
// All multi-byte values are big-endian. A Reader is bounded: reading past its
// end fails with ErrTruncated, while failures of the underlying io.ReaderAt
// surface as I/O errors that do not match ErrTruncated.
package stream

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ErrTruncated reports that the input ended before a complete structure was read.
var ErrTruncated = errors.New("stream truncated")

// Reader reads big-endian values from a bounded window of an io.ReaderAt.
type Reader struct {
	r     io.ReaderAt
	start int64
	pos   int64
	end   int64
	buf   [8]byte
}

// New returns a Reader over the first size bytes of r.
func New(r io.ReaderAt, size int64) *Reader {
	return &Reader{r: r, end: size}
}

// FromBytes returns a Reader over b.
func FromBytes(b []byte) *Reader {
	return New(bytes.NewReader(b), int64(len(b)))
}

// Position returns the absolute offset of the next byte to be read.
func (r *Reader) Position() int64 { return r.pos }

// Start returns the absolute offset of the first byte of the window.
func (r *Reader) Start() int64 { return r.start }

// End returns the absolute offset one past the last byte of the window.
func (r *Reader) End() int64 { return r.end }

// Remaining returns the number of unread bytes in the window.
func (r *Reader) Remaining() int64 { return r.end - r.pos }

// ReaderAt exposes the underlying source for deferred reads.
func (r *Reader) ReaderAt() io.ReaderAt { return r.r }

func (r *Reader) need(n int64) error {
	if n < 0 || r.pos+n > r.end {
		return errors.Wrapf(ErrTruncated, "need %d bytes at offset %d, window ends at %d", n, r.pos, r.end)
	}
	return nil
}

func (r *Reader) fill(p []byte) error {
	if err := r.need(int64(len(p))); err != nil {
		return err
	}
	n, err := r.r.ReadAt(p, r.pos)
	if n == len(p) {
		r.pos += int64(n)
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrTruncated, "short read at offset %d: %d of %d bytes", r.pos, n, len(p))
	}
	return errors.Wrapf(err, "read %d bytes at offset %d", len(p), r.pos)
}

// Read implements io.Reader within the window.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.end {
		return 0, io.EOF
	}
	if rem := r.end - r.pos; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := r.r.ReadAt(p, r.pos)
	r.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int64) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if err := r.fill(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Skip advances by n bytes without reading them.
func (r *Reader) Skip(n int64) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Seek moves to the absolute offset off, which must lie inside the window.
func (r *Reader) Seek(off int64) error {
	if off < r.start || off > r.end {
		return errors.Wrapf(ErrTruncated, "seek to %d outside [%d, %d]", off, r.start, r.end)
	}
	r.pos = off
	return nil
}

// Section returns a Reader over the next n bytes and advances r past them,
// whether or not the caller consumes the section completely.
func (r *Reader) Section(n int64) (*Reader, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	sub := &Reader{r: r.r, start: r.pos, pos: r.pos, end: r.pos + n}
	r.pos += n
	return sub, nil
}

// Align skips padding so that the position relative to base is a multiple of n.
func (r *Reader) Align(base int64, n int64) error {
	if rem := (r.pos - base) % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.fill(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.fill(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	if err := r.fill(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	if err := r.fill(r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[:8]), nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// F32 reads an IEEE-754 single.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// F64 reads an IEEE-754 double.
func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Fixed16 reads a signed 16.16 fixed-point value.
func (r *Reader) Fixed16() (float64, error) {
	v, err := r.I32()
	return float64(v) / 65536.0, err
}

// Length reads a block length that is 64 bits wide when wide is set
// (large-document variant) and 32 bits otherwise.
func (r *Reader) Length(wide bool) (int64, error) {
	if wide {
		v, err := r.U64()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, errors.Wrapf(ErrTruncated, "length %d overflows", v)
		}
		return int64(v), nil
	}
	v, err := r.U32()
	return int64(v), err
}

// Signature reads a 4-byte tag such as "8BIM".
func (r *Reader) Signature() (string, error) {
	if err := r.fill(r.buf[:4]); err != nil {
		return "", err
	}
	return string(r.buf[:4]), nil
}

// PascalString reads a length-prefixed Mac Roman string and pads the total
// size (length byte included) to a multiple of pad.
func (r *Reader) PascalString(pad int64) (string, error) {
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int64(n))
	if err != nil {
		return "", err
	}
	if pad > 1 {
		if rem := (int64(n) + 1) % pad; rem != 0 {
			if err := r.Skip(pad - rem); err != nil {
				return "", err
			}
		}
	}
	return DecodeMacRoman(b), nil
}

// UnicodeString reads a 4-byte code unit count followed by UTF-16BE text.
// Trailing NULs are dropped.
func (r *Reader) UnicodeString() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int64(n) * 2)
	if err != nil {
		return "", err
	}
	return DecodeUTF16BE(b), nil
}
