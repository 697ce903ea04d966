package stream

import (
	"errors"
	"io"
	"testing"
)

func TestReaderBigEndian(t *testing.T) {
	r := FromBytes([]byte{
		'8', 'B', 'P', 'S',
		0x00, 0x01,
		0xFF, 0xFE,
		0x00, 0x01, 0x80, 0x00, // 1.5 in 16.16
		0x3F, 0xF0, 0, 0, 0, 0, 0, 0, // 1.0
	})
	sig, err := r.Signature()
	if err != nil || sig != "8BPS" {
		t.Fatalf("signature: %q %v", sig, err)
	}
	if v, _ := r.U16(); v != 1 {
		t.Fatalf("u16 = %d", v)
	}
	if v, _ := r.I16(); v != -2 {
		t.Fatalf("i16 = %d", v)
	}
	if v, _ := r.Fixed16(); v != 1.5 {
		t.Fatalf("fixed = %v", v)
	}
	if v, _ := r.F64(); v != 1.0 {
		t.Fatalf("f64 = %v", v)
	}
	if r.Remaining() != 0 || r.Position() != 20 {
		t.Fatalf("position %d remaining %d", r.Position(), r.Remaining())
	}
}

func TestReaderTruncated(t *testing.T) {
	r := FromBytes([]byte{0x00, 0x01})
	if _, err := r.U32(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if r.Position() != 0 {
		t.Fatalf("failed read must not advance, at %d", r.Position())
	}
}

type failingReaderAt struct{}

func (failingReaderAt) ReadAt([]byte, int64) (int, error) { return 0, io.ErrClosedPipe }

func TestReaderIOErrorIsNotTruncation(t *testing.T) {
	r := New(failingReaderAt{}, 16)
	_, err := r.U32()
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTruncated) {
		t.Fatalf("I/O failure must not be reported as truncation: %v", err)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("I/O error should be wrapped: %v", err)
	}
}

func TestSectionAdvancesParent(t *testing.T) {
	r := FromBytes([]byte{1, 2, 3, 4, 5, 6})
	sec, err := r.Section(4)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if r.Position() != 4 {
		t.Fatalf("parent should skip the section, at %d", r.Position())
	}
	if b, _ := sec.U8(); b != 1 {
		t.Fatalf("section first byte = %d", b)
	}
	if _, err := sec.Bytes(4); !errors.Is(err, ErrTruncated) {
		t.Fatalf("section must be bounded, got %v", err)
	}
	if _, err := r.Section(3); !errors.Is(err, ErrTruncated) {
		t.Fatalf("oversized section should fail, got %v", err)
	}
}

func TestPascalStringPadding(t *testing.T) {
	// length 3 + "abc" is 4 bytes, already aligned to 4; then one more byte.
	r := FromBytes([]byte{3, 'a', 'b', 'c', 0xAA, 1, 'x', 0, 0})
	s, err := r.PascalString(4)
	if err != nil || s != "abc" {
		t.Fatalf("pascal: %q %v", s, err)
	}
	if b, _ := r.U8(); b != 0xAA {
		t.Fatalf("unexpected byte after aligned string: %x", b)
	}
	s, err = r.PascalString(2)
	if err != nil || s != "x" || r.Remaining() != 1 {
		t.Fatalf("pad 2: %q %v remaining %d", s, err, r.Remaining())
	}
}

func TestStringDecoders(t *testing.T) {
	if got := DecodeMacRoman([]byte{0x8A}); got != "ä" {
		t.Fatalf("mac roman: %q", got)
	}
	if got := DecodeUTF16BE([]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i', 0, 0}); got != "Hi" {
		t.Fatalf("utf16: %q", got)
	}
	if got := DecodeUTF16BE(EncodeUTF16BE("Ebene 1")); got != "Ebene 1" {
		t.Fatalf("utf16 round trip: %q", got)
	}
	r := FromBytes([]byte{0, 0, 0, 2, 0x00, 'O', 0x00, 'K'})
	if s, err := r.UnicodeString(); err != nil || s != "OK" {
		t.Fatalf("unicode string: %q %v", s, err)
	}
}
