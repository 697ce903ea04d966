package filters

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func TestRLEDecode(t *testing.T) {
	// Two rows of 5 bytes: "hi!AA" and "BBBBB".
	row0 := []byte{2, 'h', 'i', '!', 255, 'A'}
	row1 := []byte{252, 'B'}
	in := []byte{0, byte(len(row0)), 0, byte(len(row1))}
	in = append(in, row0...)
	in = append(in, row1...)

	out, err := NewRLEDecoder().Decode(context.Background(), in, Params{Width: 5, Height: 2, Depth: 8})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hi!AABBBBB" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRLEWideRowCounts(t *testing.T) {
	in := []byte{0, 0, 0, 2, 253, 7}
	out, err := NewRLEDecoder().Decode(context.Background(), in, Params{Width: 4, Height: 1, Depth: 8, Wide: true})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, []byte{7, 7, 7, 7}) {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestRLECorruptScanline(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"overflow", []byte{0, 2, 250, 1}},          // repeat 7 into a 4-byte row
		{"short", []byte{0, 2, 1, 9}},               // literal of 2 with 1 byte
		{"underfill", []byte{0, 2, 0, 9}},           // 1 of 4 bytes
		{"row count past end", []byte{0, 40, 0, 0}}, // declared length larger than input
		{"missing table", []byte{0}},                // truncated row count table
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRLEDecoder().Decode(context.Background(), tt.in, Params{Width: 4, Height: 1, Depth: 8})
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestZIPDecode(t *testing.T) {
	plane := []byte{1, 2, 3, 4, 5, 6}
	out, err := NewZIPDecoder(false).Decode(context.Background(), deflate(t, plane), Params{Width: 3, Height: 2, Depth: 8})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, plane) {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestZIPPrediction(t *testing.T) {
	t.Run("8bit", func(t *testing.T) {
		// Deltas 10,+1,+1 per row.
		enc := deflate(t, []byte{10, 1, 1, 20, 2, 2})
		out, err := NewZIPDecoder(true).Decode(context.Background(), enc, Params{Width: 3, Height: 2, Depth: 8})
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if !bytes.Equal(out, []byte{10, 11, 12, 20, 22, 24}) {
			t.Fatalf("unexpected output: %v", out)
		}
	})
	t.Run("16bit", func(t *testing.T) {
		enc := deflate(t, []byte{0x01, 0x00, 0x00, 0x10})
		out, err := NewZIPDecoder(true).Decode(context.Background(), enc, Params{Width: 2, Height: 1, Depth: 16})
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if binary.BigEndian.Uint16(out[2:]) != 0x0110 {
			t.Fatalf("unexpected output: %x", out)
		}
	})
	t.Run("32bit", func(t *testing.T) {
		vals := []float32{1.0, -2.5}
		raw := make([]byte, 8)
		for i, v := range vals {
			binary.BigEndian.PutUint32(raw[i*4:], math.Float32bits(v))
		}
		// Split into byte planes, then delta encode the whole row.
		planar := make([]byte, 8)
		for i := 0; i < 2; i++ {
			for k := 0; k < 4; k++ {
				planar[k*2+i] = raw[i*4+k]
			}
		}
		delta := make([]byte, 8)
		delta[0] = planar[0]
		for i := 1; i < 8; i++ {
			delta[i] = planar[i] - planar[i-1]
		}
		out, err := NewZIPDecoder(true).Decode(context.Background(), deflate(t, delta), Params{Width: 2, Height: 1, Depth: 32})
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		for i, want := range vals {
			got := math.Float32frombits(binary.BigEndian.Uint32(out[i*4:]))
			if got != want {
				t.Fatalf("sample %d = %v, want %v", i, got, want)
			}
		}
	})
}

func TestPipelineDecode(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	ctx := context.Background()

	out, err := p.Decode(ctx, CompressionRaw, []byte{1, 2, 3, 4, 99}, Params{Width: 2, Height: 2, Depth: 8})
	if err != nil {
		t.Fatalf("raw decode: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("raw output: %v", out)
	}
	if _, err := p.Decode(ctx, CompressionRaw, []byte{1}, Params{Width: 2, Height: 2, Depth: 8}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("short raw plane should be corrupt, got %v", err)
	}
	if _, err := p.Decode(ctx, Compression(9), nil, Params{Width: 1, Height: 1, Depth: 8}); err == nil {
		t.Fatalf("unknown compression should fail")
	}
	if got := (Params{Width: 9, Height: 1, Depth: 1}).RowBytes(); got != 2 {
		t.Fatalf("1-bit row bytes = %d", got)
	}
}
