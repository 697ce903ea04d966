package filters

import (
	"context"
	"testing"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte{0, 2, 0xfe, 7, 0x01, 1, 2}, uint16(CompressionRLE), 3, 2, 8)
	f.Add([]byte{0x78, 0x9c, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01}, uint16(CompressionZIP), 1, 1, 8)
	f.Add([]byte{1, 2, 3, 4}, uint16(CompressionZIPPrediction), 1, 1, 16)

	f.Fuzz(func(t *testing.T, data []byte, comp uint16, width, height, depth int) {
		// Keep planes small so the fuzzer explores inputs rather than allocations.
		if width < 0 || height < 0 || width > 256 || height > 256 {
			return
		}
		p := NewDefaultPipeline(Limits{MaxDecompressedSize: 1024 * 1024})
		out, err := p.Decode(context.Background(), Compression(comp), data, Params{Width: width, Height: height, Depth: depth})
		if err == nil && int64(len(out)) != (Params{Width: width, Height: height, Depth: depth}).PlaneBytes() {
			t.Fatalf("plane of %d bytes for %dx%d@%d", len(out), width, height, depth)
		}
	})
}
