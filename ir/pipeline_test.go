package ir

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/wudi/psdkit/builder"
	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/ir/semantic"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
)

func flatDocument() []byte {
	src := builder.NewDocument(4, 4)
	src.MergedData = builder.RawPlane(4, 4*3, 9)
	return src.Bytes()
}

func layeredDocument() []byte {
	rect := image.Rect(0, 0, 4, 4)
	return builder.NewDocument(4, 4).
		Layer(builder.NewLayer("one", rect).Channel(0, 0, builder.RawPlane(4, 4, 1))).
		Layer(builder.NewLayer("two", rect).Channel(0, 0, builder.RawPlane(4, 4, 2))).
		Bytes()
}

type recordingTracer struct {
	mu    sync.Mutex
	spans []string
	errs  int
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, recordingSpan{r}
}

type recordingSpan struct{ r *recordingTracer }

func (recordingSpan) SetTag(string, interface{}) {}
func (s recordingSpan) SetError(error) {
	s.r.mu.Lock()
	s.r.errs++
	s.r.mu.Unlock()
}
func (recordingSpan) Finish() {}

func TestDecodeFlatDocument(t *testing.T) {
	tracer := &recordingTracer{}
	img, err := NewDecoder(Config{Tracer: tracer}).Decode(context.Background(), bytes.NewReader(flatDocument()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if Code(err) != CodeOK {
		t.Fatalf("code %v", Code(err))
	}
	kids := img.Children(img.Root())
	if len(kids) != 1 || kids[0].Name != "Background" || kids[0].Kind != semantic.KindPaint {
		t.Fatalf("children %+v", kids)
	}
	if got := kids[0].Pixels.Pixel(1, 1); !bytes.Equal(got, []byte{9, 9, 9, 255}) {
		t.Fatalf("pixel %v", got)
	}
	want := []string{observability.SpanParse, observability.SpanDecode, observability.SpanBuild}
	if len(tracer.spans) != len(want) {
		t.Fatalf("spans %v", tracer.spans)
	}
	for i := range want {
		if tracer.spans[i] != want[i] {
			t.Fatalf("spans %v", tracer.spans)
		}
	}
}

func TestDecodeLayers(t *testing.T) {
	img, err := NewDecoder(Config{Name: "doc"}).Decode(context.Background(), bytes.NewReader(layeredDocument()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Name != "doc" {
		t.Errorf("name %q", img.Name)
	}
	kids := img.Children(img.Root())
	if len(kids) != 2 || kids[0].Name != "one" || kids[1].Name != "two" {
		t.Fatalf("children %+v", kids)
	}
	if len(img.Warnings) != 0 {
		t.Fatalf("warnings %v", img.Warnings)
	}
}

type rejectingRegistry struct{}

func (rejectingRegistry) ColorSpace(cmm.Model, cmm.Depth, cmm.Profile) (*cmm.ColorSpace, error) {
	return nil, cmm.ErrUnsupportedColorSpace
}
func (rejectingRegistry) DefaultProfile(cmm.Model) cmm.Profile { return nil }

func TestErrorCodes(t *testing.T) {
	bad := flatDocument()
	copy(bad, "8BPX")

	// A layer far larger than its channel data must not be allocated.
	oversized := builder.NewDocument(4, 4).
		Layer(builder.NewLayer("huge", image.Rect(0, 0, 100000, 100000)).Channel(0, 0, nil)).
		Bytes()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		cfg  Config
		data []byte
		want ErrorCode
	}{
		{"bad signature", context.Background(), Config{}, bad, CodeFormatInvalid},
		{"oversized layer", context.Background(), Config{}, oversized, CodeFormatInvalid},
		{"truncated header", context.Background(), Config{}, flatDocument()[:20], CodeFormatTruncated},
		{"unsupported color space", context.Background(), Config{Registry: rejectingRegistry{}}, flatDocument(), CodeUnsupportedColorSpace},
		{"cancelled", cancelled, Config{}, flatDocument(), CodeCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := NewDecoder(tc.cfg).Decode(tc.ctx, bytes.NewReader(tc.data))
			if err == nil {
				t.Fatalf("expected error")
			}
			if img != nil {
				t.Fatalf("image returned with error")
			}
			if got := Code(err); got != tc.want {
				t.Fatalf("code %v, want %v (%v)", got, tc.want, err)
			}
		})
	}
}

func TestStrictRecoveryIsFatal(t *testing.T) {
	var corrupt builder.Buffer
	corrupt.U16(3)
	corrupt.Write([]byte{0x7f, 1, 2})
	data := builder.NewDocument(4, 1).
		Layer(builder.NewLayer("l", image.Rect(0, 0, 4, 1)).Channel(0, 1, corrupt.Bytes())).
		Bytes()

	img, err := NewDecoder(Config{}).Decode(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("lenient decode: %v", err)
	}
	if len(img.Warnings) != 1 {
		t.Fatalf("warnings %v", img.Warnings)
	}

	_, err = NewDecoder(Config{Recovery: recovery.NewStrictStrategy()}).Decode(context.Background(), bytes.NewReader(data))
	if err == nil {
		t.Fatalf("strict decode should fail")
	}
	if Code(err) != CodeFormatInvalid {
		t.Fatalf("code %v", Code(err))
	}
}

// cancellingHost cancels the decode once the image exists.
type cancellingHost struct {
	semantic.MemoryHost
	dec *Decoder
}

func (h *cancellingHost) CreateImage(undo semantic.UndoStore, w, ht int, cs *cmm.ColorSpace, name string) (*semantic.Image, error) {
	h.dec.Cancel()
	return h.MemoryHost.CreateImage(undo, w, ht, cs, name)
}

func TestCancel(t *testing.T) {
	host := &cancellingHost{}
	dec := NewDecoder(Config{Host: host})
	host.dec = dec
	dec.Cancel()

	_, err := dec.Decode(context.Background(), bytes.NewReader(layeredDocument()))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
	if Code(err) != CodeCancelled {
		t.Fatalf("code %v", Code(err))
	}
}
