package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, SpanParse)
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("nil logger should become NopLogger")
	}
	l := NewApexLogger(nil)
	if OrNop(l) != l {
		t.Fatalf("non-nil logger must be returned unchanged")
	}
}

func TestApexLoggerFields(t *testing.T) {
	h := memory.New()
	base := &log.Logger{Handler: h, Level: log.DebugLevel}
	l := NewApexLogger(base).With(String("component", "parser"))

	l.Warn("unbalanced group", Int("layer", 3), Bool("root", true), Error("err", errors.New("boom")))
	l.Debug("tag skipped", Float64("ratio", 0.5))

	if len(h.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(h.Entries))
	}
	e := h.Entries[0]
	if e.Message != "unbalanced group" || e.Level != log.WarnLevel {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Fields["component"] != "parser" || e.Fields["layer"] != 3 || e.Fields["root"] != true {
		t.Fatalf("fields not propagated: %+v", e.Fields)
	}
	if h.Entries[1].Fields["ratio"] != 0.5 {
		t.Fatalf("float field missing: %+v", h.Entries[1].Fields)
	}
}
