// Package ir wires the three decode stages together: the parser produces a
// raw.Document, the decoder turns its channels into planes and the semantic
// builder reconstructs the layer tree on a host image.
package ir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/fonts"
	"github.com/wudi/psdkit/ir/decoded"
	"github.com/wudi/psdkit/ir/semantic"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/parser"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/security"
	"github.com/wudi/psdkit/stream"
)

// ErrCancelled is returned when a decode stops because it was cancelled.
var ErrCancelled = errors.New("decode cancelled")

// ErrorCode classifies the outcome of a decode.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeFormatInvalid
	CodeFormatTruncated
	CodeUnsupportedColorSpace
	CodeCancelled
	CodeIO
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeFormatInvalid:
		return "format invalid"
	case CodeFormatTruncated:
		return "format truncated"
	case CodeUnsupportedColorSpace:
		return "unsupported color space"
	case CodeCancelled:
		return "cancelled"
	default:
		return "i/o error"
	}
}

// Code maps an error returned by Decode onto its ErrorCode. A recoverable
// problem escalated by a strict recovery strategy counts as invalid format.
// Errors that match nothing else count as I/O failures.
func Code(err error) ErrorCode {
	var escalated recovery.Warning
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, stream.ErrTruncated):
		return CodeFormatTruncated
	case errors.Is(err, parser.ErrFormatInvalid):
		return CodeFormatInvalid
	case errors.Is(err, cmm.ErrUnsupportedColorSpace):
		return CodeUnsupportedColorSpace
	case errors.As(err, &escalated):
		return CodeFormatInvalid
	default:
		return CodeIO
	}
}

// Config collects the collaborators of a Decoder. Zero fields get defaults.
type Config struct {
	// Recovery decides which recoverable problems are fatal. Nil is lenient.
	Recovery recovery.Strategy
	Host     semantic.Host
	Feedback semantic.Feedback
	Registry cmm.Registry
	Fonts    *fonts.FontSet
	Limits   security.Limits
	Logger   observability.Logger
	Tracer   observability.Tracer
	// Workers bounds concurrent channel decodes. Zero means GOMAXPROCS.
	Workers int
	// Name is given to created images.
	Name string
}

// Decoder decodes layered documents onto host images. A Decoder may be
// reused; Cancel stops the decode currently running.
type Decoder struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewDecoder(cfg Config) *Decoder {
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.Registry == nil {
		cfg.Registry = cmm.DefaultRegistry()
	}
	if cfg.Fonts == nil {
		cfg.Fonts = fonts.NewFontSet()
	}
	return &Decoder{cfg: cfg}
}

// Cancel stops the running decode, which then fails with ErrCancelled. It
// has no effect when no decode is running.
func (d *Decoder) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Decode reads the document in r. On success the image's root holds the
// reconstructed tree and its Warnings the tolerated problems in the order
// they were met. On failure no image is returned.
func (d *Decoder) Decode(ctx context.Context, r io.ReaderAt) (*semantic.Image, error) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		cancel()
	}()

	if d.cfg.Limits.MaxParseTime > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d.cfg.Limits.MaxParseTime)
		defer stop()
	}

	journal := recovery.NewJournal(d.cfg.Recovery)
	log := d.cfg.Logger

	sctx, span := d.cfg.Tracer.StartSpan(ctx, observability.SpanParse)
	rawDoc, err := parser.NewDocumentParser(parser.Config{
		Recovery: d.cfg.Recovery,
		Journal:  journal,
		Limits:   d.cfg.Limits,
		Logger:   log,
	}).Parse(sctx, r)
	if err != nil {
		return nil, d.fail(ctx, span, "parse", err)
	}
	span.SetTag(observability.MetricLayerCount, len(rawDoc.Layers))
	span.Finish()

	sctx, span = d.cfg.Tracer.StartSpan(ctx, observability.SpanDecode)
	decDoc, err := decoded.NewDecoder(decoded.Config{
		Registry: d.cfg.Registry,
		Journal:  journal,
		Limits:   d.cfg.Limits,
		Logger:   log,
		Workers:  d.cfg.Workers,
	}).Decode(sctx, rawDoc)
	if err != nil {
		return nil, d.fail(ctx, span, "decode", err)
	}
	span.Finish()

	sctx, span = d.cfg.Tracer.StartSpan(ctx, observability.SpanBuild)
	img, err := semantic.NewBuilder(semantic.Config{
		Host:     d.cfg.Host,
		Feedback: d.cfg.Feedback,
		Fonts:    d.cfg.Fonts,
		Journal:  journal,
		Limits:   d.cfg.Limits,
		Logger:   log,
		Name:     d.cfg.Name,
	}).Build(sctx, decDoc)
	if err != nil {
		return nil, d.fail(ctx, span, "build", err)
	}
	img.Warnings = journal.Warnings()
	span.SetTag(observability.MetricWarnings, len(img.Warnings))
	span.Finish()

	log.Info("document decoded",
		observability.Int("width", img.Width),
		observability.Int("height", img.Height),
		observability.String("colorspace", img.ColorSpace.ID()),
		observability.Int("layers", len(rawDoc.Layers)),
		observability.Int("warnings", len(img.Warnings)))
	return img, nil
}

// fail finishes span with err and returns err wrapped for its stage. Errors
// caused by cancellation are reported as ErrCancelled.
func (d *Decoder) fail(ctx context.Context, span observability.Span, stage string, err error) error {
	if ctx.Err() != nil && !errors.Is(err, stream.ErrTruncated) {
		err = fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	err = fmt.Errorf("%s: %w", stage, err)
	span.SetError(err)
	span.Finish()
	d.cfg.Logger.Error("decode failed", observability.String("stage", stage), observability.Error("error", err))
	return err
}
