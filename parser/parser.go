// Package parser reads the sections of a layered document into a
// raw.Document: header, colour mode data, image resources, layer records
// with their decoded extra data, the global layer information and the
// location of the merged image data.
package parser

import (
	"context"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/filters"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/security"
	"github.com/wudi/psdkit/stream"
)

// ErrFormatInvalid reports input that is not a layered document or breaks
// a structural rule of the format.
var ErrFormatInvalid = errors.New("invalid document format")

// Config controls parsing.
type Config struct {
	Recovery recovery.Strategy
	// Journal collects recoverable problems. When nil one is created from
	// Recovery.
	Journal *recovery.Journal
	Limits  security.Limits
	Logger  observability.Logger
}

// DocumentParser builds a raw.Document from a seekable input.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.Journal == nil {
		cfg.Journal = recovery.NewJournal(cfg.Recovery)
	}
	return &DocumentParser{cfg: cfg}
}

// Journal returns the journal recoverable problems are reported to.
func (p *DocumentParser) Journal() *recovery.Journal { return p.cfg.Journal }

var _ raw.Parser = (*DocumentParser)(nil)

// Parse reads the whole structure of the document in r. Pixel data is not
// decoded; channel descriptors record where it lives.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	d := &decoder{
		ctx:     ctx,
		cfg:     p.cfg,
		log:     p.cfg.Logger,
		journal: p.cfg.Journal,
		desc: descriptor.Config{
			MaxDepth: p.cfg.Limits.MaxDescriptorDepth,
			MaxItems: p.cfg.Limits.MaxDescriptorItems,
		},
		doc: &raw.Document{Resources: raw.NewResources(), Source: r},
	}
	size, known := sizeOf(r)
	d.sizeKnown = known
	s := stream.New(r, size)

	hdr, err := d.readHeader(s)
	if err != nil {
		return nil, err
	}
	d.doc.Header = hdr
	d.wide = hdr.Wide()
	d.log.Debug("header",
		observability.Int("version", hdr.Version),
		observability.Int("width", hdr.Width),
		observability.Int("height", hdr.Height),
		observability.Int("channels", hdr.Channels),
		observability.Int("depth", hdr.Depth),
		observability.String("mode", hdr.Mode.String()))

	if err := d.readColorModeData(s); err != nil {
		return nil, errors.Wrap(err, "color mode data")
	}
	if err := d.readResources(s); err != nil {
		return nil, errors.Wrap(err, "image resources")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.readLayerSection(s); err != nil {
		return nil, errors.Wrap(err, "layer and mask information")
	}
	if err := d.readImageData(s); err != nil {
		return nil, errors.Wrap(err, "image data")
	}
	return d.doc, nil
}

// decoder carries the state of one Parse call.
type decoder struct {
	ctx       context.Context
	cfg       Config
	log       observability.Logger
	journal   *recovery.Journal
	desc      descriptor.Config
	doc       *raw.Document
	wide      bool
	sizeKnown bool
}

// warn reports a recoverable problem. The returned error is non-nil only
// when the recovery strategy escalates it.
func (d *decoder) warn(err error, loc recovery.Location) error {
	d.log.Warn(err.Error(), observability.String("at", loc.String()))
	return d.journal.Report(d.ctx, err, loc)
}

func (d *decoder) invalid(format string, args ...any) error {
	return errors.Wrapf(ErrFormatInvalid, format, args...)
}

func (d *decoder) readImageData(s *stream.Reader) error {
	if s.Remaining() < 2 {
		return d.warn(errors.New("merged image data is missing"), recovery.At("image data", s.Position()))
	}
	c, err := s.U16()
	if err != nil {
		return err
	}
	data := &raw.ImageData{Compression: filters.Compression(c), Offset: s.Position()}
	if d.sizeKnown {
		data.Length = s.Remaining()
	}
	d.doc.ImageData = data
	return nil
}

// sizeOf reports the length of r when it can be learned without reading.
func sizeOf(r io.ReaderAt) (int64, bool) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), true
	case *os.File:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size(), true
		}
	}
	return math.MaxInt64, false
}
