package decoded

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/filters"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/security"
	"github.com/wudi/psdkit/stream"
)

// Config controls pixel decoding.
type Config struct {
	Pipeline *filters.Pipeline
	Registry cmm.Registry
	Journal  *recovery.Journal
	Limits   security.Limits
	Logger   observability.Logger
	// Workers bounds concurrent channel decodes. Zero means GOMAXPROCS.
	Workers int
}

// NewDecoder constructs a Decoder that decompresses every channel through
// the filter pipeline.
func NewDecoder(cfg Config) Decoder {
	cfg.Limits = cfg.Limits.OrDefault()
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.NewDefaultPipeline(filters.Limits{MaxDecompressedSize: cfg.Limits.MaxDecompressedSize})
	}
	if cfg.Registry == nil {
		cfg.Registry = cmm.DefaultRegistry()
	}
	if cfg.Journal == nil {
		cfg.Journal = recovery.NewJournal(nil)
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &decoderImpl{cfg: cfg}
}

type decoderImpl struct {
	cfg Config
}

// task is one channel to decode. Input is read lazily by the worker unless
// it was already split out of the merged image data.
type task struct {
	layer  int // -1 for the merged image
	index  int
	plane  *Plane
	comp   filters.Compression
	offset int64
	length int64
	input  []byte
}

func (d *decoderImpl) Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error) {
	doc := &Document{Raw: rawDoc}
	cs, err := d.resolveColorSpace(ctx, rawDoc)
	if err != nil {
		return nil, err
	}
	doc.ColorSpace = cs

	var tasks []task
	for i, rec := range rawDoc.Layers {
		l := &Layer{Record: rec, Planes: make([]*Plane, len(rec.Channels))}
		for j, c := range rec.Channels {
			p := &Plane{ID: c.ID, Rect: rec.ChannelRect(c), Depth: rawDoc.Header.Depth}
			l.Planes[j] = p
			if p.Rect.Empty() || c.Length < 2 {
				continue
			}
			tasks = append(tasks, task{layer: i, index: j, plane: p, comp: c.Compression, offset: c.Offset, length: c.DataLength()})
		}
		doc.Layers = append(doc.Layers, l)
	}
	if len(rawDoc.Layers) == 0 && rawDoc.ImageData != nil {
		planes, merged, err := d.mergedTasks(ctx, rawDoc)
		if err != nil {
			return nil, err
		}
		doc.Merged = planes
		tasks = append(tasks, merged...)
	}
	if len(tasks) == 0 {
		return doc, nil
	}
	if err := d.run(ctx, rawDoc, tasks); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *decoderImpl) resolveColorSpace(ctx context.Context, rawDoc *raw.Document) (*cmm.ColorSpace, error) {
	var icc []byte
	if e, ok := rawDoc.Resources.Get(raw.ResourceICCProfile); ok {
		icc, _ = e.Value.([]byte)
	}
	h := rawDoc.Header
	cs, note, err := compat.ResolveColorSpace(d.cfg.Registry, h.Mode, h.Depth, icc)
	if err != nil {
		return nil, err
	}
	if note != nil {
		if ferr := d.cfg.Journal.Report(ctx, note, recovery.At("color space", 0)); ferr != nil {
			return nil, ferr
		}
	}
	d.cfg.Logger.Debug("color space", observability.String("id", cs.String()))
	return cs, nil
}

// run decodes tasks on a bounded pool. Truncated input aborts the decode;
// any other failure leaves the plane defaulted and is reported in task
// order once all workers are done.
func (d *decoderImpl) run(ctx context.Context, rawDoc *raw.Document, tasks []task) error {
	type result struct {
		idx  int
		data []byte
		err  error
	}
	sem := make(chan struct{}, d.cfg.Workers)
	results := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{idx: i, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				results <- result{idx: i, err: ctx.Err()}
				return
			default:
			}

			t := &tasks[i]
			input := t.input
			if input == nil {
				var err error
				if input, err = readAt(rawDoc.Source, t.offset, t.length); err != nil {
					results <- result{idx: i, err: err}
					return
				}
			}
			params := filters.Params{Width: t.plane.Rect.Dx(), Height: t.plane.Rect.Dy(), Depth: t.plane.Depth, Wide: rawDoc.Header.Wide()}
			data, err := d.cfg.Pipeline.Decode(ctx, t.comp, input, params)
			results <- result{idx: i, data: data, err: err}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make([]error, len(tasks))
	var fatal error
	for res := range results {
		t := &tasks[res.idx]
		switch {
		case res.err == nil:
			t.plane.Data = res.data
		case errors.Is(res.err, stream.ErrTruncated) || errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
			if fatal == nil {
				fatal = res.err
			}
		default:
			errs[res.idx] = res.err
		}
	}
	if fatal != nil {
		return fatal
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		t := &tasks[i]
		t.plane.Defaulted = true
		loc := recovery.At("image data", t.offset)
		msg := fmt.Sprintf("merged channel %d", t.plane.ID)
		if t.layer >= 0 {
			loc = recovery.AtLayer("channel data", t.layer, "")
			loc.ByteOffset = t.offset
			msg = fmt.Sprintf("channel %d", t.plane.ID)
		}
		if ferr := d.cfg.Journal.Report(ctx, errors.Wrapf(err, "%s defaulted", msg), loc); ferr != nil {
			return ferr
		}
	}
	return nil
}

// readAt reads n bytes at off; a short read is a truncation.
func readAt(src io.ReaderAt, off, n int64) ([]byte, error) {
	r := stream.New(src, off+n)
	if err := r.Seek(off); err != nil {
		return nil, err
	}
	return r.Bytes(n)
}

// mergedTasks splits the merged image data into one task per channel.
// Deflate streams span all channels and are decoded here in one piece, in
// which case no tasks are returned.
func (d *decoderImpl) mergedTasks(ctx context.Context, rawDoc *raw.Document) ([]*Plane, []task, error) {
	h := rawDoc.Header
	img := rawDoc.ImageData
	params := h.Params(h.Width, h.Height)
	planes := make([]*Plane, h.Channels)
	for ch := range planes {
		planes[ch] = &Plane{ID: mergedChannelID(h, ch), Rect: imageRect(h), Depth: h.Depth}
	}
	newTask := func(ch int) task {
		return task{layer: -1, index: ch, plane: planes[ch], comp: img.Compression, offset: img.Offset}
	}

	var tasks []task
	switch img.Compression {
	case filters.CompressionRaw:
		plane := params.PlaneBytes()
		for ch := range planes {
			t := newTask(ch)
			t.offset = img.Offset + int64(ch)*plane
			t.length = plane
			tasks = append(tasks, t)
		}
	case filters.CompressionRLE:
		countSize := int64(2)
		if h.Wide() {
			countSize = 4
		}
		rows := int64(h.Height)
		table, err := readAt(rawDoc.Source, img.Offset, countSize*rows*int64(h.Channels))
		if err != nil {
			return nil, nil, errors.Wrap(err, "merged row counts")
		}
		pos := img.Offset + int64(len(table))
		for ch := range planes {
			counts := table[int64(ch)*rows*countSize : int64(ch+1)*rows*countSize]
			var size int64
			for r := int64(0); r < rows; r++ {
				if countSize == 4 {
					size += int64(binary.BigEndian.Uint32(counts[r*4:]))
				} else {
					size += int64(binary.BigEndian.Uint16(counts[r*2:]))
				}
			}
			if size > d.cfg.Limits.MaxChannelBytes {
				return nil, nil, errors.Errorf("merged channel %d of %d bytes exceeds limit", ch, size)
			}
			data, err := readAt(rawDoc.Source, pos, size)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "merged channel %d", ch)
			}
			t := newTask(ch)
			t.offset = pos
			t.input = append(append([]byte(nil), counts...), data...)
			tasks = append(tasks, t)
			pos += size
		}
	default:
		input, err := d.readRemainder(rawDoc)
		if err != nil {
			return nil, nil, err
		}
		all := params
		all.Height *= h.Channels
		pix, err := d.cfg.Pipeline.Decode(ctx, img.Compression, input, all)
		if err != nil {
			if errors.Is(err, stream.ErrTruncated) || ctx.Err() != nil {
				return nil, nil, err
			}
			for _, p := range planes {
				p.Defaulted = true
			}
			ferr := d.cfg.Journal.Report(ctx, errors.Wrap(err, "merged image defaulted"), recovery.At("image data", img.Offset))
			return planes, nil, ferr
		}
		plane := params.PlaneBytes()
		for ch, p := range planes {
			p.Data = pix[int64(ch)*plane : int64(ch+1)*plane]
		}
	}
	return planes, tasks, nil
}

func (d *decoderImpl) readRemainder(rawDoc *raw.Document) ([]byte, error) {
	img := rawDoc.ImageData
	if img.Length > 0 {
		if img.Length > d.cfg.Limits.MaxChannelBytes {
			return nil, errors.Errorf("merged image of %d bytes exceeds limit", img.Length)
		}
		return readAt(rawDoc.Source, img.Offset, img.Length)
	}
	r := io.NewSectionReader(rawDoc.Source, img.Offset, math.MaxInt64-img.Offset)
	return io.ReadAll(io.LimitReader(r, d.cfg.Limits.MaxChannelBytes))
}

// mergedChannelID maps a merged image channel to a channel id: colour
// channels keep their index and the first extra channel is transparency.
func mergedChannelID(h raw.Header, ch int) int16 {
	colors := colorChannels(h.Mode)
	switch {
	case ch < colors:
		return int16(ch)
	case ch == colors:
		return -1
	default:
		return int16(ch)
	}
}

func colorChannels(mode compat.ColorMode) int {
	switch mode {
	case compat.ColorModeBitmap, compat.ColorModeGrayscale, compat.ColorModeDuotone, compat.ColorModeIndexed:
		return 1
	case compat.ColorModeCMYK:
		return 4
	default:
		return 3
	}
}
