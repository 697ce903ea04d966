package parser

import (
	"image"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/filters"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/stream"
)

func (d *decoder) readLayerSection(s *stream.Reader) error {
	start := s.Position()
	n, err := s.Length(d.wide)
	if err != nil {
		return err
	}
	if n > s.Remaining() {
		if ferr := d.warn(errors.Errorf("section length %d exceeds the %d bytes available", n, s.Remaining()),
			recovery.At("layer and mask information", start)); ferr != nil {
			return ferr
		}
		n = s.Remaining()
	}
	if n == 0 {
		return nil
	}
	sec, err := s.Section(n)
	if err != nil {
		return err
	}

	infoStart := sec.Position()
	infoLen, err := sec.Length(d.wide)
	if err != nil {
		return err
	}
	if infoLen%2 != 0 {
		if ferr := d.warn(errors.Errorf("odd layer info length %d", infoLen), recovery.At("layer info", infoStart)); ferr != nil {
			return ferr
		}
		infoLen++
	}
	if infoLen > sec.Remaining() {
		if ferr := d.warn(errors.Errorf("layer info length %d exceeds the %d bytes available", infoLen, sec.Remaining()),
			recovery.At("layer info", infoStart)); ferr != nil {
			return ferr
		}
		infoLen = sec.Remaining()
	}
	if infoLen > 0 {
		info, err := sec.Section(infoLen)
		if err != nil {
			return err
		}
		if err := d.readLayerInfo(info); err != nil {
			return err
		}
	}

	if sec.Remaining() >= 4 {
		if err := d.readGlobalMask(sec); err != nil {
			return err
		}
	}
	return d.readGlobalBlocks(sec)
}

// readLayerInfo reads the layer count, the records and the channel data
// that follows them.
func (d *decoder) readLayerInfo(info *stream.Reader) error {
	if info.Remaining() < 2 {
		return nil
	}
	raw16, err := info.I16()
	if err != nil {
		return err
	}
	count := int(raw16)
	if count < 0 {
		d.doc.MergedAlpha = true
		count = -count
	}
	if count > d.cfg.Limits.MaxLayers {
		return d.invalid("%d layers exceed limit %d", count, d.cfg.Limits.MaxLayers)
	}
	d.log.Debug("layer info", observability.Int("layers", count), observability.Bool("mergedAlpha", d.doc.MergedAlpha))

	layers := make([]*raw.LayerRecord, 0, count)
	for i := 0; i < count; i++ {
		if err := d.ctx.Err(); err != nil {
			return err
		}
		rec, err := d.readRecord(info, i)
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		layers = append(layers, rec)
	}

	for _, rec := range layers {
		for j := range rec.Channels {
			c := &rec.Channels[j]
			if c.Length < 2 {
				if err := info.Skip(c.Length); err != nil {
					return errors.Wrapf(err, "layer %d channel %d", rec.Index, c.ID)
				}
				continue
			}
			comp, err := info.U16()
			if err != nil {
				return errors.Wrapf(err, "layer %d channel %d", rec.Index, c.ID)
			}
			c.Compression = filters.Compression(comp)
			c.Offset = info.Position()
			if err := info.Skip(c.DataLength()); err != nil {
				return errors.Wrapf(err, "layer %d channel %d", rec.Index, c.ID)
			}
		}
	}
	d.doc.Layers = layers
	return nil
}

func readRect(r *stream.Reader) (image.Rectangle, error) {
	var v [4]int32
	for i := range v {
		n, err := r.I32()
		if err != nil {
			return image.Rectangle{}, err
		}
		v[i] = n
	}
	// top, left, bottom, right
	return image.Rect(int(v[1]), int(v[0]), int(v[3]), int(v[2])), nil
}

func (d *decoder) readRecord(r *stream.Reader, index int) (*raw.LayerRecord, error) {
	rec := &raw.LayerRecord{Index: index, Offset: r.Position()}
	var err error
	if rec.Rect, err = readRect(r); err != nil {
		return nil, err
	}
	if limit := d.cfg.Limits.MaxDimension; rec.Rect.Dx() > limit || rec.Rect.Dy() > limit {
		return nil, d.invalid("layer bounds %v exceed limit", rec.Rect)
	}
	if err := d.checkArea("layer bounds", rec.Rect, maxPixelSamples*bytesPerSample(d.doc.Header.Depth)); err != nil {
		return nil, err
	}

	nch, err := r.U16()
	if err != nil {
		return nil, err
	}
	if int(nch) > d.cfg.Limits.MaxChannels {
		return nil, d.invalid("%d channels exceed limit", nch)
	}
	rec.Channels = make([]raw.ChannelDescriptor, nch)
	for i := range rec.Channels {
		id, err := r.I16()
		if err != nil {
			return nil, err
		}
		n, err := r.Length(d.wide)
		if err != nil {
			return nil, err
		}
		if n > d.cfg.Limits.MaxChannelBytes {
			return nil, d.invalid("channel %d of %d bytes exceeds limit", id, n)
		}
		rec.Channels[i] = raw.ChannelDescriptor{ID: id, Length: n}
	}

	sig, err := r.Signature()
	if err != nil {
		return nil, err
	}
	if sig != "8BIM" {
		return nil, d.invalid("bad blend mode signature %q", sig)
	}
	if rec.BlendKey, err = r.Signature(); err != nil {
		return nil, err
	}
	if rec.Opacity, err = r.U8(); err != nil {
		return nil, err
	}
	clipping, err := r.U8()
	if err != nil {
		return nil, err
	}
	rec.Clipping = clipping != 0
	if rec.Flags, err = r.U8(); err != nil {
		return nil, err
	}
	if err := r.Skip(1); err != nil {
		return nil, err
	}

	extraLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	extra, err := r.Section(int64(extraLen))
	if err != nil {
		return nil, err
	}
	if err := d.readMaskData(extra, rec); err != nil {
		return nil, err
	}
	ranges, err := extra.U32()
	if err != nil {
		return nil, err
	}
	if rec.BlendingRanges, err = extra.Bytes(int64(ranges)); err != nil {
		return nil, err
	}
	if rec.Name, err = extra.PascalString(4); err != nil {
		return nil, err
	}
	if err := d.readRecordBlocks(extra, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *decoder) readMaskData(extra *stream.Reader, rec *raw.LayerRecord) error {
	n, err := extra.U32()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	sec, err := extra.Section(int64(n))
	if err != nil {
		return err
	}
	if n < 18 {
		return d.warn(errors.Errorf("layer mask data of %d bytes is too short", n),
			recovery.AtLayer("layer mask", rec.Index, ""))
	}
	m, err := readMask(sec)
	if err != nil {
		return err
	}
	if err := d.checkArea("layer mask", m.Rect, 1); err != nil {
		return err
	}
	rec.Mask = m
	if m.Flags&16 != 0 {
		if err := skipMaskParameters(sec); err != nil {
			return d.warn(errors.Wrap(err, "mask parameters"), recovery.AtLayer("layer mask", rec.Index, ""))
		}
	}
	if sec.Remaining() >= 18 {
		user := &raw.LayerMask{}
		if user.Flags, err = sec.U8(); err != nil {
			return err
		}
		if user.DefaultColor, err = sec.U8(); err != nil {
			return err
		}
		if user.Rect, err = readRect(sec); err != nil {
			return err
		}
		if err := d.checkArea("real user mask", user.Rect, 1); err != nil {
			return err
		}
		m.Real = user
	}
	return nil
}

// maxPixelSamples bounds the samples of a decoded pixel: four colour
// channels and alpha.
const maxPixelSamples = 5

func bytesPerSample(depth int) int64 { return int64(depth+7) / 8 }

// checkArea rejects a rectangle whose decoded buffer of pixelSize bytes per
// pixel would exceed the decompressed size limit.
func (d *decoder) checkArea(what string, r image.Rectangle, pixelSize int64) error {
	limit := d.cfg.Limits.MaxDecompressedSize
	if n := int64(r.Dx()) * int64(r.Dy()) * pixelSize; n > limit {
		return d.invalid("%s %v need %d bytes, over limit %d", what, r, n, limit)
	}
	return nil
}

func readMask(r *stream.Reader) (*raw.LayerMask, error) {
	m := &raw.LayerMask{}
	var err error
	if m.Rect, err = readRect(r); err != nil {
		return nil, err
	}
	if m.DefaultColor, err = r.U8(); err != nil {
		return nil, err
	}
	if m.Flags, err = r.U8(); err != nil {
		return nil, err
	}
	return m, nil
}

// skipMaskParameters skips the densities and feathers that follow a mask
// with the parameters flag set.
func skipMaskParameters(r *stream.Reader) error {
	params, err := r.U8()
	if err != nil {
		return err
	}
	sizes := [4]int64{1, 8, 1, 8}
	for bit, size := range sizes {
		if params&(1<<bit) != 0 {
			if err := r.Skip(size); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) readGlobalMask(sec *stream.Reader) error {
	off := sec.Position()
	n, err := sec.U32()
	if err != nil {
		return err
	}
	if int64(n) > sec.Remaining() {
		// The rest of the section cannot be framed; skip it rather than
		// reading the mask body as tagged blocks.
		if err := sec.Skip(sec.Remaining()); err != nil {
			return err
		}
		return d.warn(errors.Errorf("global layer mask length %d exceeds the section", n),
			recovery.At("global layer mask", off))
	}
	body, err := sec.Section(int64(n))
	if err != nil {
		return err
	}
	if n < 13 {
		return nil
	}
	g := &raw.GlobalMaskInfo{}
	if g.OverlayColorSpace, err = body.U16(); err != nil {
		return err
	}
	for i := range g.Components {
		if g.Components[i], err = body.U16(); err != nil {
			return err
		}
	}
	if g.Opacity, err = body.U16(); err != nil {
		return err
	}
	if g.Kind, err = body.U8(); err != nil {
		return err
	}
	d.doc.GlobalMask = g
	return nil
}
