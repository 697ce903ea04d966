package parser

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/fill"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/stream"
	"github.com/wudi/psdkit/style"
	"github.com/wudi/psdkit/textengine"
	"github.com/wudi/psdkit/vector"
)

// Keys whose length field is 64 bits wide in large documents.
var wideKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true, "Mt16": true, "Mt32": true,
	"Mtrn": true, "Alph": true, "FMsk": true, "lnk2": true, "FEid": true, "FXid": true, "PxSD": true,
}

type blockHeader struct {
	sig    string
	key    string
	length int64
	offset int64
}

// nextBlock reads the header of the next tagged block. It returns false
// when no further block can be read from r.
func (d *decoder) nextBlock(r *stream.Reader, loc recovery.Location) (blockHeader, bool, error) {
	h := blockHeader{offset: r.Position()}
	if r.Remaining() < 12 {
		return h, false, nil
	}
	var err error
	if h.sig, err = r.Signature(); err != nil {
		return h, false, err
	}
	if h.sig != "8BIM" && h.sig != "8B64" {
		loc.ByteOffset = h.offset
		return h, false, d.warn(errors.Errorf("invalid tagged block signature %q", h.sig), loc)
	}
	if h.key, err = r.Signature(); err != nil {
		return h, false, err
	}
	if h.length, err = r.Length(d.wide && wideKeys[h.key]); err != nil {
		return h, false, err
	}
	loc.Tag = h.key
	loc.ByteOffset = h.offset
	if h.length > d.cfg.Limits.MaxBlockSize {
		return h, false, d.warn(errors.Errorf("tagged block of %d bytes exceeds limit", h.length), loc)
	}
	if h.length > r.Remaining() {
		return h, false, d.warn(errors.Errorf("tagged block length %d exceeds the %d bytes available", h.length, r.Remaining()), loc)
	}
	return h, true, nil
}

func (d *decoder) readRecordBlocks(r *stream.Reader, rec *raw.LayerRecord) error {
	for {
		h, ok, err := d.nextBlock(r, recovery.AtLayer("extra data", rec.Index, ""))
		if err != nil || !ok {
			return err
		}
		data, err := r.Bytes(h.length)
		if err != nil {
			return err
		}
		rec.Blocks = append(rec.Blocks, raw.TaggedBlock{Signature: h.sig, Key: h.key, Data: data, Offset: h.offset})
		if err := d.decodeExtra(rec, h.key, data); err != nil {
			return err
		}
	}
}

// decodeExtra routes a record's tagged block to its decoder. A block that
// fails to decode is reported and its feature left unset.
func (d *decoder) decodeExtra(rec *raw.LayerRecord, key string, data []byte) error {
	err := d.decodeKnown(rec, key, data)
	if err == nil {
		return nil
	}
	loc := recovery.AtLayer("extra data", rec.Index, key)
	return d.warn(errors.Wrapf(err, "dropping %s", key), loc)
}

func (d *decoder) decodeKnown(rec *raw.LayerRecord, key string, data []byte) error {
	logger := d.log.With(observability.Int("layer", rec.Index), observability.String("tag", key))
	r := stream.FromBytes(data)
	var err error
	switch key {
	case "lsct", "lsdk":
		rec.Divider, err = parseDivider(r)
	case "luni":
		rec.UnicodeName, err = r.UnicodeString()
	case "lyid":
		rec.LayerID, err = r.U32()
	case "lclr":
		rec.ColorLabel, err = r.U16()
	case "lspf":
		var v uint32
		v, err = r.U32()
		rec.Locks = raw.Locks(v)
	case "iOpa":
		rec.FillOpacity, err = r.U8()
	case "vmsk", "vsms":
		rec.VectorMask, err = vector.Parse(data)
	case "SoCo", "GdFl", "PtFl":
		rec.Fill, err = fill.Parse(key, data, logger)
	case "vscg":
		var cfg *fill.Config
		if cfg, err = parseStrokeContent(r, logger); err == nil && rec.Fill == nil {
			rec.Fill = cfg
		}
	case "vstk":
		rec.Stroke, err = fill.ParseStroke(data, logger)
	case "vogk":
		var ignored []string
		rec.Origination, ignored, err = fill.ParseOrigination(data, logger)
		for _, s := range ignored {
			logger.Debug("origination value ignored", observability.String("value", s))
		}
	case "TySh":
		rec.Text, err = textengine.ParseTypeTool(data, d.desc, logger)
	case "lfx2", "lmfx":
		rec.Style, err = style.Parse(data, d.desc, logger)
	case "SoLd", "SoLE", "PlLd":
		rec.Placed, err = parsePlaced(key, r, d.desc)
	default:
		if _, ok := adjustmentFilters[key]; ok {
			rec.Adjustment, err = parseAdjustment(key, data, d.desc)
			break
		}
		logger.Debug("tagged block skipped")
	}
	return err
}

func parseDivider(r *stream.Reader) (*raw.Divider, error) {
	t, err := r.U32()
	if err != nil {
		return nil, err
	}
	div := &raw.Divider{Type: raw.SectionType(t)}
	if t > uint32(raw.SectionBoundingDivider) {
		div.Type = raw.SectionOther
	}
	if r.Remaining() < 8 {
		return div, nil
	}
	sig, err := r.Signature()
	if err != nil {
		return nil, err
	}
	if sig != "8BIM" {
		return nil, errors.Errorf("bad divider signature %q", sig)
	}
	if div.BlendKey, err = r.Signature(); err != nil {
		return nil, err
	}
	if r.Remaining() >= 4 {
		if div.SubType, err = r.U32(); err != nil {
			return nil, err
		}
	}
	return div, nil
}

// parseStrokeContent decodes 'vscg': the fill tag of the shape's content
// followed by its descriptor.
func parseStrokeContent(r *stream.Reader, logger observability.Logger) (*fill.Config, error) {
	tag, err := r.Signature()
	if err != nil {
		return nil, err
	}
	rest, err := r.Bytes(r.Remaining())
	if err != nil {
		return nil, err
	}
	return fill.Parse(tag, rest, logger)
}
