package parser

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/pattern"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/stream"
	"github.com/wudi/psdkit/textengine"
)

// Keys of global blocks that wrap the layer info of 16- and 32-bit documents.
var nestedLayerKeys = map[string]bool{"Lr16": true, "Lr32": true, "Layr": true}

func (d *decoder) readGlobalBlocks(sec *stream.Reader) error {
	for {
		h, ok, err := d.nextBlock(sec, recovery.At("global layer information", 0))
		if err != nil || !ok {
			return err
		}
		if nestedLayerKeys[h.key] {
			body, err := sec.Section(h.length)
			if err != nil {
				return err
			}
			d.doc.Global = append(d.doc.Global, raw.TaggedBlock{Signature: h.sig, Key: h.key, Offset: h.offset})
			if len(d.doc.Layers) > 0 {
				d.log.Debug("nested layer info ignored", observability.String("tag", h.key))
				continue
			}
			if err := d.readLayerInfo(body); err != nil {
				return errors.Wrap(err, h.key)
			}
			continue
		}
		data, err := sec.Bytes(h.length)
		if err != nil {
			return err
		}
		d.doc.Global = append(d.doc.Global, raw.TaggedBlock{Signature: h.sig, Key: h.key, Data: data, Offset: h.offset})
		if err := d.decodeGlobal(h, data); err != nil {
			return err
		}
	}
}

func (d *decoder) decodeGlobal(h blockHeader, data []byte) error {
	loc := recovery.At("global layer information", h.offset)
	loc.Tag = h.key
	switch h.key {
	case "Patt", "Pat2", "Pat3":
		pats, err := pattern.ReadBlock(data)
		d.doc.Patterns = append(d.doc.Patterns, pats...)
		if err != nil {
			return d.warn(errors.Wrap(err, "embedded patterns"), loc)
		}
		d.log.Debug("embedded patterns", observability.Int("count", len(pats)))
	case "Txt2":
		dict, err := cos.Parse(data, cos.Config{
			MaxDepth: d.cfg.Limits.MaxEngineDataDepth,
			Recovery: d.cfg.Recovery,
			Logger:   d.log,
		})
		if err != nil {
			return d.warn(errors.Wrap(err, "global text engine data"), loc)
		}
		d.doc.Txt2 = textengine.ExpandKeys(dict)
	}
	return nil
}
