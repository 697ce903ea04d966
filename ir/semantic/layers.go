package semantic

import (
	"fmt"
	"image"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/ir/decoded"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/textengine"
	"github.com/wudi/psdkit/vector"
)

// layerNode resolves the variant of a plain record. Fill records become
// shapes when they carry a vector mask and generators otherwise; text
// becomes a shape only when convertText is set and conversion succeeds.
func (b *build) layerNode(index int, l *decoded.Layer, convertText bool) (*Node, error) {
	rec := l.Record
	n := &Node{
		Name:        rec.DisplayName(),
		LayerID:     rec.LayerID,
		Position:    rec.Rect.Min,
		Opacity:     rec.Opacity,
		FillOpacity: rec.FillOpacity,
		Visible:     rec.Visible(),
		Clipped:     rec.Clipping,
		ColorLabel:  rec.ColorLabel,
		Locks:       rec.Locks,
	}
	if !rec.Has("iOpa") {
		n.FillOpacity = 255
	}
	op, err := b.blendMode(index, rec.BlendKey)
	if err != nil {
		return nil, err
	}
	n.Blend = op

	switch {
	case rec.Fill != nil && rec.VectorMask != nil:
		n.Kind = KindShape
		n.Shape = b.shape(rec)
	case rec.Fill != nil:
		n.Kind = KindGenerator
		name, params := rec.Fill.Generator()
		n.Generator = &Generator{Name: name, Params: params, Fill: rec.Fill}
	case rec.Text != nil && convertText:
		text, err := b.text(index, rec)
		if err != nil {
			return nil, err
		}
		if text == nil {
			n.Kind = KindPaint
			n.Pixels = b.doc.LayerPixels(l)
			break
		}
		n.Kind = KindShape
		n.Text = text
	case rec.Placed != nil:
		n.Kind = KindFile
		p := rec.Placed
		n.File = &File{Key: p.Key, ID: p.ID, Kind: p.Kind, Corners: p.Corners}
		n.Pixels = b.doc.LayerPixels(l)
	case rec.Adjustment != nil:
		n.Kind = KindAdjustment
		a := rec.Adjustment
		n.Adjustment = &Adjustment{Filter: a.Filter, Params: a.Params, Data: a.Data}
	default:
		n.Kind = KindPaint
		n.Pixels = b.doc.LayerPixels(l)
	}
	if err := b.applyStyle(n, index, rec); err != nil {
		return nil, err
	}
	return n, nil
}

// shape builds the vector content of a fill layer with a vector mask. Live
// shapes stay parametric when their origination data allows it.
func (b *build) shape(rec *raw.LayerRecord) *Shape {
	s := &Shape{Fill: rec.Fill, Stroke: rec.Stroke}
	if rec.Origination != nil {
		if p, ok := vector.NewParametric(rec.Origination); ok {
			s.Parametric = p
		}
	}
	if s.Parametric == nil {
		s.Path = b.physicalPath(rec.VectorMask)
	}
	if rec.Stroke != nil && !rec.Stroke.FillEnabled {
		s.Fill = nil
	}
	return s
}

// physicalPath maps a document-relative path onto the document's size in
// points, so it covers the same area whatever the resolution.
func (b *build) physicalPath(m *vector.Mask) *vector.Path {
	w := compat.ToPoints(float64(b.img.Width), b.img.XRes)
	h := compat.ToPoints(float64(b.img.Height), b.img.YRes)
	p := m.Path.Scale(w, h)
	return &p
}

// text converts a type tool layer. A nil result without error means the
// layer falls back to its pixels.
func (b *build) text(index int, rec *raw.LayerRecord) (*Text, error) {
	res, err := textengine.Convert(rec.Text, textengine.Options{
		Fonts:      b.cfg.Fonts,
		Resolution: b.img.XRes,
		Global:     b.doc.Raw.Txt2,
		Engine:     cos.Config{MaxDepth: b.cfg.Limits.MaxEngineDataDepth},
	})
	loc := recovery.AtLayer("text", index, "TySh")
	if err != nil {
		err = errors.Wrapf(err, "text layer %q loaded as pixels", rec.DisplayName())
		return nil, b.warn(err, loc)
	}
	if len(res.Errors) > 0 {
		err := fmt.Errorf("text layer %q: %v", rec.DisplayName(), res.Errors)
		if ferr := b.warn(err, loc); ferr != nil {
			return nil, ferr
		}
	}
	if len(res.Warnings) > 0 {
		b.cfg.Logger.Debug("text conversion warnings", observability.Int("layer", index), observability.Int("count", len(res.Warnings)))
	}
	return &Text{
		Text:      res.Text,
		Markup:    res.Markup,
		Defs:      res.Defs,
		Transform: res.Transform(rec.Text.Transform, b.img.XRes),
		Warnings:  res.Warnings,
		Errors:    res.Errors,
	}, nil
}

// attachMasks turns the mask channels of a record into masks of node id.
// Generators take the mask as their internal selection; shapes whose vector
// mask already carries the outline take none.
func (b *build) attachMasks(index int, l *decoded.Layer, id NodeID) error {
	rec := l.Record
	owner := b.img.Node(id)
	hasVector := rec.VectorMask != nil && !rec.VectorMask.Path.Empty()
	rendered := false
	for _, p := range l.Planes {
		if p == nil || p.ID >= -1 {
			continue
		}
		rendered = rendered || p.ID == -2
		sel := b.selection(l, p.ID, hasVector)
		switch {
		case owner.Kind == KindGenerator:
			owner.Selection = sel
		case owner.Kind == KindShape && hasVector:
		default:
			mask := &Node{Kind: KindTransparencyMask, Name: "Transparency Mask", Opacity: 255, Visible: true, Selection: sel}
			if sel.Pixels != nil {
				mask.Position = sel.Pixels.Rect.Min
			}
			if _, err := b.img.AttachMask(id, mask); err != nil {
				return errors.Wrapf(err, "layer %d", index)
			}
		}
	}
	if hasVector && !rendered && owner.Kind != KindShape {
		mask := &Node{Kind: KindTransparencyMask, Name: "Vector Mask", Opacity: 255, Visible: true,
			Selection: &Selection{Pixels: b.vectorCoverage(rec.VectorMask), Vector: b.physicalPath(rec.VectorMask)}}
		if _, err := b.img.AttachMask(id, mask); err != nil {
			return errors.Wrapf(err, "layer %d", index)
		}
	}
	return nil
}

func (b *build) selection(l *decoded.Layer, channel int16, hasVector bool) *Selection {
	sel := &Selection{Pixels: l.Mask(channel)}
	m := l.Record.Mask
	if channel == -3 && m != nil && m.Real != nil {
		m = m.Real
	}
	if m != nil {
		sel.Default = m.DefaultColor
		sel.Disabled = m.Disabled()
	}
	if hasVector {
		sel.Vector = b.physicalPath(l.Record.VectorMask)
		// Channel -2 holds the rendered vector mask; render it ourselves
		// when its pixels did not decode.
		if p := l.Plane(channel); channel == -2 && (sel.Pixels == nil || p.Defaulted || p.Data == nil) {
			sel.Pixels = b.vectorCoverage(l.Record.VectorMask)
			sel.Default = 0
		}
	}
	return sel
}

// vectorCoverage rasterises m over the whole image.
func (b *build) vectorCoverage(m *vector.Mask) *image.Gray {
	a := m.Coverage(b.img.Width, b.img.Height)
	return &image.Gray{Pix: a.Pix, Stride: a.Stride, Rect: a.Rect}
}
