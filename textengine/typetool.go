// Package textengine decodes type-tool ('TySh') layer data and converts the
// embedded text engine data into SVG text markup.
package textengine

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/stream"
)

// TypeTool is the decoded 'TySh' block of a text layer.
type TypeTool struct {
	// Transform maps text space to document pixels.
	Transform  coords.Matrix
	Text       string
	TextIndex  int
	EngineData []byte
	Horizontal bool
	// Bounds of the text in points and in pixels, relative to the
	// transform origin.
	Bounds   coords.Rect
	BoundsPx coords.Rect
	// BoundingBox is the trailing rectangle stored after the warp data.
	BoundingBox coords.Rect

	Text2 *descriptor.Descriptor
	Warp  *descriptor.Descriptor

	// Mismatches lists descriptor values that had an unexpected type.
	Mismatches []string
}

// ParseTypeTool decodes a 'TySh' payload.
func ParseTypeTool(payload []byte, cfg descriptor.Config, logger observability.Logger) (*TypeTool, error) {
	logger = observability.OrNop(logger)
	r := stream.FromBytes(payload)
	version, err := r.U16()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, errors.Errorf("unsupported type tool version %d", version)
	}
	tt := &TypeTool{Horizontal: true, TextIndex: -1}
	for i := range tt.Transform {
		if tt.Transform[i], err = r.F64(); err != nil {
			return nil, errors.Wrap(err, "type tool transform")
		}
	}
	if textVersion, err := r.U16(); err != nil {
		return nil, err
	} else if textVersion != 50 {
		return nil, errors.Errorf("unsupported text version %d", textVersion)
	}
	if tt.Text2, err = descriptor.ReadVersioned(r, cfg); err != nil {
		return nil, errors.Wrap(err, "text descriptor")
	}

	c := descriptor.NewCatcher(logger)
	c.SubscribeText("/TxLr/Txt ", func(s string) { tt.Text = s })
	c.SubscribeInteger("/TxLr/TextIndex", func(i int) { tt.TextIndex = i })
	c.SubscribeRawData("/TxLr/EngineData", func(b []byte) { tt.EngineData = b })
	c.SubscribeEnum("/TxLr/Ornt", "Ornt", func(v string) { tt.Horizontal = v == "Hrzn" })
	for _, side := range []struct {
		key string
		pt  *float64
		px  *float64
	}{
		{"Left", &tt.Bounds.Left, &tt.BoundsPx.Left},
		{"Top ", &tt.Bounds.Top, &tt.BoundsPx.Top},
		{"Rght", &tt.Bounds.Right, &tt.BoundsPx.Right},
		{"Btom", &tt.Bounds.Bottom, &tt.BoundsPx.Bottom},
	} {
		pt, px := side.pt, side.px
		c.SubscribeUnitFloat("/TxLr/bounds/"+side.key, descriptor.UnitPoints, func(v float64) { *pt = v })
		c.SubscribeUnitFloat("/TxLr/bounds/"+side.key, descriptor.UnitPixels, func(v float64) { *px = v })
	}
	c.Dispatch(tt.Text2)
	tt.Mismatches = c.Mismatches()

	// The warp block is optional in files written by older producers.
	if r.Remaining() < 6 {
		return tt, nil
	}
	if _, err := r.U16(); err != nil {
		return tt, nil
	}
	if tt.Warp, err = descriptor.ReadVersioned(r, cfg); err != nil {
		logger.Debug("type tool: warp descriptor unreadable", observability.Error("error", err))
		return tt, nil
	}
	var box [4]float64
	for i := range box {
		if box[i], err = r.F64(); err != nil {
			return tt, nil
		}
	}
	tt.BoundingBox = coords.Rect{Left: box[0], Top: box[1], Right: box[2], Bottom: box[3]}
	return tt, nil
}
