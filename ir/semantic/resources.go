package semantic

import (
	"strconv"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
)

// DuotoneAnnotation holds the colour mode data of duotone documents.
const DuotoneAnnotation = "DuotoneColormodeBlock"

// ResourceAnnotation returns the annotation type of image resource id.
func ResourceAnnotation(id uint16) string { return "PSD Resource Block: " + strconv.Itoa(int(id)) }

// applyResources sets resolution and guides and keeps every other resource
// as an annotation. The ICC profile and the resolution are consumed.
func (b *build) applyResources() {
	img, rawDoc := b.img, b.doc.Raw

	if rawDoc.Header.Mode == compat.ColorModeDuotone {
		img.Annotations = append(img.Annotations, Annotation{
			Type:        DuotoneAnnotation,
			Description: "Duotone Colormode Block",
			Data:        rawDoc.ColorModeData,
		})
	}
	if rawDoc.Resources == nil {
		return
	}

	consumed := map[uint16]bool{}
	if e, ok := rawDoc.Resources.Get(raw.ResourceResolution); ok {
		if res, ok := e.Value.(*raw.Resolution); ok {
			if res.HRes*res.VRes > 0 {
				img.XRes, img.YRes = res.HRes, res.VRes
			}
			consumed[e.ID] = true
		}
	}
	if e, ok := rawDoc.Resources.Get(raw.ResourceICCProfile); ok && e.Value != nil {
		consumed[e.ID] = true
	}
	if e, ok := rawDoc.Resources.Get(raw.ResourceGridGuides); ok {
		if g, ok := e.Value.(*raw.GridGuides); ok {
			for _, gd := range g.Guides {
				ppi := img.YRes
				if gd.Vertical {
					ppi = img.XRes
				}
				img.Guides = append(img.Guides, Guide{Position: compat.ToPoints(gd.Location, ppi), Vertical: gd.Vertical})
			}
		}
	}

	for _, e := range rawDoc.Resources.All() {
		if consumed[e.ID] {
			continue
		}
		img.Annotations = append(img.Annotations, Annotation{
			Type:        ResourceAnnotation(e.ID),
			Description: e.Name,
			Data:        e.Data,
		})
	}
	b.cfg.Logger.Debug("resources applied",
		observability.Float64("xres", img.XRes),
		observability.Int("guides", len(img.Guides)),
		observability.Int("annotations", len(img.Annotations)))
}

// registerPatterns makes the embedded patterns available to fills and
// layer styles.
func (b *build) registerPatterns() {
	for _, p := range b.doc.Raw.Patterns {
		b.img.Patterns.Add(p)
	}
}
