package parser

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/stream"
)

// adjustmentFilters maps adjustment layer keys to filter ids.
var adjustmentFilters = map[string]string{
	"brit": "brightnesscontrast",
	"levl": "levels",
	"curv": "perchannel",
	"hue2": "hsvadjustment",
	"blnc": "colorbalance",
	"nvrt": "invert",
	"post": "posterize",
	"thrs": "threshold",
	"grdm": "gradientmap",
	"selc": "selectivecolor",
	"mixr": "channelmixer",
	"phfl": "photofilter",
	"expA": "exposure",
	"vibA": "vibrance",
	"blwh": "blackwhite",
	"clrL": "colorlookup",
}

func parseAdjustment(key string, data []byte, cfg descriptor.Config) (*raw.Adjustment, error) {
	adj := &raw.Adjustment{
		Key:    key,
		Filter: adjustmentFilters[key],
		Params: orderedmap.NewOrderedMap[string, any](),
		Data:   data,
	}
	r := stream.FromBytes(data)
	p := adj.Params
	var err error
	switch key {
	case "brit":
		err = readInts(r, p, "brightness", "contrast")
	case "levl":
		err = readLevels(r, p)
	case "curv":
		err = readCurves(r, p)
	case "hue2":
		err = readHueSaturation(r, p)
	case "blnc":
		err = readColorBalance(r, p)
	case "nvrt":
	case "post":
		err = readUints(r, p, "levels")
	case "thrs":
		err = readUints(r, p, "level")
	case "grdm":
		err = readGradientMap(r, p)
	case "selc":
		err = readSelectiveColor(r, p)
	case "mixr":
		err = readChannelMixer(r, p)
	case "phfl":
		err = readPhotoFilter(r, p)
	case "expA":
		err = readExposure(r, p)
	case "vibA", "blwh":
		err = readDescriptorParams(r, p, cfg)
	case "clrL":
		if _, err = r.U16(); err == nil {
			err = readDescriptorParams(r, p, cfg)
		}
	}
	if err != nil {
		return nil, err
	}
	return adj, nil
}

type params = *orderedmap.OrderedMap[string, any]

func readInts(r *stream.Reader, p params, keys ...string) error {
	for _, k := range keys {
		v, err := r.I16()
		if err != nil {
			return err
		}
		p.Set(k, int(v))
	}
	return nil
}

func readUints(r *stream.Reader, p params, keys ...string) error {
	for _, k := range keys {
		v, err := r.U16()
		if err != nil {
			return err
		}
		p.Set(k, int(v))
	}
	return nil
}

func readVersion(r *stream.Reader, p params, accepted ...uint16) (uint16, error) {
	v, err := r.U16()
	if err != nil {
		return 0, err
	}
	for _, a := range accepted {
		if v == a {
			p.Set("version", int(v))
			return v, nil
		}
	}
	return 0, errors.Errorf("unsupported version %d", v)
}

// readLevels decodes the composite record; the per-channel records that
// follow stay in the raw payload.
func readLevels(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 2); err != nil {
		return err
	}
	if err := readUints(r, p, "inputBlack", "inputWhite", "outputBlack", "outputWhite"); err != nil {
		return err
	}
	g, err := r.U16()
	if err != nil {
		return err
	}
	p.Set("gamma", float64(g)/100)
	return nil
}

func readCurves(r *stream.Reader, p params) error {
	if err := r.Skip(1); err != nil {
		return err
	}
	if _, err := readVersion(r, p, 1, 4); err != nil {
		return err
	}
	mask, err := r.U32()
	if err != nil {
		return err
	}
	var channels []int
	for bit := 0; bit < 32; bit++ {
		if mask&(1<<bit) != 0 {
			channels = append(channels, bit)
		}
	}
	p.Set("channels", channels)
	return nil
}

func readHueSaturation(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 2); err != nil {
		return err
	}
	colorize, err := r.U8()
	if err != nil {
		return err
	}
	if err := r.Skip(1); err != nil {
		return err
	}
	p.Set("colorize", colorize != 0)
	if colorize != 0 {
		return readInts(r, p, "hue", "saturation", "lightness")
	}
	if err := r.Skip(6); err != nil {
		return err
	}
	return readInts(r, p, "hue", "saturation", "lightness")
}

func readColorBalance(r *stream.Reader, p params) error {
	for _, rng := range []string{"shadows", "midtones", "highlights"} {
		var v [3]int
		for i := range v {
			n, err := r.I16()
			if err != nil {
				return err
			}
			v[i] = int(n)
		}
		p.Set(rng, v)
	}
	pl, err := r.U8()
	if err != nil {
		return err
	}
	p.Set("preserveLuminosity", pl != 0)
	return nil
}

func readGradientMap(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 1); err != nil {
		return err
	}
	reverse, err := r.U8()
	if err != nil {
		return err
	}
	dither, err := r.U8()
	if err != nil {
		return err
	}
	p.Set("reverse", reverse != 0)
	p.Set("dither", dither != 0)
	name, err := r.UnicodeString()
	if err != nil {
		return err
	}
	p.Set("gradient", name)
	return nil
}

func readSelectiveColor(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 1); err != nil {
		return err
	}
	method, err := r.U16()
	if err != nil {
		return err
	}
	p.Set("absolute", method == 1)
	return nil
}

func readChannelMixer(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 1); err != nil {
		return err
	}
	mono, err := r.U16()
	if err != nil {
		return err
	}
	p.Set("monochrome", mono != 0)
	return nil
}

func readPhotoFilter(r *stream.Reader, p params) error {
	v, err := readVersion(r, p, 2, 3)
	if err != nil {
		return err
	}
	if v == 3 {
		if err := r.Skip(12); err != nil { // XYZ colour
			return err
		}
	} else {
		if err := r.Skip(10); err != nil { // colour space and components
			return err
		}
	}
	density, err := r.U32()
	if err != nil {
		return err
	}
	pl, err := r.U8()
	if err != nil {
		return err
	}
	p.Set("density", int(density))
	p.Set("preserveLuminosity", pl != 0)
	return nil
}

func readExposure(r *stream.Reader, p params) error {
	if _, err := readVersion(r, p, 1); err != nil {
		return err
	}
	for _, k := range []string{"exposure", "offset", "gamma"} {
		v, err := r.F32()
		if err != nil {
			return err
		}
		p.Set(k, float64(v))
	}
	return nil
}

// readDescriptorParams copies the scalar top-level items of a versioned
// descriptor.
func readDescriptorParams(r *stream.Reader, p params, cfg descriptor.Config) error {
	d, err := descriptor.ReadVersioned(r, cfg)
	if err != nil {
		return err
	}
	for _, it := range d.Items {
		switch v := it.Value.(type) {
		case float64, string, bool:
			p.Set(it.Key, v)
		case int32:
			p.Set(it.Key, int(v))
		case descriptor.UnitFloat:
			p.Set(it.Key, v.Value)
		case descriptor.Enum:
			p.Set(it.Key, v.Value)
		}
	}
	return nil
}

// parsePlaced decodes a placed layer block.
func parsePlaced(key string, r *stream.Reader, cfg descriptor.Config) (*raw.Placed, error) {
	p := &raw.Placed{Key: key}
	typ, err := r.Signature()
	if err != nil {
		return nil, err
	}
	if key == "PlLd" {
		if typ != "plcL" {
			return nil, errors.Errorf("bad placed layer type %q", typ)
		}
		version, err := r.U32()
		if err != nil {
			return nil, err
		}
		if version != 3 {
			return nil, errors.Errorf("unsupported placed layer version %d", version)
		}
		if p.ID, err = r.PascalString(1); err != nil {
			return nil, err
		}
		if err := r.Skip(12); err != nil { // page, total pages, anti-alias
			return nil, err
		}
		if p.Kind, err = r.U32(); err != nil {
			return nil, err
		}
		for i := range p.Corners {
			if p.Corners[i], err = r.F64(); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	if typ != "soLD" {
		return nil, errors.Errorf("bad smart object type %q", typ)
	}
	version, err := r.U32()
	if err != nil {
		return nil, err
	}
	if version != 4 && version != 5 {
		return nil, errors.Errorf("unsupported smart object version %d", version)
	}
	d, err := descriptor.ReadVersioned(r, cfg)
	if err != nil {
		return nil, err
	}
	p.ID = d.Text("Idnt")
	if p.ID == "" {
		p.ID = d.Text("placed")
	}
	if v, ok := d.Float("Type"); ok {
		p.Kind = uint32(v)
	}
	for i, v := range d.List("Trnf") {
		if i >= len(p.Corners) {
			break
		}
		if f, ok := v.(float64); ok {
			p.Corners[i] = f
		}
	}
	return p, nil
}
