package parser

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/stream"
)

var resourceSignatures = map[string]bool{
	"8BIM": true,
	"MeSa": true,
	"AgHg": true,
	"PHUT": true,
	"DCSR": true,
}

func (d *decoder) readResources(s *stream.Reader) error {
	n, err := s.U32()
	if err != nil {
		return err
	}
	sec, err := s.Section(int64(n))
	if err != nil {
		return err
	}
	for sec.Remaining() >= 12 {
		off := sec.Position()
		sig, err := sec.Signature()
		if err != nil {
			return err
		}
		if !resourceSignatures[sig] {
			return d.warn(errors.Errorf("invalid resource signature %q, skipping the rest of the section", sig),
				recovery.At("image resources", off))
		}
		id, err := sec.U16()
		if err != nil {
			return err
		}
		name, err := sec.PascalString(2)
		if err != nil {
			return err
		}
		size, err := sec.U32()
		if err != nil {
			return err
		}
		if int64(size) > d.cfg.Limits.MaxBlockSize {
			return d.invalid("resource %d of %d bytes exceeds limit", id, size)
		}
		data, err := sec.Bytes(int64(size))
		if err != nil {
			return err
		}
		if size%2 != 0 && sec.Remaining() > 0 {
			if err := sec.Skip(1); err != nil {
				return err
			}
		}

		e := &raw.ResourceEntry{ID: id, Name: name, Data: data, Offset: off}
		v, err := decodeResource(id, data)
		if err != nil {
			// The entry stays opaque.
			if ferr := d.warn(errors.Wrapf(err, "resource %d", id), recovery.At("image resources", off)); ferr != nil {
				return ferr
			}
		} else {
			e.Value = v
		}
		if d.doc.Resources.Add(e) {
			d.log.Debug("duplicate resource replaced", observability.Int("id", int(id)))
		}
	}
	return nil
}

// decodeResource returns the typed value of the identifiers the decoder
// understands, or nil for opaque ones.
func decodeResource(id uint16, data []byte) (any, error) {
	r := stream.FromBytes(data)
	switch id {
	case raw.ResourceResolution:
		var res raw.Resolution
		var err error
		if res.HRes, err = r.Fixed16(); err != nil {
			return nil, err
		}
		if res.HResUnit, err = r.U16(); err != nil {
			return nil, err
		}
		if res.WidthUnit, err = r.U16(); err != nil {
			return nil, err
		}
		if res.VRes, err = r.Fixed16(); err != nil {
			return nil, err
		}
		if res.VResUnit, err = r.U16(); err != nil {
			return nil, err
		}
		if res.HeightUnit, err = r.U16(); err != nil {
			return nil, err
		}
		return &res, nil
	case raw.ResourceICCProfile:
		if len(data) == 0 {
			return nil, errors.New("empty ICC profile")
		}
		return append([]byte(nil), data...), nil
	case raw.ResourceGridGuides:
		return decodeGuides(r)
	case raw.ResourceLayerState:
		return r.U16()
	case raw.ResourceLayerGroups:
		var ids []uint16
		for r.Remaining() >= 2 {
			v, _ := r.U16()
			ids = append(ids, v)
		}
		return ids, nil
	case raw.ResourceGlobalAngle, raw.ResourceGlobalAltitude:
		return r.I32()
	case raw.ResourceXMP:
		return string(data), nil
	}
	return nil, nil
}

func decodeGuides(r *stream.Reader) (*raw.GridGuides, error) {
	version, err := r.U32()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, errors.Errorf("unsupported grid and guides version %d", version)
	}
	g := &raw.GridGuides{}
	if g.HorizontalCycle, err = r.U32(); err != nil {
		return nil, err
	}
	if g.VerticalCycle, err = r.U32(); err != nil {
		return nil, err
	}
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if int64(n)*5 > r.Remaining() {
		return nil, errors.Wrapf(stream.ErrTruncated, "%d guides", n)
	}
	for i := uint32(0); i < n; i++ {
		loc, err := r.I32()
		if err != nil {
			return nil, err
		}
		dir, err := r.U8()
		if err != nil {
			return nil, err
		}
		// Locations are stored in 1/32 pixel; direction 0 is a vertical guide.
		g.Guides = append(g.Guides, raw.Guide{Location: float64(loc) / 32, Vertical: dir == 0})
	}
	return g, nil
}
