// Package pattern decodes the embedded pattern table of a document's global
// layer information ('Patt', 'Pat2', 'Pat3') and resolves pattern references
// made by fill layers and layer styles.
package pattern

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/stream"
)

// Pattern is one embedded pattern. The pixel data is kept as recorded (the
// virtual memory array list) for a later rasterisation step.
type Pattern struct {
	ID      string
	Name    string
	Mode    compat.ColorMode
	Width   int
	Height  int
	Palette []byte // 256 RGB triples for indexed patterns
	Data    []byte
}

// ReadBlock decodes every pattern in a 'Patt', 'Pat2' or 'Pat3' payload.
func ReadBlock(payload []byte) ([]*Pattern, error) {
	r := stream.FromBytes(payload)
	var out []*Pattern
	for r.Remaining() >= 4 {
		n, err := r.U32()
		if err != nil {
			return out, err
		}
		if n == 0 {
			continue
		}
		sec, err := r.Section(int64(n))
		if err != nil {
			return out, errors.Wrapf(err, "pattern %d", len(out))
		}
		p, err := readPattern(sec)
		if err != nil {
			return out, errors.Wrapf(err, "pattern %d", len(out))
		}
		out = append(out, p)
		if err := r.Align(0, 4); err != nil {
			break
		}
	}
	return out, nil
}

func readPattern(r *stream.Reader) (*Pattern, error) {
	version, err := r.U32()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, errors.Errorf("unsupported pattern version %d", version)
	}
	mode, err := r.U32()
	if err != nil {
		return nil, err
	}
	h, err := r.U16()
	if err != nil {
		return nil, err
	}
	w, err := r.U16()
	if err != nil {
		return nil, err
	}
	p := &Pattern{Mode: compat.ColorMode(mode), Width: int(w), Height: int(h)}
	if p.Name, err = r.UnicodeString(); err != nil {
		return nil, err
	}
	if p.ID, err = r.PascalString(1); err != nil {
		return nil, err
	}
	if p.Mode == compat.ColorModeIndexed {
		if p.Palette, err = r.Bytes(768); err != nil {
			return nil, err
		}
	}
	if p.Data, err = r.Bytes(r.Remaining()); err != nil {
		return nil, err
	}
	return p, nil
}

// Registry indexes patterns by id in the order they were added.
type Registry struct {
	byID *orderedmap.OrderedMap[string, *Pattern]
}

func NewRegistry() *Registry {
	return &Registry{byID: orderedmap.NewOrderedMap[string, *Pattern]()}
}

// Add registers p. A later pattern with the same id replaces the earlier one.
func (r *Registry) Add(p *Pattern) { r.byID.Set(p.ID, p) }

func (r *Registry) Len() int { return r.byID.Len() }

// Resolve finds a pattern by id, falling back to a name match.
func (r *Registry) Resolve(id, name string) (*Pattern, bool) {
	if p, ok := r.byID.Get(id); ok {
		return p, true
	}
	if name == "" {
		return nil, false
	}
	for _, p := range r.byID.AllFromFront() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// All returns the patterns in registration order.
func (r *Registry) All() []*Pattern {
	out := make([]*Pattern, 0, r.byID.Len())
	for _, p := range r.byID.AllFromFront() {
		out = append(out, p)
	}
	return out
}
