// Package descriptor parses the binary attribute-tree format used by fill
// layers, strokes, text, shape origination and layer styles, and routes its
// values to typed subscribers by path.
package descriptor

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/security"
	"github.com/wudi/psdkit/stream"
)

// Descriptor is one node of the attribute tree.
type Descriptor struct {
	Name    string
	ClassID string
	Items   []Item
}

type Item struct {
	Key   string
	Type  string // OSType such as "doub" or "Objc"
	Value any
}

// Get returns the first item stored under key.
func (d *Descriptor) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	for _, it := range d.Items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return nil, false
}

// Float returns a doub, UntF, long or comp value as float64.
func (d *Descriptor) Float(key string) (float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case UnitFloat:
		return n.Value, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (d *Descriptor) Text(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(string)
	return s
}

func (d *Descriptor) Object(key string) *Descriptor {
	v, _ := d.Get(key)
	o, _ := v.(*Descriptor)
	return o
}

func (d *Descriptor) List(key string) []any {
	v, _ := d.Get(key)
	l, _ := v.([]any)
	return l
}

// UnitFloat is a 'UntF' value; Unit is one of the #Xxx codes.
type UnitFloat struct {
	Unit  string
	Value float64
}

// UnitFloats is a 'UnFl' value.
type UnitFloats struct {
	Unit   string
	Values []float64
}

type Enum struct {
	Type  string
	Value string
}

// Class is a 'type' or 'GlbC' value.
type Class struct {
	Name string
	ID   string
}

// Raw carries 'tdta', 'alis' and 'Pth ' payloads verbatim.
type Raw []byte

// RefItem is one entry of an 'obj ' reference.
type RefItem struct {
	Type    string
	Name    string
	ClassID string
	Key     string
	Value   string
	Offset  int64
}

// Unit codes.
const (
	UnitAngle      = "#Ang"
	UnitDensity    = "#Rsl"
	UnitDistance   = "#Rlt"
	UnitNone       = "#Nne"
	UnitPercent    = "#Prc"
	UnitPixels     = "#Pxl"
	UnitMillimeter = "#Mlm"
	UnitPoints     = "#Pnt"
)

type Config struct {
	MaxDepth int
	MaxItems int
}

func (c Config) orDefault() Config {
	d := security.DefaultLimits()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDescriptorDepth
	}
	if c.MaxItems <= 0 {
		c.MaxItems = d.MaxDescriptorItems
	}
	return c
}

var ErrLimit = errors.New("descriptor exceeds limits")

type reader struct {
	r     *stream.Reader
	cfg   Config
	items int
}

// Read parses a descriptor at the current position of r.
func Read(r *stream.Reader, cfg Config) (*Descriptor, error) {
	rd := &reader{r: r, cfg: cfg.orDefault()}
	return rd.descriptor(0)
}

// ReadVersioned parses a descriptor preceded by its 4-byte version, which
// must be 16.
func ReadVersioned(r *stream.Reader, cfg Config) (*Descriptor, error) {
	v, err := r.U32()
	if err != nil {
		return nil, err
	}
	if v != 16 {
		return nil, errors.Errorf("unsupported descriptor version %d", v)
	}
	return Read(r, cfg)
}

// Parse parses a versioned descriptor from a byte slice.
func Parse(b []byte, cfg Config) (*Descriptor, error) {
	return ReadVersioned(stream.FromBytes(b), cfg)
}

// id reads a class or key identifier: a length, or zero followed by a
// 4-character code.
func (rd *reader) id() (string, error) {
	n, err := rd.r.U32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return rd.r.Signature()
	}
	if int64(n) > rd.r.Remaining() {
		return "", errors.Wrapf(stream.ErrTruncated, "identifier length %d", n)
	}
	b, err := rd.r.Bytes(int64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (rd *reader) count() (int, error) {
	n, err := rd.r.U32()
	if err != nil {
		return 0, err
	}
	if int64(n) > rd.r.Remaining() {
		return 0, errors.Wrapf(stream.ErrTruncated, "%d items at offset %d", n, rd.r.Position())
	}
	rd.items += int(n)
	if rd.items > rd.cfg.MaxItems {
		return 0, errors.Wrapf(ErrLimit, "%d items in total", rd.items)
	}
	return int(n), nil
}

func (rd *reader) descriptor(depth int) (*Descriptor, error) {
	if depth > rd.cfg.MaxDepth {
		return nil, errors.Wrapf(ErrLimit, "nesting depth %d", depth)
	}
	name, err := rd.r.UnicodeString()
	if err != nil {
		return nil, err
	}
	class, err := rd.id()
	if err != nil {
		return nil, err
	}
	n, err := rd.count()
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Name: name, ClassID: class, Items: make([]Item, 0, n)}
	for i := 0; i < n; i++ {
		key, err := rd.id()
		if err != nil {
			return d, err
		}
		typ, err := rd.r.Signature()
		if err != nil {
			return d, err
		}
		v, err := rd.value(typ, depth)
		if err != nil {
			return d, errors.Wrapf(err, "item %q", key)
		}
		d.Items = append(d.Items, Item{Key: key, Type: typ, Value: v})
	}
	return d, nil
}

func (rd *reader) value(typ string, depth int) (any, error) {
	r := rd.r
	switch typ {
	case "Objc", "GlbO":
		return rd.descriptor(depth + 1)
	case "VlLs":
		n, err := rd.count()
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, n)
		for i := 0; i < n; i++ {
			t, err := r.Signature()
			if err != nil {
				return list, err
			}
			v, err := rd.value(t, depth+1)
			if err != nil {
				return list, err
			}
			list = append(list, v)
		}
		return list, nil
	case "doub":
		return r.F64()
	case "UntF":
		unit, err := r.Signature()
		if err != nil {
			return nil, err
		}
		f, err := r.F64()
		return UnitFloat{Unit: unit, Value: f}, err
	case "UnFl":
		unit, err := r.Signature()
		if err != nil {
			return nil, err
		}
		n, err := rd.count()
		if err != nil {
			return nil, err
		}
		out := UnitFloats{Unit: unit, Values: make([]float64, n)}
		for i := range out.Values {
			if out.Values[i], err = r.F64(); err != nil {
				return out, err
			}
		}
		return out, nil
	case "TEXT":
		return r.UnicodeString()
	case "enum":
		t, err := rd.id()
		if err != nil {
			return nil, err
		}
		v, err := rd.id()
		return Enum{Type: t, Value: v}, err
	case "long":
		return r.I32()
	case "comp":
		return r.I64()
	case "bool":
		b, err := r.U8()
		return b != 0, err
	case "type", "GlbC":
		name, err := r.UnicodeString()
		if err != nil {
			return nil, err
		}
		id, err := rd.id()
		return Class{Name: name, ID: id}, err
	case "alis", "tdta", "Pth ":
		n, err := r.U32()
		if err != nil {
			return nil, err
		}
		b, err := r.Bytes(int64(n))
		return Raw(b), err
	case "obj ":
		return rd.reference()
	default:
		return nil, errors.Errorf("unknown descriptor item type %q at offset %d", typ, r.Position())
	}
}

func (rd *reader) reference() ([]RefItem, error) {
	r := rd.r
	n, err := rd.count()
	if err != nil {
		return nil, err
	}
	out := make([]RefItem, 0, n)
	for i := 0; i < n; i++ {
		typ, err := r.Signature()
		if err != nil {
			return out, err
		}
		item := RefItem{Type: typ}
		switch typ {
		case "prop", "Clss", "Enmr", "rele", "name":
			if item.Name, err = r.UnicodeString(); err != nil {
				return out, err
			}
			if item.ClassID, err = rd.id(); err != nil {
				return out, err
			}
			switch typ {
			case "prop":
				item.Key, err = rd.id()
			case "Enmr":
				if item.Key, err = rd.id(); err == nil {
					item.Value, err = rd.id()
				}
			case "rele":
				var off uint32
				off, err = r.U32()
				item.Offset = int64(off)
			case "name":
				item.Value, err = r.UnicodeString()
			}
		case "Idnt", "indx":
			var v uint32
			v, err = r.U32()
			item.Offset = int64(v)
		default:
			return out, errors.Errorf("unknown reference type %q", typ)
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
