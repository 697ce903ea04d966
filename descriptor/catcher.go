package descriptor

import (
	"fmt"

	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/observability"
)

type enumSink struct {
	typeID string
	fn     func(string)
}

type unitRectSink struct {
	unit string
	fn   func(coords.Rect)
}

// Catcher is a dispatch table from descriptor paths to typed setters.
//
// Paths are built from the root class id and the item keys, joined by '/':
// "/null/Clr " is the 'Clr ' item of a root descriptor of class 'null'.
// Scalar list elements append an empty segment ("/list/"), object list
// elements append their class id ("/list/null").
type Catcher struct {
	doubles     map[string]func(float64)
	integers    map[string]func(int)
	enums       map[string]enumSink
	unitFloats  map[string]map[string]func(float64)
	texts       map[string]func(string)
	booleans    map[string]func(bool)
	colors      map[string]func(Color)
	points      map[string]func(coords.Point)
	gradients   map[string]func(Gradient)
	patternRefs map[string]func(id, name string)
	rawData     map[string]func([]byte)
	transforms  map[string]func(coords.Matrix)
	rects       map[string]func(coords.Rect)
	unitRects   map[string]unitRectSink
	newStyle    func()

	subscribed map[string]bool
	mismatches []string
	log        observability.Logger
}

func NewCatcher(logger observability.Logger) *Catcher {
	return &Catcher{
		doubles:     map[string]func(float64){},
		integers:    map[string]func(int){},
		enums:       map[string]enumSink{},
		unitFloats:  map[string]map[string]func(float64){},
		texts:       map[string]func(string){},
		booleans:    map[string]func(bool){},
		colors:      map[string]func(Color){},
		points:      map[string]func(coords.Point){},
		gradients:   map[string]func(Gradient){},
		patternRefs: map[string]func(string, string){},
		rawData:     map[string]func([]byte){},
		transforms:  map[string]func(coords.Matrix){},
		rects:       map[string]func(coords.Rect){},
		unitRects:   map[string]unitRectSink{},
		subscribed:  map[string]bool{},
		log:         observability.OrNop(logger),
	}
}

func (c *Catcher) SubscribeDouble(path string, fn func(float64)) {
	c.doubles[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeInteger(path string, fn func(int)) {
	c.integers[path] = fn
	c.subscribed[path] = true
}

// SubscribeEnum delivers enum values whose type id equals typeID.
func (c *Catcher) SubscribeEnum(path, typeID string, fn func(string)) {
	c.enums[path] = enumSink{typeID: typeID, fn: fn}
	c.subscribed[path] = true
}

// SubscribeUnitFloat delivers values recorded in unit. A path may be
// subscribed once per unit.
func (c *Catcher) SubscribeUnitFloat(path, unit string, fn func(float64)) {
	m, ok := c.unitFloats[path]
	if !ok {
		m = map[string]func(float64){}
		c.unitFloats[path] = m
	}
	m[unit] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeText(path string, fn func(string)) {
	c.texts[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeBoolean(path string, fn func(bool)) {
	c.booleans[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeColor(path string, fn func(Color)) {
	c.colors[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribePoint(path string, fn func(coords.Point)) {
	c.points[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeGradient(path string, fn func(Gradient)) {
	c.gradients[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribePatternRef(path string, fn func(id, name string)) {
	c.patternRefs[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeRawData(path string, fn func([]byte)) {
	c.rawData[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeTransform(path string, fn func(coords.Matrix)) {
	c.transforms[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeRect(path string, fn func(coords.Rect)) {
	c.rects[path] = fn
	c.subscribed[path] = true
}

func (c *Catcher) SubscribeUnitRect(path, unit string, fn func(coords.Rect)) {
	c.unitRects[path] = unitRectSink{unit: unit, fn: fn}
	c.subscribed[path] = true
}

// SubscribeNewStyle registers a callback run at the start of every Dispatch.
func (c *Catcher) SubscribeNewStyle(fn func()) { c.newStyle = fn }

// Mismatches lists subscribed paths whose recorded value had the wrong
// type, unit or enum type id. Those values were ignored.
func (c *Catcher) Mismatches() []string { return append([]string(nil), c.mismatches...) }

// Dispatch walks d and feeds every value to its subscriber.
func (c *Catcher) Dispatch(d *Descriptor) {
	if d == nil {
		return
	}
	if c.newStyle != nil {
		c.newStyle()
	}
	c.walk("/"+d.ClassID, d)
}

func (c *Catcher) walk(path string, d *Descriptor) {
	for _, it := range d.Items {
		c.value(path+"/"+it.Key, it.Value)
	}
}

func (c *Catcher) value(path string, v any) {
	switch x := v.(type) {
	case *Descriptor:
		c.object(path, x)
	case []any:
		for _, el := range x {
			if o, ok := el.(*Descriptor); ok {
				c.object(path+"/"+o.ClassID, o)
				continue
			}
			c.value(path+"/", el)
		}
	case float64:
		deliver(c, path, c.doubles, x)
	case int32:
		deliver(c, path, c.integers, int(x))
	case int64:
		deliver(c, path, c.integers, int(x))
	case string:
		deliver(c, path, c.texts, x)
	case bool:
		deliver(c, path, c.booleans, x)
	case Raw:
		deliver(c, path, c.rawData, []byte(x))
	case Enum:
		sink, ok := c.enums[path]
		if !ok {
			c.unhandled(path, "enum")
			return
		}
		if sink.typeID != x.Type {
			c.mismatch(path, fmt.Sprintf("enum type %q, want %q", x.Type, sink.typeID))
			return
		}
		sink.fn(x.Value)
	case UnitFloat:
		c.unitFloat(path, x.Unit, x.Value)
	case UnitFloats:
		for _, f := range x.Values {
			c.unitFloat(path+"/", x.Unit, f)
		}
	default:
		c.unhandled(path, fmt.Sprintf("%T", v))
	}
}

func (c *Catcher) unitFloat(path, unit string, v float64) {
	units, ok := c.unitFloats[path]
	if !ok {
		c.unhandled(path, "unit float")
		return
	}
	fn, ok := units[unit]
	if !ok {
		c.mismatch(path, "unit "+unit)
		return
	}
	fn(v)
}

func (c *Catcher) object(path string, d *Descriptor) {
	if col, ok := colorFrom(d); ok {
		deliver(c, path, c.colors, col)
		return
	}
	switch d.ClassID {
	case "Pnt ", "CrPt":
		deliver(c, path, c.points, pointFrom(d))
	case "Grdn":
		deliver(c, path, c.gradients, gradientFrom(d))
	case "Ptrn":
		fn, ok := c.patternRefs[path]
		if !ok {
			c.unhandled(path, "pattern")
			return
		}
		fn(d.Text("Idnt"), d.Text("Nm  "))
	case "Trnf":
		deliver(c, path, c.transforms, transformFrom(d))
	case "unitRect":
		r, unit := rectFrom(d)
		sink, ok := c.unitRects[path]
		if !ok {
			c.unhandled(path, "unit rect")
			return
		}
		if sink.unit != unit {
			c.mismatch(path, "unit "+unit)
			return
		}
		sink.fn(r)
	case "classFloatRect":
		r, _ := rectFrom(d)
		deliver(c, path, c.rects, r)
	default:
		c.walk(path, d)
	}
}

func deliver[T any](c *Catcher, path string, sinks map[string]func(T), v T) {
	if fn, ok := sinks[path]; ok {
		fn(v)
		return
	}
	if c.subscribed[path] {
		c.mismatch(path, fmt.Sprintf("value of type %T", v))
		return
	}
	c.unhandled(path, fmt.Sprintf("%T", v))
}

func (c *Catcher) unhandled(path, kind string) {
	if c.subscribed[path] {
		c.mismatch(path, kind)
		return
	}
	c.log.Debug("descriptor: unhandled path", observability.String("path", path), observability.String("kind", kind))
}

func (c *Catcher) mismatch(path, what string) {
	c.mismatches = append(c.mismatches, path+": "+what)
	c.log.Warn("descriptor: ignoring mismatched value", observability.String("path", path), observability.String("got", what))
}
