package builder

// Desc builds a descriptor payload.
type Desc struct {
	class string
	name  string
	items []descItem
}

type descItem struct {
	key string
	val Value
}

// Value is one encodable descriptor value.
type Value struct {
	typ string
	enc func(*Buffer)
}

func writeID(b *Buffer, id string) {
	if len(id) == 4 {
		b.U32(0)
		b.WriteString(id)
		return
	}
	b.U32(uint32(len(id)))
	b.WriteString(id)
}

// Object starts a descriptor of the given class id.
func Object(class string) *Desc { return &Desc{class: class} }

func (d *Desc) Named(name string) *Desc { d.name = name; return d }

func (d *Desc) Set(key string, v Value) *Desc {
	d.items = append(d.items, descItem{key: key, val: v})
	return d
}

func (d *Desc) Double(key string, v float64) *Desc { return d.Set(key, Double(v)) }
func (d *Desc) Long(key string, v int32) *Desc     { return d.Set(key, Long(v)) }
func (d *Desc) Bool(key string, v bool) *Desc      { return d.Set(key, Bool(v)) }
func (d *Desc) Text(key, v string) *Desc           { return d.Set(key, Text(v)) }
func (d *Desc) Raw(key string, v []byte) *Desc     { return d.Set(key, Raw(v)) }
func (d *Desc) Obj(key string, o *Desc) *Desc      { return d.Set(key, o.Value()) }
func (d *Desc) Enum(key, typ, v string) *Desc      { return d.Set(key, Enum(typ, v)) }
func (d *Desc) List(key string, vs ...Value) *Desc { return d.Set(key, List(vs...)) }
func (d *Desc) UnitFloat(key, unit string, v float64) *Desc {
	return d.Set(key, UnitFloat(unit, v))
}

func (d *Desc) encode(b *Buffer) {
	b.Unicode(d.name)
	writeID(b, d.class)
	b.U32(uint32(len(d.items)))
	for _, it := range d.items {
		writeID(b, it.key)
		b.Sig(it.val.typ)
		it.val.enc(b)
	}
}

// Value wraps the descriptor as an 'Objc' value.
func (d *Desc) Value() Value { return Value{typ: "Objc", enc: d.encode} }

// Bytes returns the descriptor without a version prefix.
func (d *Desc) Bytes() []byte {
	var b Buffer
	d.encode(&b)
	return b.Bytes()
}

// Versioned returns the descriptor prefixed by version 16.
func (d *Desc) Versioned() []byte {
	var b Buffer
	b.U32(16)
	d.encode(&b)
	return b.Bytes()
}

func Double(v float64) Value { return Value{"doub", func(b *Buffer) { b.F64(v) }} }
func Long(v int32) Value     { return Value{"long", func(b *Buffer) { b.I32(v) }} }
func Text(v string) Value    { return Value{"TEXT", func(b *Buffer) { b.Unicode(v) }} }

func Bool(v bool) Value {
	return Value{"bool", func(b *Buffer) {
		if v {
			b.U8(1)
		} else {
			b.U8(0)
		}
	}}
}

func Raw(v []byte) Value {
	return Value{"tdta", func(b *Buffer) { b.Block(v) }}
}

func Enum(typ, v string) Value {
	return Value{"enum", func(b *Buffer) {
		writeID(b, typ)
		writeID(b, v)
	}}
}

func UnitFloat(unit string, v float64) Value {
	return Value{"UntF", func(b *Buffer) {
		b.Sig(unit)
		b.F64(v)
	}}
}

func List(vs ...Value) Value {
	return Value{"VlLs", func(b *Buffer) {
		b.U32(uint32(len(vs)))
		for _, v := range vs {
			b.Sig(v.typ)
			v.enc(b)
		}
	}}
}

// RGB builds an 'RGBC' colour object with 0..255 components.
func RGB(r, g, bl float64) *Desc {
	return Object("RGBC").Double("Rd  ", r).Double("Grn ", g).Double("Bl  ", bl)
}

// Point builds a 'Pnt ' object.
func Point(x, y float64) *Desc {
	return Object("Pnt ").UnitFloat("Hrzn", "#Pxl", x).UnitFloat("Vrtc", "#Pxl", y)
}
