// Package cos turns text engine data (a PDF-flavoured object syntax) into
// Go values. Dictionaries keep their key order.
package cos

import (
	"fmt"
	"io"
	"strconv"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/scanner"
	"github.com/wudi/psdkit/stream"
)

// Name is a bare /Name value, distinct from a string.
type Name string

// Value is one of: nil, bool, int64, float64, string, Name, []Value, *Dict.
type Value = any

// Dict is an ordered dictionary.
type Dict struct {
	m *orderedmap.OrderedMap[string, Value]
}

func NewDict() *Dict {
	return &Dict{m: orderedmap.NewOrderedMap[string, Value]()}
}

func (d *Dict) Set(key string, v Value) { d.m.Set(key, v) }

func (d *Dict) Get(key string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	return d.m.Get(key)
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return d.m.Len()
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, d.m.Len())
	for k := range d.m.AllFromFront() {
		out = append(out, k)
	}
	return out
}

// Lookup walks a path of dictionary keys and decimal array indices.
func (d *Dict) Lookup(path ...string) (Value, bool) {
	var cur Value = d
	for _, p := range path {
		switch c := cur.(type) {
		case *Dict:
			v, ok := c.Get(p)
			if !ok {
				return nil, false
			}
			cur = v
		case []Value:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func (d *Dict) Dict(path ...string) *Dict {
	v, _ := d.Lookup(path...)
	out, _ := v.(*Dict)
	return out
}

func (d *Dict) Array(path ...string) []Value {
	v, _ := d.Lookup(path...)
	out, _ := v.([]Value)
	return out
}

// Float reads a numeric value, accepting either integer or real storage.
func (d *Dict) Float(path ...string) (float64, bool) {
	v, _ := d.Lookup(path...)
	return AsFloat(v)
}

func (d *Dict) Int(path ...string) (int64, bool) {
	v, _ := d.Lookup(path...)
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (d *Dict) Bool(path ...string) (bool, bool) {
	v, _ := d.Lookup(path...)
	b, ok := v.(bool)
	return b, ok
}

// String returns string or name values as text.
func (d *Dict) String(path ...string) (string, bool) {
	v, _ := d.Lookup(path...)
	switch s := v.(type) {
	case string:
		return s, true
	case Name:
		return string(s), true
	}
	return "", false
}

// AsFloat converts a numeric value.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

type Config struct {
	MaxDepth int
	Recovery recovery.Strategy
	Logger   observability.Logger
}

var errDepth = errors.New("engine data nesting too deep")

type parser struct {
	s     scanner.Scanner
	cfg   Config
	log   observability.Logger
	depth int
	peek  *scanner.Token
}

// Parse decodes engine data. When the payload does not start with '<<' it is
// treated as the body of a dictionary whose opening bracket was omitted.
func Parse(data []byte, cfg Config) (*Dict, error) {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 128
	}
	p := &parser{
		s: scanner.NewBytes(data, scanner.Config{
			Recovery:      cfg.Recovery,
			MaxArrayDepth: cfg.MaxDepth,
			MaxDictDepth:  cfg.MaxDepth,
		}),
		cfg: cfg,
		log: observability.OrNop(cfg.Logger),
	}
	first, err := p.next()
	if err != nil {
		return nil, errors.Wrap(err, "engine data")
	}
	if first.Type == scanner.TokenDict {
		return p.parseDict(true)
	}
	p.unread(first)
	return p.parseDict(false)
}

func (p *parser) next() (scanner.Token, error) {
	if p.peek != nil {
		t := *p.peek
		p.peek = nil
		return t, nil
	}
	return p.s.Next()
}

func (p *parser) unread(t scanner.Token) { p.peek = &t }

// parseDict reads key/value pairs. A bracketed dictionary ends at '>>',
// an unbracketed one at end of input.
func (p *parser) parseDict(bracketed bool) (*Dict, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.cfg.MaxDepth {
		return nil, errDepth
	}
	d := NewDict()
	for {
		tok, err := p.next()
		if err == io.EOF {
			if bracketed {
				return d, errors.Wrap(stream.ErrTruncated, "unterminated dictionary")
			}
			return d, nil
		}
		if err != nil {
			return d, err
		}
		if tok.Type == scanner.TokenDictEnd {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return d, errors.Errorf("expected dictionary key at %d, got %s", tok.Pos, tok.Type)
		}
		v, err := p.parseValue()
		if err != nil {
			return d, errors.Wrapf(err, "key /%s", tok.Str)
		}
		d.Set(tok.Str, v)
	}
}

func (p *parser) parseArray() ([]Value, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.cfg.MaxDepth {
		return nil, errDepth
	}
	out := []Value{}
	for {
		tok, err := p.next()
		if err == io.EOF {
			return out, errors.Wrap(stream.ErrTruncated, "unterminated array")
		}
		if err != nil {
			return out, err
		}
		if tok.Type == scanner.TokenArrayEnd {
			return out, nil
		}
		p.unread(tok)
		v, err := p.parseValue()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

func (p *parser) parseValue() (Value, error) {
	tok, err := p.next()
	if err == io.EOF {
		return nil, errors.Wrap(stream.ErrTruncated, "missing value")
	}
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenDict:
		return p.parseDict(true)
	case scanner.TokenArray:
		return p.parseArray()
	case scanner.TokenName:
		return Name(tok.Str), nil
	case scanner.TokenString:
		return DecodeString(tok.Bytes), nil
	case scanner.TokenHexString:
		return fmt.Sprintf("<%X>", tok.Bytes), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return tok.Int, nil
		}
		return tok.Float, nil
	case scanner.TokenBoolean:
		return tok.Bool, nil
	case scanner.TokenNull:
		return nil, nil
	default:
		p.log.Debug("engine data: unexpected token", observability.String("token", tok.Str), observability.Int64("pos", tok.Pos))
		return nil, errors.Errorf("unexpected %s %q at %d", tok.Type, tok.Str, tok.Pos)
	}
}

// DecodeString decodes a literal string payload: UTF-16BE when it carries
// a byte-order mark, Latin-1 otherwise.
func DecodeString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return stream.DecodeUTF16BE(b)
	}
	return stream.DecodeLatin1(b)
}
