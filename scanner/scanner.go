// Package scanner tokenizes the PDF-style object syntax used by text engine
// data: dictionaries, arrays, names, literal and hex strings, numbers,
// booleans and null.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/wudi/psdkit/recovery"
)

type TokenType int

const (
	TokenDict      TokenType = iota // '<<'
	TokenDictEnd                    // '>>'
	TokenArray                      // '['
	TokenArrayEnd                   // ']'
	TokenName                       // '/Name'
	TokenString                     // literal string
	TokenHexString                  // '<...>'
	TokenNumber                     // numeric value
	TokenBoolean                    // true/false
	TokenNull                       // null
	TokenKeyword                    // any other bare word
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "<<"
	case TokenDictEnd:
		return ">>"
	case TokenArray:
		return "["
	case TokenArrayEnd:
		return "]"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenHexString:
		return "hexstring"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	default:
		return "keyword"
	}
}

type Token struct {
	Type  TokenType
	Str   string // names and keywords
	Bytes []byte // string payloads
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Pos   int64
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
}

type Config struct {
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	WindowSize      int64
	Recovery        recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// cosScanner incrementally buffers data from a ReaderAt in fixed-size windows.
type cosScanner struct {
	reader     ReaderAt
	data       []byte
	pos        int64
	cfg        Config
	chunkSize  int64
	eof        bool
	arrayDepth int
	dictDepth  int
	recLoc     recovery.Location
}

// New returns a scanner reading from r.
func New(r ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &cosScanner{reader: r, cfg: cfg, chunkSize: chunk, recLoc: recovery.At("scanner", 0)}
}

// NewBytes returns a scanner over an in-memory buffer.
func NewBytes(b []byte, cfg Config) Scanner {
	return New(bytes.NewReader(b), cfg)
}

func (s *cosScanner) Position() int64                           { return s.pos }
func (s *cosScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *cosScanner) Next() (Token, error) {
	if err := s.skipWS(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenDictEnd, Pos: start})
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenArrayEnd, Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

// skipWS advances to the next significant byte, returning io.EOF at the end.
func (s *cosScanner) skipWS() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		if !isWhitespace(s.data[s.pos]) {
			return nil
		}
		s.pos++
	}
}

func (s *cosScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *cosScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	off := int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || n == 0 {
		s.eof = true
		return nil
	}
	return err
}

func (s *cosScanner) at(i int64) (byte, bool) {
	if err := s.ensure(i); err != nil {
		return 0, false
	}
	return s.data[i], true
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (s *cosScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) || c < 0x21 || c > 0x7e {
			break
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *cosScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		if c == '\\' {
			s.pos++
			esc, ok := s.at(s.pos)
			if !ok {
				break
			}
			if esc >= '0' && esc <= '7' {
				val := 0
				for k := 0; k < 3; k++ {
					d, ok := s.at(s.pos)
					if !ok || d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
				continue
			}
			buf.WriteByte(translateEscape(esc))
			s.pos++
			continue
		}
		// Unescaped parentheses inside UTF-16 payloads are balanced by the encoder.
		if c == '(' {
			depth++
		}
		if c == ')' {
			depth--
			if depth == 0 {
				s.pos++
				break
			}
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, s.recover(errors.New("literal string too long"), "literal")
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
}

func (s *cosScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		hexbuf = append(hexbuf, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	// If odd number of nibbles, pad with 0
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return Token{Type: TokenHexString, Bytes: out, Pos: start}, nil
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *cosScanner) peekAhead(n int64) byte {
	c, _ := s.at(s.pos + n)
	return c
}

func (s *cosScanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		buf.WriteByte(c)
		s.pos++
	}
	if buf.Len() == 0 {
		// Lone delimiter such as '}' or ')'.
		c, _ := s.at(s.pos)
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *cosScanner) scanNumber() (Token, error) {
	start := s.pos
	str := s.scanNumberString()
	if str == "" {
		return s.scanKeyword()
	}
	if i, err := strconv.ParseInt(str, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Str: str, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		if rerr := s.recover(errors.New("invalid number "+strconv.Quote(str)), "number"); rerr != nil {
			return Token{}, rerr
		}
	}
	return Token{Type: TokenNumber, Float: f, Str: str, Pos: start}, nil
}

func (s *cosScanner) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			buf.WriteByte(c)
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

func (s *cosScanner) recover(err error, loc string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	switch s.cfg.Recovery.OnError(nil, err, location) {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

func (s *cosScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, errors.New("array depth exceeded")
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, errors.New("dict depth exceeded")
		}
	case TokenArrayEnd:
		if s.arrayDepth == 0 {
			if err := s.recover(errors.New("array depth underflow"), "array"); err != nil {
				return Token{}, err
			}
			break
		}
		s.arrayDepth--
	case TokenDictEnd:
		if s.dictDepth == 0 {
			if err := s.recover(errors.New("dict depth underflow"), "dict"); err != nil {
				return Token{}, err
			}
			break
		}
		s.dictDepth--
	}
	return tok, nil
}
