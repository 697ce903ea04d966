package scanner

import (
	"testing"

	"github.com/wudi/psdkit/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return NewBytes([]byte(data), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "<< /Name /Value /Nums [1 -2 .5] /Flag true /Null null >>", Config{})

	if tok := nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Value name, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected 1, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || !tok.IsInt || tok.Int != -2 {
		t.Fatalf("expected -2, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenNumber || tok.IsInt || tok.Float != 0.5 {
		t.Fatalf("expected .5, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenArrayEnd {
		t.Fatalf("expected array end, got %+v", tok)
	}
	nextToken(t, s) // /Flag
	if tok := nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true, got %+v", tok)
	}
	nextToken(t, s) // /Null
	if tok := nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Type != TokenDictEnd {
		t.Fatalf("expected dict end, got %+v", tok)
	}
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected EOF")
	}
}

func TestScanner_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		typ  TokenType
	}{
		{"plain", "(hello)", "hello", TokenString},
		{"escapes", `(a\nb\)c\\)`, "a\nb)c\\", TokenString},
		{"nested parens", "(a(b)c)", "a(b)c", TokenString},
		{"octal", `(\101\60)`, "A0", TokenString},
		{"utf16 payload", "(\xfe\xff\x00A)", "\xfe\xff\x00A", TokenString},
		{"hex", "<4869>", "Hi", TokenHexString},
		{"odd hex", "<486>", "H`", TokenHexString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := nextToken(t, newScanner(t, tt.in, Config{}))
			if tok.Type != tt.typ || string(tok.Bytes) != tt.want {
				t.Fatalf("got %v %q, want %v %q", tok.Type, tok.Bytes, tt.typ, tt.want)
			}
		})
	}
}

func TestScanner_WhitespaceIncludesNUL(t *testing.T) {
	s := newScanner(t, "\x00\t/A\x00\f12", Config{})
	if tok := nextToken(t, s); tok.Type != TokenName || tok.Str != "A" {
		t.Fatalf("expected name A, got %+v", tok)
	}
	if tok := nextToken(t, s); tok.Int != 12 {
		t.Fatalf("expected 12, got %+v", tok)
	}
}

func TestScanner_SmallWindow(t *testing.T) {
	s := newScanner(t, "<< /LongerName (a fairly long string value) >>", Config{WindowSize: 3})
	nextToken(t, s)
	if tok := nextToken(t, s); tok.Str != "LongerName" {
		t.Fatalf("name split across windows: %+v", tok)
	}
	if tok := nextToken(t, s); string(tok.Bytes) != "a fairly long string value" {
		t.Fatalf("string split across windows: %q", tok.Bytes)
	}
}

func TestScanner_DepthLimit(t *testing.T) {
	s := newScanner(t, "[[[1]]]", Config{MaxArrayDepth: 2})
	nextToken(t, s)
	nextToken(t, s)
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected depth error")
	}
}

func TestScanner_Recovery(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		s := newScanner(t, "(unterminated", Config{})
		if _, err := s.Next(); err == nil {
			t.Fatalf("expected error without recovery")
		}
	})
	t.Run("lenient", func(t *testing.T) {
		lenient := recovery.NewLenientStrategy()
		s := newScanner(t, "(unterminated", Config{Recovery: lenient})
		tok := nextToken(t, s)
		if string(tok.Bytes) != "unterminated" {
			t.Fatalf("unexpected payload %q", tok.Bytes)
		}
		if len(lenient.Errors) != 1 {
			t.Fatalf("expected one recorded error, got %d", len(lenient.Errors))
		}
	})
	t.Run("underflow", func(t *testing.T) {
		lenient := recovery.NewLenientStrategy()
		s := newScanner(t, "] 1", Config{Recovery: lenient})
		tok := nextToken(t, s)
		if tok.Type != TokenArrayEnd {
			t.Fatalf("unexpected token %+v", tok)
		}
		if len(lenient.Errors) != 1 {
			t.Fatalf("expected underflow to be recorded")
		}
	})
}
