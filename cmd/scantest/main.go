package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wudi/psdkit/parser"
	"github.com/wudi/psdkit/scanner"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: scantest <file.psd>")
		os.Exit(1)
	}
	f, err := os.Open(os.Args[1])
	if err != nil {
		panic(err)
	}
	defer f.Close()

	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), f)
	if err != nil {
		panic(err)
	}
	for i, l := range doc.Layers {
		if l.Text == nil {
			continue
		}
		fmt.Printf("== layer %d %q ==\n", i, l.DisplayName())
		s := scanner.NewBytes(l.Text.EngineData, scanner.Config{})
		for n := 0; n < 200000; n++ { // limit to avoid flooding
			tok, err := s.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				fmt.Printf("ERR: %v\n", err)
				break
			}
			fmt.Printf("%s@%d %s\n", tok.Type, tok.Pos, describe(tok))
		}
	}
}

func describe(tok scanner.Token) string {
	switch tok.Type {
	case scanner.TokenName, scanner.TokenKeyword:
		return tok.Str
	case scanner.TokenString, scanner.TokenHexString:
		return fmt.Sprintf("%q", tok.Bytes)
	case scanner.TokenNumber:
		if tok.IsInt {
			return fmt.Sprint(tok.Int)
		}
		return fmt.Sprint(tok.Float)
	case scanner.TokenBoolean:
		return fmt.Sprint(tok.Bool)
	}
	return ""
}
