package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/parser"
)

func main() {
	out := flag.String("out", "profile.icc", "File to write the embedded profile to")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract_icc [-out profile.icc] <file.psd>")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract_icc: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract_icc: %v\n", err)
		os.Exit(1)
	}

	e, ok := doc.Resources.Get(raw.ResourceICCProfile)
	if !ok {
		fmt.Println("No ICC profile embedded")
		return
	}
	data, _ := e.Value.([]byte)
	if len(data) == 0 {
		data = e.Data
	}
	if p, err := cmm.NewICCProfile(data); err == nil {
		fmt.Printf("%s: class %s, space %s\n", p.Name(), p.Class(), p.ColorSpace())
	} else {
		fmt.Printf("Profile is not usable: %v\n", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "extract_icc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Extracted ICC profile: %s to %s\n", humanize.Bytes(uint64(len(data))), *out)
}
