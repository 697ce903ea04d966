package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"

	"github.com/wudi/psdkit/ir"
	"github.com/wudi/psdkit/ir/semantic"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
)

type options struct {
	path    string
	outDir  string
	verbose bool
	strict  bool
	text    semantic.Feedback
	json    bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "psdinfo: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "psdinfo: %v (%s)\n", err, ir.Code(err))
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: psdinfo [flags] <file.psd>\n")
		flag.PrintDefaults()
	}
	verbose := flag.Bool("v", false, "Log every decode step")
	text := flag.String("text", "", "Answer to the text layer question: yes or no (default: batch mode)")
	strict := flag.Bool("strict", false, "Fail on the first recoverable problem")
	asJSON := flag.Bool("json", false, "Print sections as JSON")
	outDir := flag.String("out", "", "Directory to write annotation payloads to")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing document path")
	}
	opts.path = flag.Arg(0)
	opts.verbose = *verbose
	opts.strict = *strict
	opts.json = *asJSON
	opts.outDir = *outDir
	switch strings.ToLower(*text) {
	case "":
		opts.text = semantic.BatchMode{}
	case "yes", "y":
		opts.text = answer(semantic.FeedbackYes)
	case "no", "n":
		opts.text = answer(semantic.FeedbackNo)
	default:
		return options{}, fmt.Errorf("-text must be yes or no, got %q", *text)
	}
	return opts, nil
}

func answer(r semantic.FeedbackResult) semantic.Feedback {
	return semantic.FeedbackFunc(func(string) semantic.FeedbackResult { return r })
}

func run(opts options) error {
	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.WarnLevel)
	if opts.verbose {
		log.SetLevel(log.DebugLevel)
	}

	file, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	cfg := ir.Config{
		Feedback: opts.text,
		Logger:   observability.NewApexLogger(log.Log),
		Name:     filepath.Base(opts.path),
	}
	if opts.strict {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	img, err := ir.NewDecoder(cfg).Decode(context.Background(), file)
	if err != nil {
		return err
	}

	annots, err := writeAnnotations(opts.outDir, img.Annotations)
	if err != nil {
		return err
	}
	if opts.json {
		for _, s := range []struct {
			name string
			v    interface{}
		}{
			{"header", header(img)},
			{"layers", layers(img)},
			{"annotations", annots},
			{"warnings", warnings(img)},
		} {
			if err := emitSection(s.name, s.v); err != nil {
				return err
			}
		}
		return nil
	}

	h := header(img)
	fmt.Printf("%s: %dx%d %s, %g x %g ppi, %d guides\n", h.Name, h.Width, h.Height, h.ColorSpace, h.XRes, h.YRes, h.Guides)
	fmt.Println()
	for _, l := range layers(img) {
		fmt.Printf("%s%s\n", strings.Repeat("  ", l.Depth), l.line())
	}
	if len(annots) > 0 {
		fmt.Println()
		for _, a := range annots {
			fmt.Printf("%-32s %8s  %s\n", a.Type, humanize.Bytes(uint64(a.Size)), a.Description)
		}
	}
	if len(img.Warnings) > 0 {
		fmt.Printf("\n%s:\n", humanize.Plural(len(img.Warnings), "warning", "warnings"))
		for _, w := range img.Warnings {
			fmt.Printf("  %v\n", w)
		}
	}
	return nil
}

type headerSummary struct {
	Name       string  `json:"name"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorSpace string  `json:"colorSpace"`
	XRes       float64 `json:"xRes"`
	YRes       float64 `json:"yRes"`
	Guides     int     `json:"guides"`
}

func header(img *semantic.Image) headerSummary {
	return headerSummary{
		Name:       img.Name,
		Width:      img.Width,
		Height:     img.Height,
		ColorSpace: img.ColorSpace.ID(),
		XRes:       img.XRes,
		YRes:       img.YRes,
		Guides:     len(img.Guides),
	}
}

type layerSummary struct {
	Depth   int    `json:"depth"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Blend   string `json:"blend"`
	Opacity uint8  `json:"opacity"`
	Visible bool   `json:"visible"`
	Bytes   int    `json:"bytes,omitempty"`
	Masks   int    `json:"masks,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (l layerSummary) line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q %s %d%%", l.Kind, l.Name, l.Blend, int(l.Opacity)*100/255)
	if !l.Visible {
		b.WriteString(" hidden")
	}
	if l.Bytes > 0 {
		fmt.Fprintf(&b, " %s", humanize.Bytes(uint64(l.Bytes)))
	}
	if l.Masks > 0 {
		fmt.Fprintf(&b, " +%s", humanize.Plural(l.Masks, "mask", "masks"))
	}
	if l.Detail != "" {
		fmt.Fprintf(&b, " [%s]", l.Detail)
	}
	return b.String()
}

func layers(img *semantic.Image) []layerSummary {
	var out []layerSummary
	img.Walk(func(n *semantic.Node, depth int) {
		if n.ID == img.Root() {
			return
		}
		s := layerSummary{
			Depth:   depth - 1,
			Name:    n.Name,
			Kind:    n.Kind.String(),
			Blend:   string(n.Blend),
			Opacity: n.Opacity,
			Visible: n.Visible,
			Masks:   len(img.Masks(n.ID)),
		}
		if n.PassThrough {
			s.Blend = "pass through"
		}
		if n.Pixels != nil {
			s.Bytes = len(n.Pixels.Pix)
		}
		switch {
		case n.Generator != nil:
			s.Detail = n.Generator.Name
		case n.Text != nil:
			s.Detail = fmt.Sprintf("%q", n.Text.Text)
		case n.File != nil:
			s.Detail = n.File.ID
		case n.Adjustment != nil:
			s.Detail = n.Adjustment.Filter
		case n.Shape != nil && n.Shape.Parametric != nil:
			s.Detail = "parametric"
		}
		out = append(out, s)
	})
	return out
}

type annotationSummary struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Size        int    `json:"size"`
	Path        string `json:"path,omitempty"`
}

func writeAnnotations(dir string, annots []semantic.Annotation) ([]annotationSummary, error) {
	if len(annots) == 0 {
		return nil, nil
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create annotation dir: %w", err)
		}
	}
	summaries := make([]annotationSummary, 0, len(annots))
	for idx, a := range annots {
		s := annotationSummary{Type: a.Type, Description: a.Description, Size: len(a.Data)}
		if dir != "" {
			path := filepath.Join(dir, fmt.Sprintf("%03d-%s.bin", idx+1, safeName(a.Type)))
			if err := os.WriteFile(path, a.Data, 0o644); err != nil {
				return nil, fmt.Errorf("write annotation %q: %w", path, err)
			}
			s.Path = path
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func warnings(img *semantic.Image) []string {
	out := make([]string, len(img.Warnings))
	for i, w := range img.Warnings {
		out[i] = w.Error()
	}
	return out
}

func emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}

func safeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
