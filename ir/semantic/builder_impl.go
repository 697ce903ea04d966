package semantic

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/fonts"
	"github.com/wudi/psdkit/ir/decoded"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/security"
)

// TextQuestion is put to Feedback when a document holds text layers.
const TextQuestion = "Found text objects, do you wish to load them as editable text shapes? " +
	"If not, they will be loaded as pixel data, which will be visually more accurate to the original file."

// Config controls tree reconstruction.
type Config struct {
	Host     Host
	Feedback Feedback
	// Fonts resolves the fonts of text layers. Nil uses the built-in face.
	Fonts   *fonts.FontSet
	Journal *recovery.Journal
	Limits  security.Limits
	Logger  observability.Logger
	// Name is given to the created image. Empty means "Imported".
	Name string
}

// NewBuilder returns the layer tree builder.
func NewBuilder(cfg Config) Builder {
	if cfg.Host == nil {
		cfg.Host = NewMemoryHost()
	}
	if cfg.Feedback == nil {
		cfg.Feedback = BatchMode{}
	}
	if cfg.Fonts == nil {
		cfg.Fonts = fonts.NewFontSet()
	}
	if cfg.Journal == nil {
		cfg.Journal = recovery.NewJournal(nil)
	}
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Logger = observability.OrNop(cfg.Logger)
	if cfg.Name == "" {
		cfg.Name = "Imported"
	}
	return &builderImpl{cfg: cfg}
}

type builderImpl struct {
	cfg Config
}

// build is the state of one Build call.
type build struct {
	*builderImpl
	ctx context.Context
	doc *decoded.Document
	img *Image
}

func (b *build) warn(err error, loc recovery.Location) error {
	b.cfg.Logger.Warn(err.Error(), observability.String("at", loc.String()))
	return b.cfg.Journal.Report(b.ctx, err, loc)
}

func (b *builderImpl) Build(ctx context.Context, doc *decoded.Document) (*Image, error) {
	h := doc.Raw.Header
	undo := b.cfg.Host.CreateUndoStore()
	img, err := b.cfg.Host.CreateImage(undo, h.Width, h.Height, doc.ColorSpace, b.cfg.Name)
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	img.MergedAlpha = doc.Raw.MergedAlpha
	st := &build{builderImpl: b, ctx: ctx, doc: doc, img: img}

	st.applyResources()
	st.registerPatterns()

	if len(doc.Layers) == 0 {
		if err := st.background(); err != nil {
			return nil, err
		}
		return img, nil
	}
	if err := st.layers(); err != nil {
		return nil, err
	}
	return img, nil
}

// background turns the merged image into the only layer.
func (b *build) background() error {
	n := &Node{
		Kind:    KindPaint,
		Name:    "Background",
		Opacity: 255,
		Visible: true,
		Blend:   compat.CompositeOver,
		Pixels:  b.doc.MergedPixels(),
	}
	_, err := b.img.AddNode(n, b.img.Root(), NoNode)
	return err
}

// convertText asks once, and only when a record carries text, whether text
// layers become editable shapes.
func (b *build) convertText() bool {
	for _, l := range b.doc.Layers {
		if l.Record.Text == nil {
			continue
		}
		switch b.cfg.Feedback.AskUser(TextQuestion) {
		case FeedbackYes, FeedbackSuppressedByBatchMode:
			return true
		default:
			return false
		}
	}
	return true
}

// layers runs the group reconstruction over the flat records, bottom-most
// first. Groups are opened by bounding dividers and named by the folder
// record that closes them.
func (b *build) layers() error {
	img := b.img
	convertText := b.convertText()
	stack := []NodeID{img.Root()}
	last := NoNode

	for i, l := range b.doc.Layers {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		rec := l.Record
		top := stack[len(stack)-1]
		var id NodeID

		switch div := divider(rec); {
		case div == raw.SectionBoundingDivider:
			g := &Node{Kind: KindGroup, Name: rec.DisplayName(), Opacity: 255, Visible: true, Blend: compat.CompositeOver}
			gid, err := img.AddNode(g, top, NoNode)
			if err != nil {
				return err
			}
			stack = append(stack, gid)
			id = gid

		case (div == raw.SectionOpenFolder || div == raw.SectionClosedFolder) && (len(stack) > 1 || last != NoNode):
			var gid NodeID
			if len(stack) <= 1 {
				// A group with a single child may be stored without its
				// bounding divider.
				g := &Node{Kind: KindGroup, Opacity: 255, Visible: true}
				var err error
				if gid, err = img.AddNode(g, top, NoNode); err != nil {
					return err
				}
				if err := img.MoveNode(last, gid, NoNode); err != nil {
					return err
				}
				b.cfg.Logger.Debug("implicit single child group", observability.String("name", rec.DisplayName()))
			} else {
				gid = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			if err := b.closeGroup(img.Node(gid), i, rec); err != nil {
				return err
			}
			id = gid

		case div == raw.SectionOpenFolder || div == raw.SectionClosedFolder:
			err := fmt.Errorf("unbalanced group markers: %s %q closes no group", div, rec.DisplayName())
			if ferr := b.warn(err, recovery.AtLayer("layer tree", i, "lsct")); ferr != nil {
				return ferr
			}
			continue

		default:
			n, err := b.layerNode(i, l, convertText)
			if err != nil {
				return err
			}
			if id, err = img.AddNode(n, top, NoNode); err != nil {
				return err
			}
		}

		if err := b.attachMasks(i, l, id); err != nil {
			return err
		}
		last = id
	}
	if len(stack) > 1 {
		b.cfg.Logger.Debug("groups closed at end of layers", observability.Int("open", len(stack)-1))
	}
	return nil
}

func divider(rec *raw.LayerRecord) raw.SectionType {
	if rec.Divider == nil {
		return raw.SectionOther
	}
	return rec.Divider.Type
}

// closeGroup copies the attributes of the closing folder record onto g. The
// group's blend mode is the one recorded in the divider; pass-through
// becomes a flag.
func (b *build) closeGroup(g *Node, index int, rec *raw.LayerRecord) error {
	g.Name = rec.DisplayName()
	g.Visible = rec.Visible()
	g.Opacity = rec.Opacity
	g.LayerID = rec.LayerID
	g.ColorLabel = rec.ColorLabel
	g.Locks = rec.Locks
	key := rec.Divider.BlendKey
	if key == "" {
		key = rec.BlendKey
	}
	op, err := b.blendMode(index, key)
	if err != nil {
		return err
	}
	g.Blend, g.PassThrough = compat.NormalizeGroupBlend(op)
	return b.applyStyle(g, index, rec)
}

// blendMode maps a blend key. Unknown keys fall back to normal with a warning.
func (b *build) blendMode(index int, key string) (compat.CompositeOp, error) {
	op, ok := compat.BlendModeFromKey(key)
	if !ok {
		err := fmt.Errorf("unknown blend mode %q", key)
		if ferr := b.warn(err, recovery.AtLayer("layer tree", index, "")); ferr != nil {
			return op, ferr
		}
	}
	return op, nil
}

// applyStyle attaches a copy of the record's layer style.
func (b *build) applyStyle(n *Node, index int, rec *raw.LayerRecord) error {
	if rec.Style == nil || rec.Style.Empty() {
		return nil
	}
	n.Style = rec.Style.Clone()
	for _, msg := range rec.Style.Unresolved(b.img.Patterns) {
		if ferr := b.warn(errors.New(msg), recovery.AtLayer("layer style", index, "lfx2")); ferr != nil {
			return ferr
		}
	}
	return nil
}
