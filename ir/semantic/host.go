package semantic

import (
	"fmt"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/pattern"
)

// Host creates the images a decode fills in.
type Host interface {
	CreateUndoStore() UndoStore
	CreateImage(undo UndoStore, width, height int, cs *cmm.ColorSpace, name string) (*Image, error)
}

// FeedbackResult is the answer to a question put to the user.
type FeedbackResult int

const (
	FeedbackYes FeedbackResult = iota
	FeedbackNo
	// FeedbackSuppressedByBatchMode means nobody could be asked; the
	// question's default applies.
	FeedbackSuppressedByBatchMode
)

// Feedback asks the user a yes/no question.
type Feedback interface {
	AskUser(question string) FeedbackResult
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(question string) FeedbackResult

func (f FeedbackFunc) AskUser(question string) FeedbackResult { return f(question) }

// BatchMode answers every question with FeedbackSuppressedByBatchMode.
type BatchMode struct{}

func (BatchMode) AskUser(string) FeedbackResult { return FeedbackSuppressedByBatchMode }

// MemoryHost keeps images in memory and has no undo history.
type MemoryHost struct{}

func NewMemoryHost() *MemoryHost { return &MemoryHost{} }

func (*MemoryHost) CreateUndoStore() UndoStore { return nil }

func (*MemoryHost) CreateImage(undo UndoStore, width, height int, cs *cmm.ColorSpace, name string) (*Image, error) {
	return NewImage(undo, width, height, cs, name)
}

// NewImage returns an image holding only its root group.
func NewImage(undo UndoStore, width, height int, cs *cmm.ColorSpace, name string) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if cs == nil {
		return nil, fmt.Errorf("image %q has no color space", name)
	}
	img := &Image{
		Name:       name,
		Width:      width,
		Height:     height,
		ColorSpace: cs,
		XRes:       compat.DefaultPPI,
		YRes:       compat.DefaultPPI,
		Patterns:   pattern.NewRegistry(),
		UndoStore:  undo,
	}
	img.nodes = append(img.nodes, &Node{ID: 0, Kind: KindGroup, Name: "root", Opacity: 255, Visible: true, parent: NoNode})
	return img, nil
}

// Root returns the id of the root group.
func (img *Image) Root() NodeID { return 0 }

// Node returns the node with id, or nil.
func (img *Image) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(img.nodes) {
		return nil
	}
	return img.nodes[id]
}

// Len returns the number of nodes, root and masks included.
func (img *Image) Len() int { return len(img.nodes) }

// Children returns the layers of group id, bottom-most first.
func (img *Image) Children(id NodeID) []*Node {
	n := img.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Node, len(n.children))
	for i, c := range n.children {
		out[i] = img.nodes[c]
	}
	return out
}

// Masks returns the masks attached to layer id in attachment order.
func (img *Image) Masks(id NodeID) []*Node {
	n := img.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Node, len(n.masks))
	for i, m := range n.masks {
		out[i] = img.nodes[m]
	}
	return out
}

// AddNode inserts n into group parent directly above the sibling above, or
// at the top of the group when above is NoNode. It assigns and returns the
// node's id.
func (img *Image) AddNode(n *Node, parent, above NodeID) (NodeID, error) {
	if n.Kind.IsMask() {
		return NoNode, fmt.Errorf("%s %q must be attached with AttachMask", n.Kind, n.Name)
	}
	p := img.Node(parent)
	if p == nil || p.Kind != KindGroup {
		return NoNode, fmt.Errorf("node %d is not a group", parent)
	}
	n.ID = NodeID(len(img.nodes))
	img.nodes = append(img.nodes, n)
	if err := img.insert(n, p, above); err != nil {
		img.nodes = img.nodes[:len(img.nodes)-1]
		return NoNode, err
	}
	return n.ID, nil
}

// MoveNode reparents layer id into group parent directly above the sibling
// above, or at the top when above is NoNode.
func (img *Image) MoveNode(id, parent, above NodeID) error {
	n := img.Node(id)
	if n == nil || id == img.Root() || n.Kind.IsMask() {
		return fmt.Errorf("node %d cannot be moved", id)
	}
	p := img.Node(parent)
	if p == nil || p.Kind != KindGroup {
		return fmt.Errorf("node %d is not a group", parent)
	}
	for a := parent; a != NoNode; a = img.nodes[a].parent {
		if a == id {
			return fmt.Errorf("node %d cannot move into its own subtree", id)
		}
	}
	if above == id || (above != NoNode && (img.Node(above) == nil || img.nodes[above].parent != parent)) {
		return fmt.Errorf("node %d is not a child of %d", above, parent)
	}
	old := img.nodes[n.parent]
	old.children = remove(old.children, id)
	return img.insert(n, p, above)
}

// AttachMask adds mask to layer id and returns the mask's id.
func (img *Image) AttachMask(id NodeID, mask *Node) (NodeID, error) {
	if !mask.Kind.IsMask() {
		return NoNode, fmt.Errorf("%s %q is not a mask", mask.Kind, mask.Name)
	}
	l := img.Node(id)
	if l == nil || l.Kind.IsMask() || id == img.Root() {
		return NoNode, fmt.Errorf("node %d cannot own masks", id)
	}
	mask.ID = NodeID(len(img.nodes))
	mask.parent = id
	img.nodes = append(img.nodes, mask)
	l.masks = append(l.masks, mask.ID)
	return mask.ID, nil
}

func (img *Image) insert(n, p *Node, above NodeID) error {
	at := len(p.children)
	if above != NoNode {
		at = -1
		for i, c := range p.children {
			if c == above {
				at = i + 1
				break
			}
		}
		if at < 0 {
			return fmt.Errorf("node %d is not a child of %d", above, p.ID)
		}
	}
	p.children = append(p.children, 0)
	copy(p.children[at+1:], p.children[at:])
	p.children[at] = n.ID
	n.parent = p.ID
	return nil
}

func remove(ids []NodeID, id NodeID) []NodeID {
	for i, c := range ids {
		if c == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Walk visits the layer tree depth-first, parents before children and
// children bottom-most first. Masks are not visited. The root has depth 0.
func (img *Image) Walk(fn func(n *Node, depth int)) {
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := img.nodes[id]
		fn(n, depth)
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(img.Root(), 0)
}
