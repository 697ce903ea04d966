package recovery

import "fmt"

type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies where in the document a problem was found.
type Location struct {
	ByteOffset int64
	LayerIndex int // -1 when not inside a layer record
	Tag        string
	Component  string
}

func (l Location) String() string {
	s := l.Component
	if l.LayerIndex >= 0 {
		s += fmt.Sprintf(" layer %d", l.LayerIndex)
	}
	if l.Tag != "" {
		s += " tag " + l.Tag
	}
	if l.ByteOffset > 0 {
		s += fmt.Sprintf(" @%d", l.ByteOffset)
	}
	return s
}

// At builds a document-level location.
func At(component string, offset int64) Location {
	return Location{ByteOffset: offset, LayerIndex: -1, Component: component}
}

// AtLayer builds a location inside a layer record.
func AtLayer(component string, layer int, tag string) Location {
	return Location{LayerIndex: layer, Tag: tag, Component: component}
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

type Context interface{ Done() <-chan struct{} }
