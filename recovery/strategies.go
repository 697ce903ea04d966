package recovery

import "fmt"

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy implements a best-effort recovery strategy.
// It accumulates every reported problem and asks the caller to continue.
type LenientStrategy struct {
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("[%s]: %w", location, err))
	return ActionWarn
}

// Warning is a recoverable problem surfaced alongside a successful decode.
type Warning struct {
	Location Location
	Err      error
}

func (w Warning) Error() string { return fmt.Sprintf("%s: %v", w.Location, w.Err) }
func (w Warning) Unwrap() error { return w.Err }

// Journal routes recoverable problems through a Strategy and keeps the
// ones it tolerated, in the order they were reported.
type Journal struct {
	strategy Strategy
	warnings []Warning
}

// NewJournal wraps s; a nil strategy behaves like LenientStrategy.
func NewJournal(s Strategy) *Journal {
	if s == nil {
		s = NewLenientStrategy()
	}
	return &Journal{strategy: s}
}

// Report records err at loc. It returns a non-nil error when the strategy
// decided the problem is fatal.
func (j *Journal) Report(ctx Context, err error, loc Location) error {
	if err == nil {
		return nil
	}
	switch j.strategy.OnError(ctx, err, loc) {
	case ActionFail:
		return Warning{Location: loc, Err: err}
	case ActionSkip:
		return nil
	default:
		j.warnings = append(j.warnings, Warning{Location: loc, Err: err})
		return nil
	}
}

// Warnings returns a copy of the tolerated problems.
func (j *Journal) Warnings() []Warning {
	out := make([]Warning, len(j.warnings))
	copy(out, j.warnings)
	return out
}
