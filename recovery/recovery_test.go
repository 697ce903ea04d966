package recovery

import (
	"errors"
	"strings"
	"testing"
)

func TestRecoveryStrategies(t *testing.T) {
	errTag := errors.New("malformed fill descriptor")
	loc := AtLayer("decoded:fill", 2, "SoCo")

	t.Run("StrictStrategy", func(t *testing.T) {
		j := NewJournal(NewStrictStrategy())
		err := j.Report(nil, errTag, loc)
		if err == nil {
			t.Fatal("Expected error with StrictStrategy, got nil")
		}
		if !errors.Is(err, errTag) {
			t.Fatalf("escalated error should wrap the original, got %v", err)
		}
		if len(j.Warnings()) != 0 {
			t.Fatalf("strict journal should not keep warnings")
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := NewLenientStrategy()
		j := NewJournal(rec)
		if err := j.Report(nil, errTag, loc); err != nil {
			t.Fatalf("Expected success with LenientStrategy, got error: %v", err)
		}
		if err := j.Report(nil, errors.New("second"), At("parser:resources", 40)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ws := j.Warnings()
		if len(ws) != 2 {
			t.Fatalf("expected 2 warnings, got %d", len(ws))
		}
		if ws[0].Err != errTag {
			t.Fatalf("warnings must keep report order")
		}
		if len(rec.Errors) != 2 {
			t.Fatalf("LenientStrategy should record both errors, got %d", len(rec.Errors))
		}
		if !strings.Contains(rec.Errors[0].Error(), "layer 2 tag SoCo") {
			t.Fatalf("location missing from message: %v", rec.Errors[0])
		}
	})

	t.Run("NilError", func(t *testing.T) {
		j := NewJournal(nil)
		if err := j.Report(nil, nil, loc); err != nil || len(j.Warnings()) != 0 {
			t.Fatalf("nil error must be ignored")
		}
	})
}
