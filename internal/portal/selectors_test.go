package portal

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrySelectors_FirstMatchWins(t *testing.T) {
	selectors := []string{"input#date", "input[name='date']", "form input"}

	var attempted []string
	err := trySelectors(FieldDate, selectors, discardLogger(), func(sel string) error {
		attempted = append(attempted, sel)
		return nil
	})
	if err != nil {
		t.Fatalf("trySelectors failed: %v", err)
	}
	if len(attempted) != 1 || attempted[0] != "input#date" {
		t.Errorf("attempted %v, want only the first selector", attempted)
	}
}

func TestTrySelectors_FallsBackInOrder(t *testing.T) {
	selectors := []string{"input#date", "input[name='date']", "form input"}

	var attempted []string
	err := trySelectors(FieldDate, selectors, discardLogger(), func(sel string) error {
		attempted = append(attempted, sel)
		if sel != "form input" {
			return errors.New("not visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("trySelectors failed: %v", err)
	}
	if !reflect.DeepEqual(attempted, selectors) {
		t.Errorf("attempted %v, want every selector in order %v", attempted, selectors)
	}
}

func TestTrySelectors_ExhaustedReportsEverySelector(t *testing.T) {
	selectors := []string{"textarea[name='activities']", "form textarea"}

	calls := 0
	err := trySelectors(FieldActivities, selectors, discardLogger(), func(sel string) error {
		calls++
		return errors.New("not visible")
	})
	if err == nil {
		t.Fatal("expected an error when every selector misses")
	}
	var mismatch *SelectorMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %T, want SelectorMismatchError", err)
	}
	if mismatch.Field != FieldActivities {
		t.Errorf("error names field %q, want %q", mismatch.Field, FieldActivities)
	}
	if !reflect.DeepEqual(mismatch.Tried, selectors) {
		t.Errorf("error lists %v as tried, want %v", mismatch.Tried, selectors)
	}
	if calls != len(selectors) {
		t.Errorf("attempt ran %d times, want %d", calls, len(selectors))
	}
}

func TestTrySelectors_UnknownFieldHasNoStrategies(t *testing.T) {
	err := trySelectors("nonexistent", nil, discardLogger(), func(sel string) error {
		t.Fatal("attempt should never run without selectors")
		return nil
	})
	var mismatch *SelectorMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %T, want SelectorMismatchError", err)
	}
	if len(mismatch.Tried) != 0 {
		t.Errorf("tried list %v, want empty", mismatch.Tried)
	}
}
