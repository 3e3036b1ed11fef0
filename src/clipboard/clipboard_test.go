package clipboard

import (
	"errors"
	"testing"
)

func TestUnavailableBeforeInit(t *testing.T) {
	if ready.Load() {
		t.Skip("clipboard already initialized by another test")
	}
	if _, err := New().Text(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestWriteAndRead(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable in this environment: %v", err)
	}
	cb := New()
	if err := cb.WriteText("clip-translator test"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got, err := cb.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "clip-translator test" {
		t.Logf("clipboard read back %q (another process may own the selection)", got)
	}
}
