package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed(at)
	if got := c(); !got.Equal(at) {
		t.Fatalf("Fixed() = %v, want %v", got, at)
	}
}

func TestOrSystem(t *testing.T) {
	if got := OrSystem(nil)(); got.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", got.Location())
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := OrSystem(Fixed(at))(); !got.Equal(at) {
		t.Fatalf("OrSystem(Fixed) = %v, want %v", got, at)
	}
}
