package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_SlotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	a := backend.Slot("tenant-a")
	b := backend.Slot("tenant-b")

	if err := a.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if v, ok, err := a.Get(ctx, KeyTheme); err != nil || !ok || v != "dark" {
		t.Errorf("Expected dark/true/nil, but got %q/%v/%v", v, ok, err)
	}
	if _, ok, err := b.Get(ctx, KeyTheme); err != nil || ok {
		t.Errorf("Expected tenant-b to be empty, but got ok=%v err=%v", ok, err)
	}
}

func TestMemory_DeleteAndClose(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	slot := backend.Slot("t")

	_ = slot.Set(ctx, KeyHistory, "[]")
	if err := backend.Delete(ctx, "t"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := slot.Get(ctx, KeyHistory); ok {
		t.Error("Expected key to be gone after Delete")
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := slot.Set(ctx, KeyHistory, "[]"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, but got %v", err)
	}
	if _, _, err := slot.Get(ctx, KeyHistory); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, but got %v", err)
	}
}
