package theme

import (
	"context"
	"net/http/httptest"
	"testing"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory().Slot("t")

	if got, _ := Load(ctx, slot, false); got != models.ThemeLight {
		t.Errorf("Expected light, but got %s", got)
	}
	if got, _ := Load(ctx, slot, true); got != models.ThemeDark {
		t.Errorf("Expected dark, but got %s", got)
	}

	_ = slot.Set(ctx, storage.KeyTheme, "purple")
	if got, _ := Load(ctx, slot, true); got != models.ThemeDark {
		t.Errorf("Expected invalid value to fall back to dark, but got %s", got)
	}
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory().Slot("t")

	got, err := Toggle(ctx, slot, false)
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if got != models.ThemeDark {
		t.Errorf("Expected dark, but got %s", got)
	}

	// The saved value wins over the system preference from now on.
	if got, _ := Load(ctx, slot, false); got != models.ThemeDark {
		t.Errorf("Expected saved dark, but got %s", got)
	}

	got, _ = Toggle(ctx, slot, true)
	if got != models.ThemeLight {
		t.Errorf("Expected light, but got %s", got)
	}
}

func TestSave_RejectsUnknownTheme(t *testing.T) {
	if err := Save(context.Background(), storage.NewMemory().Slot("t"), "sepia"); err == nil {
		t.Fatal("Expected an error, but got nil")
	}
}

func TestSystemPrefersDark(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if SystemPrefersDark(req) {
		t.Error("Expected false without the header")
	}
	req.Header.Set(HeaderPrefersColorScheme, `"dark"`)
	if !SystemPrefersDark(req) {
		t.Error("Expected true for \"dark\"")
	}
}
