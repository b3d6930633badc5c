package theme

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

// HeaderPrefersColorScheme is the client hint carrying the system color scheme.
const HeaderPrefersColorScheme = "Sec-CH-Prefers-Color-Scheme"

// SystemPrefersDark reads the color scheme client hint of r.
func SystemPrefersDark(r *http.Request) bool {
	return strings.EqualFold(strings.Trim(r.Header.Get(HeaderPrefersColorScheme), `" `), "dark")
}

// Default is the theme used while nothing has been saved.
func Default(systemPrefersDark bool) models.Theme {
	if systemPrefersDark {
		return models.ThemeDark
	}
	return models.ThemeLight
}

// Load returns the saved theme, or Default when nothing valid is stored.
func Load(ctx context.Context, slot storage.Store, systemPrefersDark bool) (models.Theme, error) {
	raw, ok, err := slot.Get(ctx, storage.KeyTheme)
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}
	if ok {
		switch t := models.Theme(raw); t {
		case models.ThemeLight, models.ThemeDark:
			return t, nil
		}
	}
	return Default(systemPrefersDark), nil
}

// Save persists t. Only light and dark are accepted.
func Save(ctx context.Context, slot storage.Store, t models.Theme) error {
	if t != models.ThemeLight && t != models.ThemeDark {
		return fmt.Errorf("invalid theme %q", t)
	}
	if err := slot.Set(ctx, storage.KeyTheme, string(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// Toggle flips the current theme and saves the result.
func Toggle(ctx context.Context, slot storage.Store, systemPrefersDark bool) (models.Theme, error) {
	current, err := Load(ctx, slot, systemPrefersDark)
	if err != nil {
		return "", err
	}
	next := models.ThemeDark
	if current == models.ThemeDark {
		next = models.ThemeLight
	}
	if err := Save(ctx, slot, next); err != nil {
		return "", err
	}
	return next, nil
}
