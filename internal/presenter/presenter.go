// Package presenter hands finished draws to whatever shows them to people.
// The draw itself never waits on, or depends on, a presenter succeeding.
package presenter

import (
	"context"

	"luckydraw/internal/models"
)

// Reveal is what a presenter receives after a draw is committed.
type Reveal struct {
	Prize   string               `json:"prize"`
	Seed    string               `json:"seed"`
	Winners []models.Participant `json:"winners"`
}

// Presenter shows winners to a tenant.
type Presenter interface {
	Present(ctx context.Context, tenantID string, reveal Reveal) error
}

// Nop discards every reveal.
type Nop struct{}

func (Nop) Present(context.Context, string, Reveal) error { return nil }

// Func adapts a plain function to Presenter.
type Func func(ctx context.Context, tenantID string, reveal Reveal) error

func (f Func) Present(ctx context.Context, tenantID string, reveal Reveal) error {
	return f(ctx, tenantID, reveal)
}
