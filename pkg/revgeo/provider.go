// Package revgeo resolves a coordinate to a property address. Providers
// are tried in priority order; the resolver only sees the cascade.
package revgeo

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
)

// ErrNoMatch means no provider found a property at the point.
var ErrNoMatch = eris.New("revgeo: no property at point")

// Provider is a single reverse-lookup backend.
type Provider interface {
	Name() string
	Available() bool
	Lookup(ctx context.Context, pt geomath.Point) (*model.ResolvedProperty, error)
}

// Cascade tries providers in order until one matches. Provider errors are
// logged and skipped; only a full miss surfaces ErrNoMatch.
type Cascade struct {
	providers []Provider
}

// NewCascade creates a Cascade over the given providers.
func NewCascade(providers ...Provider) *Cascade {
	return &Cascade{providers: providers}
}

// Lookup implements the resolver's reverse-lookup collaborator.
func (c *Cascade) Lookup(ctx context.Context, pt geomath.Point) (*model.ResolvedProperty, error) {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Lookup(ctx, pt)
		if err != nil {
			if !eris.Is(err, ErrNoMatch) {
				zap.L().Debug("revgeo: provider error, trying next",
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
			}
			continue
		}
		if result != nil {
			result.Source = p.Name()
			return result, nil
		}
	}
	return nil, ErrNoMatch
}
