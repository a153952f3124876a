// Package enrich attaches shelf-life data to detected ingredients.
package enrich

import (
	"context"
	"time"

	"github.com/franckalain/smartplate/internal/expiration"
	"github.com/franckalain/smartplate/internal/models"
	"golang.org/x/sync/errgroup"
)

// Resolver produces expiration information for one food item and never fails.
type Resolver interface {
	Resolve(ctx context.Context, foodItem string) models.ExpirationInfo
}

// Orchestrator resolves every ingredient concurrently and waits for all of them.
type Orchestrator struct {
	resolver       Resolver
	maxConcurrency int
}

// NewOrchestrator creates an orchestrator. maxConcurrency <= 0 means one
// goroutine per ingredient.
func NewOrchestrator(resolver Resolver, maxConcurrency int) *Orchestrator {
	return &Orchestrator{resolver: resolver, maxConcurrency: maxConcurrency}
}

// Enrich returns the ingredients in their input order, each with its
// expiration info. All ingredients share now as their purchase date.
func (o *Orchestrator) Enrich(ctx context.Context, ingredients []models.Ingredient, now time.Time) []models.EnrichedIngredient {
	out := make([]models.EnrichedIngredient, len(ingredients))
	if len(ingredients) == 0 {
		return out
	}

	var g errgroup.Group
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}
	for i, ing := range ingredients {
		i, ing := i, ing
		g.Go(func() error {
			info := o.resolver.Resolve(ctx, ing.Name)
			if info.ShelfLifeDays > 0 {
				dates := expiration.Calculate(info.ShelfLifeDays, now)
				info.Dates = &dates
			}
			out[i] = models.EnrichedIngredient{Ingredient: ing, Expiration: info}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
