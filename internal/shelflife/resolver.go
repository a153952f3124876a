// Package shelflife estimates how long a detected food item keeps and how to
// store it, using an external product database with a local fallback table.
package shelflife

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/franckalain/smartplate/internal/expiration"
	"github.com/franckalain/smartplate/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// SearchLimit is the number of candidate products requested per lookup.
	SearchLimit = 5

	DefaultLookupTimeout = 10 * time.Second
)

// dateLayouts are the product date formats we accept, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"01/2006",
	"2006-01",
}

// Config configures a Resolver
type Config struct {
	Lookup        ProductLookup
	LookupTimeout time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Resolver turns a food item name into ExpirationInfo. It never fails.
type Resolver struct {
	lookup  ProductLookup
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewResolver creates a resolver. A nil lookup sends every item to the default table.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		lookup:  cfg.Lookup,
		timeout: cfg.LookupTimeout,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultLookupTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve returns shelf-life information for foodItem. Lookup failures,
// timeouts and empty results all degrade to the default table.
func (r *Resolver) Resolve(ctx context.Context, foodItem string) models.ExpirationInfo {
	logger := r.logger.With("food_item", foodItem)
	if r.lookup == nil {
		return estimated(foodItem)
	}

	category := CategoryFor(foodItem)
	products, err := r.search(ctx, category)
	if err != nil {
		logger.Warn("product lookup failed, using default shelf life", "category", category, "error", err)
		return fallback(foodItem, err)
	}

	now := r.now()
	for _, p := range products {
		if info, ok := fromProduct(foodItem, p, now); ok {
			logger.Debug("shelf life from product database", "product", info.ProductName, "days", info.ShelfLifeDays)
			return info
		}
	}

	logger.Debug("no product matched, using default shelf life", "category", category, "candidates", len(products))
	return estimated(foodItem)
}

type searchResult struct {
	products []models.Product
	err      error
}

// search performs the single lookup attempt under the resolver's timeout.
// The timeout holds even for lookups that ignore ctx; a panicking lookup is
// reported as an error.
func (r *Resolver) search(ctx context.Context, category string) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- searchResult{err: &LookupError{Category: category, Err: fmt.Errorf("panic: %v", rec)}}
			}
		}()
		products, err := r.lookup.Search(ctx, category, SearchLimit)
		done <- searchResult{products: products, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && ctx.Err() != nil {
			return nil, &LookupError{Category: category, Err: ctx.Err()}
		}
		return res.products, res.err
	case <-ctx.Done():
		return nil, &LookupError{Category: category, Err: ctx.Err()}
	}
}

func fromProduct(foodItem string, p models.Product, now time.Time) (models.ExpirationInfo, bool) {
	days, explicit := explicitDays(p, now)
	if !explicit && strings.TrimSpace(p.Categories) == "" {
		return models.ExpirationInfo{}, false
	}

	group := classify(p.Categories)
	if !explicit {
		days = group.days
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = displayName(foodItem)
	}

	info := models.ExpirationInfo{
		FoodItem:      foodItem,
		ProductName:   name,
		ShelfLifeDays: days,
		StorageAdvice: group.advice,
		IsEstimated:   !explicit,
		Status:        models.StatusSuccess,
		Source:        models.SourceExternal,
	}
	if brand := strings.TrimSpace(p.Brand); brand != "" {
		info.Brand = &brand
	}
	return info, true
}

// explicitDays reads the first parseable future date among the product's
// expiration and best-before fields.
func explicitDays(p models.Product, now time.Time) (int, bool) {
	for _, raw := range []string{p.ExpirationDate, p.BestBeforeDate} {
		t, ok := parseDate(raw)
		if !ok {
			continue
		}
		if days := expiration.DaysUntil(t, now); days > 0 {
			return days, true
		}
	}
	return 0, false
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func estimated(foodItem string) models.ExpirationInfo {
	return models.ExpirationInfo{
		FoodItem:      foodItem,
		ProductName:   displayName(foodItem),
		ShelfLifeDays: DefaultDays(foodItem),
		StorageAdvice: fallbackStorageAdvice,
		IsEstimated:   true,
		Status:        models.StatusEstimated,
		Source:        models.SourceDefault,
	}
}

func fallback(foodItem string, err error) models.ExpirationInfo {
	info := estimated(foodItem)
	info.Status = models.StatusFallback
	info.Error = err.Error()
	return info
}

// displayName title-cases a food item. Casers hold state, so each call gets its own.
func displayName(foodItem string) string {
	return cases.Title(language.English).String(foodItem)
}
