package shelflife

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/franckalain/smartplate/internal/models"
)

type fakeLookup struct {
	SearchFunc func(ctx context.Context, category string, limit int) ([]models.Product, error)

	mu           sync.Mutex
	CallCount    int
	LastCategory string
	LastLimit    int
}

func (f *fakeLookup) Search(ctx context.Context, category string, limit int) ([]models.Product, error) {
	f.mu.Lock()
	f.CallCount++
	f.LastCategory = category
	f.LastLimit = limit
	f.mu.Unlock()

	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, category, limit)
	}
	return nil, nil
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestResolver(lookup ProductLookup) *Resolver {
	return NewResolver(Config{
		Lookup:        lookup,
		LookupTimeout: 50 * time.Millisecond,
		Now:           func() time.Time { return fixedNow },
	})
}

func TestResolve_LookupFailureFallsBack(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			return nil, &LookupError{Category: category, Err: errors.New("connection refused")}
		},
	}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "banana")

	if info.Status != models.StatusFallback {
		t.Errorf("expected status fallback, got %s", info.Status)
	}
	if info.Source != models.SourceDefault {
		t.Errorf("expected source default, got %s", info.Source)
	}
	if info.ShelfLifeDays != 7 {
		t.Errorf("expected default 7 days for banana, got %d", info.ShelfLifeDays)
	}
	if info.Error == "" {
		t.Error("expected error message to be carried")
	}
	if info.ProductName != "Banana" {
		t.Errorf("expected product name Banana, got %q", info.ProductName)
	}
	if lookup.LastCategory != "bananas" || lookup.LastLimit != SearchLimit {
		t.Errorf("unexpected search arguments %q/%d", lookup.LastCategory, lookup.LastLimit)
	}
}

func TestResolve_NeverFailsForAnyInput(t *testing.T) {
	failing := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			return nil, errors.New("boom")
		},
	}
	inputs := []string{"", "banana", "wine glass", "dragon fruit", "!!!", "ÄPFEL"}

	for _, lookup := range []ProductLookup{nil, &fakeLookup{}, failing} {
		r := newTestResolver(lookup)
		for _, in := range inputs {
			info := r.Resolve(context.Background(), in)
			if info.Source == "" || info.Status == "" {
				t.Errorf("input %q: expected populated source and status, got %+v", in, info)
			}
			if info.ShelfLifeDays <= 0 {
				t.Errorf("input %q: expected positive shelf life, got %d", in, info.ShelfLifeDays)
			}
			if info.StorageAdvice == "" {
				t.Errorf("input %q: expected storage advice", in)
			}
		}
	}
}

func TestResolve_UnknownFoodUsesRawCategory(t *testing.T) {
	lookup := &fakeLookup{}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "kohlrabi")

	if lookup.LastCategory != "kohlrabi" {
		t.Errorf("expected raw name as category, got %q", lookup.LastCategory)
	}
	if info.Status != models.StatusEstimated {
		t.Errorf("expected estimated status for empty results, got %s", info.Status)
	}
	if info.ShelfLifeDays != DefaultShelfLifeDays {
		t.Errorf("expected %d days, got %d", DefaultShelfLifeDays, info.ShelfLifeDays)
	}
}

func TestResolve_CategoryClassification(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			return []models.Product{
				{Name: "No signal"},
				{Name: "Greek Yogurt", Brand: "Fage", Categories: "Dairies, Fermented foods, Yogurts"},
				{Name: "Later", Categories: "Canned foods"},
			}, nil
		},
	}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "cup")

	if info.Status != models.StatusSuccess || info.Source != models.SourceExternal {
		t.Fatalf("expected success/external, got %s/%s", info.Status, info.Source)
	}
	if info.ProductName != "Greek Yogurt" {
		t.Errorf("expected first product with a signal, got %q", info.ProductName)
	}
	if info.Brand == nil || *info.Brand != "Fage" {
		t.Errorf("expected brand Fage, got %v", info.Brand)
	}
	if info.ShelfLifeDays != 7 {
		t.Errorf("expected dairy shelf life 7, got %d", info.ShelfLifeDays)
	}
	if !info.IsEstimated {
		t.Error("expected category-derived shelf life to be marked estimated")
	}
}

func TestResolve_ExplicitDatePreferred(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			return []models.Product{
				{Name: "Cheddar", Categories: "Cheeses", BestBeforeDate: "2024-06-11"},
			}, nil
		},
	}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "sandwich")

	if info.ShelfLifeDays != 10 {
		t.Errorf("expected 10 days until best-before, got %d", info.ShelfLifeDays)
	}
	if info.IsEstimated {
		t.Error("expected explicit date to not be estimated")
	}
	if info.StorageAdvice != keywordGroups[0].advice {
		t.Errorf("expected dairy advice, got %q", info.StorageAdvice)
	}
}

func TestResolve_PastDateUsesCategories(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			return []models.Product{
				{Name: "Old Bread", Categories: "Breads", ExpirationDate: "2020-01-01"},
			}, nil
		},
	}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "cake")

	if info.ShelfLifeDays != 5 {
		t.Errorf("expected bakery shelf life 5, got %d", info.ShelfLifeDays)
	}
}

func TestResolve_TimeoutFallsBack(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	r := newTestResolver(lookup)

	start := time.Now()
	info := r.Resolve(context.Background(), "pizza")

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("resolve hung for %v", elapsed)
	}
	if info.Status != models.StatusFallback {
		t.Errorf("expected fallback after timeout, got %s", info.Status)
	}
	if info.ShelfLifeDays != 4 {
		t.Errorf("expected default 4 days for pizza, got %d", info.ShelfLifeDays)
	}
}

func TestResolve_TimeoutHoldsWhenLookupIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			select {
			case <-release:
			case <-time.After(2 * time.Second):
			}
			return []models.Product{{Name: "Too late", Categories: "Cheeses"}}, nil
		},
	}
	r := newTestResolver(lookup)

	start := time.Now()
	info := r.Resolve(context.Background(), "banana")

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("resolve waited %v for a lookup that ignores its context", elapsed)
	}
	if info.Status != models.StatusFallback {
		t.Errorf("expected fallback after timeout, got %s", info.Status)
	}
	if info.ShelfLifeDays != 7 {
		t.Errorf("expected default 7 days for banana, got %d", info.ShelfLifeDays)
	}
}

func TestResolve_PanicFallsBack(t *testing.T) {
	lookup := &fakeLookup{
		SearchFunc: func(ctx context.Context, category string, limit int) ([]models.Product, error) {
			panic("malformed response")
		},
	}
	r := newTestResolver(lookup)

	info := r.Resolve(context.Background(), "apple")

	if info.Status != models.StatusFallback {
		t.Errorf("expected fallback after panic, got %s", info.Status)
	}
	if info.ShelfLifeDays != 30 {
		t.Errorf("expected default 30 days for apple, got %d", info.ShelfLifeDays)
	}
}

func TestResolve_NilLookup(t *testing.T) {
	r := NewResolver(Config{})
	info := r.Resolve(context.Background(), "wine glass")
	if info.Status != models.StatusEstimated || info.ShelfLifeDays != 1095 {
		t.Errorf("expected estimated 1095 days, got %s %d", info.Status, info.ShelfLifeDays)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		categories string
		want       string
	}{
		{"Dairies, Cheeses", "dairy"},
		{"Meats, Sausages", "meat"},
		{"Seafood, Fishes", "meat"},
		{"Snacks, Sweet snacks, Biscuits", "bakery"},
		{"Plant-based foods, Fresh fruits", "produce"},
		{"Canned foods, Canned vegetables", "produce"},
		{"Pickled cucumbers", "preserved"},
		{"Beverages, Alcoholic beverages, Wines, Champagnes", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		if got := classify(tt.categories); got.name != tt.want {
			t.Errorf("classify(%q) = %s, expected %s", tt.categories, got.name, tt.want)
		}
	}
}
