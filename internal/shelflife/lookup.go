package shelflife

import (
	"context"
	"fmt"

	"github.com/franckalain/smartplate/internal/models"
)

// ProductLookup searches an external product database.
type ProductLookup interface {
	Search(ctx context.Context, category string, limit int) ([]models.Product, error)
}

// LookupError wraps any failure of the product database.
type LookupError struct {
	Category string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("product lookup for %q: %v", e.Category, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
