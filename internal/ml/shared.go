package ml

import (
	"context"
	"fmt"
	"sync"

	"github.com/franckalain/smartplate/internal/models"
)

// Shared wraps a Model so that it is loaded exactly once, on first use, and
// then served to any number of concurrent callers. A failed load is
// remembered and returned to every later caller.
type Shared struct {
	model Model
	once  sync.Once
	err   error
}

// NewShared wraps model without loading it.
func NewShared(model Model) *Shared {
	return &Shared{model: model}
}

// Load loads the model if it has not been loaded yet.
func (s *Shared) Load(ctx context.Context) error {
	s.once.Do(func() {
		// The first caller's cancellation must not poison every later request.
		s.err = s.model.Load(context.WithoutCancel(ctx))
	})
	if s.err != nil {
		return fmt.Errorf("failed to load model: %w", s.err)
	}
	return nil
}

// Detect loads the model if needed and runs it on img.
func (s *Shared) Detect(ctx context.Context, img models.Image) ([]models.Detection, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s.model.Detect(ctx, img)
}
