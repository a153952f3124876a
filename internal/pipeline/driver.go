// Package pipeline runs one detect, filter, enrich and persist cycle.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/franckalain/smartplate/internal/detection"
	"github.com/franckalain/smartplate/internal/models"
	"github.com/franckalain/smartplate/internal/storage"
	"github.com/google/uuid"
)

// Detector maps an image to raw label/score predictions.
type Detector interface {
	Detect(ctx context.Context, img models.Image) ([]models.Detection, error)
}

// Enricher attaches expiration data to ingredients without failing.
type Enricher interface {
	Enrich(ctx context.Context, ingredients []models.Ingredient, now time.Time) []models.EnrichedIngredient
}

// Store persists detection records.
type Store interface {
	AppendDetection(ctx context.Context, rec *models.DetectionRecord) error
	ListDetectionsByUser(ctx context.Context, userID string) ([]*models.DetectionRecord, error)
	ListDetections(ctx context.Context) ([]*models.DetectionRecord, error)
}

// Config wires a Driver to its collaborators.
type Config struct {
	Source   storage.Source
	Detector Detector
	Enricher Enricher
	Store    Store
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Driver orchestrates a detection request end to end.
type Driver struct {
	source   storage.Source
	detector Detector
	enricher Enricher
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Result is a detection record plus the outcome of persisting it.
type Result struct {
	Record    *models.DetectionRecord
	SavedToDB bool
	SaveError string
}

// NewDriver creates a driver.
func NewDriver(cfg Config) *Driver {
	d := &Driver{
		source:   cfg.Source,
		detector: cfg.Detector,
		enricher: cfg.Enricher,
		store:    cfg.Store,
		logger:   cfg.Logger,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.New().String() }
	}
	return d
}

// Detect runs the pipeline on the user's most recent upload.
func (d *Driver) Detect(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return nil, &InputError{Kind: ErrInvalidUser}
	}
	obj, err := d.source.Latest(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, &InputError{Kind: ErrNoImage, Err: err}
		case errors.Is(err, storage.ErrInvalidUser):
			return nil, &InputError{Kind: ErrInvalidUser, Err: err}
		}
		return nil, fmt.Errorf("fetch latest image: %w", err)
	}
	return d.Run(ctx, userID, obj)
}

// Run decodes obj, detects and enriches its ingredients and stores the
// record. A failed write is reported on the Result, not as an error.
func (d *Driver) Run(ctx context.Context, userID string, obj *storage.Object) (*Result, error) {
	if userID == "" {
		return nil, &InputError{Kind: ErrInvalidUser}
	}
	logger := d.logger.With("user_id", userID, "image_file", obj.Key)

	img, err := decode(obj)
	if err != nil {
		return nil, err
	}
	logger.Debug("decoded image",
		"mime_type", img.MIMEType,
		"width", img.Width,
		"height", img.Height,
		"uploaded_at", obj.ModifiedAt,
	)

	detections, err := d.detector.Detect(ctx, img)
	if err != nil {
		return nil, &DetectorError{Err: err}
	}

	ingredients := detection.Filter(detections)
	now := d.now()
	logger.Debug("filtered detections", "raw", len(detections), "ingredients", len(ingredients))

	enriched := []models.EnrichedIngredient{}
	if len(ingredients) > 0 {
		enriched = d.enricher.Enrich(ctx, ingredients, now)
	}

	rec := &models.DetectionRecord{
		ID:                  d.newID(),
		UserID:              userID,
		Ingredients:         enriched,
		ImageFile:           obj.Key,
		DetectionConfidence: detection.MaxScore(ingredients),
		IngredientsCount:    len(enriched),
		DetectedAt:          now,
	}

	res := &Result{Record: rec}
	// The caller still gets the detection if the write fails or the
	// request was cancelled during enrichment.
	if err := d.store.AppendDetection(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to save detection", "detection_id", rec.ID, "error", err)
		res.SaveError = err.Error()
	} else {
		res.SavedToDB = true
	}

	logger.Info("detection complete",
		"detection_id", rec.ID,
		"ingredients", rec.IngredientsCount,
		"confidence", rec.DetectionConfidence,
		"saved", res.SavedToDB,
	)
	return res, nil
}

// History returns a user's detections, most recent first.
func (d *Driver) History(ctx context.Context, userID string) ([]*models.DetectionRecord, error) {
	if userID == "" {
		return nil, &InputError{Kind: ErrInvalidUser}
	}
	return d.store.ListDetectionsByUser(ctx, userID)
}

// AllHistory returns every detection, most recent first.
func (d *Driver) AllHistory(ctx context.Context) ([]*models.DetectionRecord, error) {
	return d.store.ListDetections(ctx)
}

// Upload stores a new image for the user and runs detection on it.
func (d *Driver) Upload(ctx context.Context, userID, contentType string, data []byte) (*Result, error) {
	if userID == "" {
		return nil, &InputError{Kind: ErrInvalidUser}
	}
	if _, err := decode(&storage.Object{Data: data}); err != nil {
		return nil, err
	}
	key, err := d.source.Put(ctx, userID, contentType, data)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidUser) {
			return nil, &InputError{Kind: ErrInvalidUser, Err: err}
		}
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return d.Run(ctx, userID, &storage.Object{Key: key, Data: data, ContentType: contentType})
}

// MaxImagePixels bounds the decoded size of an image. The header is checked
// before any pixel data is allocated.
const MaxImagePixels = 50_000_000

func decode(obj *storage.Object) (models.Image, error) {
	if len(obj.Data) == 0 {
		return models.Image{}, &InputError{Kind: ErrInvalidImage, Err: errors.New("empty file")}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil {
		return models.Image{}, &InputError{Kind: ErrInvalidImage, Err: err}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return models.Image{}, &InputError{
			Kind: ErrInvalidImage,
			Err:  fmt.Errorf("%dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, MaxImagePixels),
		}
	}
	if _, _, err := image.Decode(bytes.NewReader(obj.Data)); err != nil {
		return models.Image{}, &InputError{Kind: ErrInvalidImage, Err: err}
	}
	return models.Image{
		Name:     obj.Key,
		Data:     obj.Data,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
