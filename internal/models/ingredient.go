package models

import (
	"time"
)

// Detection is one raw class prediction returned by a detector backend
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Ingredient is a food class kept after filtering, with the highest score seen for it
type Ingredient struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ExpirationStatus tells how an ExpirationInfo was obtained
type ExpirationStatus string

const (
	StatusSuccess   ExpirationStatus = "success"
	StatusEstimated ExpirationStatus = "estimated"
	StatusFallback  ExpirationStatus = "fallback"
)

// ExpirationSource names where the shelf-life figure came from
type ExpirationSource string

const (
	SourceExternal ExpirationSource = "external"
	SourceDefault  ExpirationSource = "default"
)

// ExpirationDates are absolute dates derived at detection time
type ExpirationDates struct {
	PurchaseDate   time.Time `json:"purchase_date"`
	ExpirationDate time.Time `json:"expiration_date"`
	ShelfLifeDays  int       `json:"shelf_life_days"`
}

// ExpirationInfo holds shelf-life and storage guidance for one food item
type ExpirationInfo struct {
	FoodItem      string           `json:"food_item"`
	ProductName   string           `json:"product_name"`
	Brand         *string          `json:"brand,omitempty"`
	ShelfLifeDays int              `json:"shelf_life_days"`
	StorageAdvice string           `json:"storage_advice"`
	IsEstimated   bool             `json:"is_estimated"`
	Status        ExpirationStatus `json:"status"`
	Source        ExpirationSource `json:"source"`
	Error         string           `json:"error,omitempty"`
	Dates         *ExpirationDates `json:"dates,omitempty"`
}

// EnrichedIngredient pairs an ingredient with its expiration data
type EnrichedIngredient struct {
	Ingredient
	Expiration ExpirationInfo `json:"expiration"`
}

// DetectionRecord is the persisted outcome of one detection run
type DetectionRecord struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	Ingredients         []EnrichedIngredient `json:"ingredients"`
	ImageFile           string               `json:"image_file"`
	DetectionConfidence float64              `json:"detection_confidence"`
	IngredientsCount    int                  `json:"ingredients_count"`
	DetectedAt          time.Time            `json:"detected_at"`
}

// Product is a candidate returned by the product database
type Product struct {
	Name           string `json:"name,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Categories     string `json:"categories,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	BestBeforeDate string `json:"best_before_date,omitempty"`
}

// Image is a decoded upload handed to a detector
type Image struct {
	Name     string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}
