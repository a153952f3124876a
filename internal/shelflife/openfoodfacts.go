package shelflife

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franckalain/smartplate/internal/models"
)

const (
	DefaultOpenFoodFactsURL = "https://world.openfoodfacts.org"
	defaultUserAgent        = "SmartPlate/1.0"
)

// OpenFoodFacts queries the Open Food Facts search API.
type OpenFoodFacts struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewOpenFoodFacts creates a client. Empty values fall back to the public API defaults.
func NewOpenFoodFacts(baseURL, userAgent string, timeout time.Duration) *OpenFoodFacts {
	if baseURL == "" {
		baseURL = DefaultOpenFoodFactsURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenFoodFacts{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Products []struct {
		ProductName    string `json:"product_name"`
		Brands         string `json:"brands"`
		Categories     string `json:"categories"`
		ExpirationDate string `json:"expiration_date"`
		BestBeforeDate string `json:"best_before_date"`
	} `json:"products"`
}

// Search returns up to limit products matching the category.
func (o *OpenFoodFacts) Search(ctx context.Context, category string, limit int) ([]models.Product, error) {
	q := url.Values{}
	q.Set("search_terms", category)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", strconv.Itoa(limit))
	u := o.baseURL + "/cgi/search.pl?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &LookupError{Category: category, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &LookupError{Category: category, Err: fmt.Errorf("failed to call search API: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LookupError{Category: category, Err: fmt.Errorf("failed to read search response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &LookupError{Category: category, Err: fmt.Errorf("search API error %d: %s", resp.StatusCode, string(body))}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &LookupError{Category: category, Err: fmt.Errorf("failed to parse search JSON: %w", err)}
	}

	products := make([]models.Product, 0, len(sr.Products))
	for _, p := range sr.Products {
		if len(products) == limit {
			break
		}
		products = append(products, models.Product{
			Name:           p.ProductName,
			Brand:          p.Brands,
			Categories:     p.Categories,
			ExpirationDate: p.ExpirationDate,
			BestBeforeDate: p.BestBeforeDate,
		})
	}
	return products, nil
}
