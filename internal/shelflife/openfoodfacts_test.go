package shelflife

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenFoodFacts_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi/search.pl" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("search_terms") != "hot-dogs" {
			t.Errorf("unexpected search terms %q", q.Get("search_terms"))
		}
		if q.Get("page_size") != "2" || q.Get("json") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 3, "products": [
			{"product_name": "Frankfurters", "brands": "Oscar", "categories": "Meats, Sausages", "expiration_date": "12/07/2024"},
			{"product_name": "Veggie dogs", "categories": "Meat analogues"},
			{"product_name": "Third"}
		]}`))
	}))
	defer srv.Close()

	client := NewOpenFoodFacts(srv.URL+"/", "test-agent", time.Second)
	products, err := client.Search(context.Background(), "hot-dogs", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Name != "Frankfurters" || products[0].Brand != "Oscar" || products[0].ExpirationDate != "12/07/2024" {
		t.Errorf("unexpected first product %+v", products[0])
	}
}

func TestOpenFoodFacts_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("rate limited"))
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"products": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewOpenFoodFacts(srv.URL, "", time.Second).Search(context.Background(), "apples", 5)
			var lookupErr *LookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("expected *LookupError, got %v", err)
			}
			if lookupErr.Category != "apples" {
				t.Errorf("expected category apples, got %q", lookupErr.Category)
			}
		})
	}
}

func TestOpenFoodFacts_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenFoodFacts(url, "", time.Second).Search(context.Background(), "apples", 5)
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *LookupError, got %v", err)
	}
}

func TestResolver_WithOpenFoodFacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products": [{"product_name": "Organic Carrots", "categories": "Plant-based foods, Vegetables, Root vegetables"}]}`))
	}))
	defer srv.Close()

	r := newTestResolver(NewOpenFoodFacts(srv.URL, "", time.Second))
	info := r.Resolve(context.Background(), "carrot")

	if info.ProductName != "Organic Carrots" {
		t.Errorf("expected Organic Carrots, got %q", info.ProductName)
	}
	if info.ShelfLifeDays != 14 {
		t.Errorf("expected produce shelf life 14, got %d", info.ShelfLifeDays)
	}
}
