package scrapers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a full scrape stops after too many consecutive errors
var ErrCircuitOpen = errors.New("circuit breaker tripped")

// Product is one product as listed by a store
type Product struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	OfferPrice   *float64 `json:"offer_price,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	PricePerUnit string   `json:"price_per_unit,omitempty"`
	EAN          string   `json:"ean,omitempty"`
	Category     string   `json:"category,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	Description  string   `json:"description,omitempty"`
	Origin       string   `json:"origin,omitempty"`
	URL          string   `json:"url,omitempty"`
	IsOffer      bool     `json:"is_offer"`
}

// Discount is a time-limited offer on a product
type Discount struct {
	ProductID          string    `json:"product_id"`
	OriginalPrice      float64   `json:"original_price"`
	DiscountPrice      float64   `json:"discount_price"`
	DiscountPercentage *float64  `json:"discount_percentage,omitempty"`
	ValidFrom          time.Time `json:"valid_from"`
	ValidTo            time.Time `json:"valid_to"`
	Description        string    `json:"description,omitempty"`
}

// Percentage returns the given percentage or derives it from the prices.
func (d *Discount) Percentage() float64 {
	if d.DiscountPercentage != nil {
		return *d.DiscountPercentage
	}
	if d.OriginalPrice <= 0 {
		return 0
	}
	return (d.OriginalPrice - d.DiscountPrice) / d.OriginalPrice * 100
}

// Category is a browsable product section of a store
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// Scraper fetches a single store chain
type Scraper interface {
	StoreID() string
	StoreName() string
	Brand() string
	Categories() []Category
	// ScrapeProducts lists products of a category, or the front page when
	// category is empty. limit <= 0 means no limit.
	ScrapeProducts(ctx context.Context, category string, limit int) ([]Product, error)
	ScrapeDiscounts(ctx context.Context) ([]Discount, error)
	HealthCheck(ctx context.Context) bool
}

// Factory builds a scraper
type Factory func() Scraper

// Registry resolves store ids to scrapers
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	keys      []string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a store id or brand key to a factory.
func (r *Registry) Register(key string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key = strings.ToLower(key)
	if _, ok := r.factories[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.factories[key] = f
}

// ForStore looks up storeID directly, then by a registered key contained in it.
func (r *Registry) ForStore(storeID string) (Scraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := strings.ToLower(storeID)
	if f, ok := r.factories[id]; ok {
		return f(), true
	}
	for _, key := range r.keys {
		if strings.Contains(id, key) {
			return r.factories[key](), true
		}
	}
	return nil, false
}

// Available lists the registered keys, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := slices.Clone(r.keys)
	slices.Sort(keys)
	return keys
}
