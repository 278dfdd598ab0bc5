package scrapers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
)

const (
	Rema1000BaseURL = "https://shop.rema1000.dk"
	Rema1000StoreID = "rema1000-main"
	Rema1000Brand   = "rema1000"
	Rema1000Name    = "REMA 1000"

	// OffersCategory lists the weekly flyer items
	OffersCategory = "avisvarer"

	maxBreakerBackoff = 300 * time.Second
	categoryJitter    = 10 * time.Second
	offerValidDays    = 7
)

var rema1000Categories = []struct{ slug, name string }{
	{"avisvarer", "Avisvarer"},
	{"brod-bavinchi", "Brød & Bavinchi"},
	{"frugt-gront", "Frugt & Grønt"},
	{"nemt-hurtigt", "Nemt & Hurtigt"},
	{"kod-fisk-fjerkrae", "Kød, Fisk & Fjerkræ"},
	{"kol", "Køl"},
	{"ost-mv", "Ost m.v."},
	{"frost", "Frost"},
	{"mejeri", "Mejeri"},
	{"kolonial", "Kolonial"},
	{"drikkevarer", "Drikkevarer"},
	{"husholdning", "Husholdning"},
	{"baby-og-smaborn", "Baby og Småbørn"},
	{"personlig-pleje", "Personlig Pleje"},
	{"slik", "Slik"},
	{"kiosk", "Kiosk"},
}

var (
	itemIDRe    = regexp.MustCompile(`/item/(\d+)/`)
	perUnitRe   = regexp.MustCompile(`(?i)per\s+(\w+)`)
	nonDigitsRe = regexp.MustCompile(`[^0-9]`)
)

// ErrCancelled is returned by ScrapeAll when the caller asked it to stop
var ErrCancelled = errors.New("scrape cancelled")

// Rema1000 scrapes the REMA 1000 web shop listings
type Rema1000 struct {
	baseURL string
	client  *Client
	cfg     config.ScrapingConfig
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// RemaOption customizes a Rema1000 scraper
type RemaOption func(*Rema1000)

func WithBaseURL(u string) RemaOption {
	return func(s *Rema1000) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithSleep replaces the delay function used between categories and after errors.
func WithSleep(f func(context.Context, time.Duration) error) RemaOption {
	return func(s *Rema1000) { s.sleep = f }
}

func WithClock(now func() time.Time) RemaOption {
	return func(s *Rema1000) { s.now = now }
}

func NewRema1000(cfg config.ScrapingConfig, logger *zap.Logger, client *Client, opts ...RemaOption) *Rema1000 {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = NewClient(Rema1000Brand, cfg, logger)
	}
	s := &Rema1000{
		baseURL: Rema1000BaseURL,
		client:  client,
		cfg:     cfg,
		logger:  logger.With(zap.String("scraper", Rema1000Brand)),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Rema1000) StoreID() string   { return Rema1000StoreID }
func (s *Rema1000) StoreName() string { return Rema1000Name }
func (s *Rema1000) Brand() string     { return Rema1000Brand }

func (s *Rema1000) Categories() []Category {
	out := make([]Category, 0, len(rema1000Categories))
	for _, c := range rema1000Categories {
		out = append(out, Category{ID: c.slug, Name: c.name, Slug: c.slug, URL: s.baseURL + "/" + c.slug})
	}
	return out
}

// CategoryName returns the display name of slug, or slug itself when unknown.
func CategoryName(slug string) string {
	for _, c := range rema1000Categories {
		if c.slug == slug {
			return c.name
		}
	}
	return slug
}

// ScrapeProducts fetches a category page and extracts its product cards.
func (s *Rema1000) ScrapeProducts(ctx context.Context, category string, limit int) ([]Product, error) {
	url := s.baseURL
	categoryName := ""
	if category != "" {
		url += "/" + category
		categoryName = CategoryName(category)
	}
	s.logger.Info("scraping products", zap.String("url", url), zap.Int("limit", limit))

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape products: %w", err)
	}
	products, err := s.parseProducts(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse products: %w", err)
	}
	for i := range products {
		products[i].Category = categoryName
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}

	s.logger.Info("scraped products", zap.String("category", category), zap.Int("count", len(products)))
	return products, nil
}

func (s *Rema1000) parseProducts(body []byte) ([]Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	products := []Product{}
	doc.Find(".product").Each(func(_ int, el *goquery.Selection) {
		img := el.Find("img").First()
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		m := itemIDRe.FindStringSubmatch(src)
		title := strings.TrimSpace(el.Find(".title").First().Text())
		if m == nil || title == "" {
			return
		}

		p := Product{
			ID:           m[1],
			Name:         title,
			Price:        parseOere(el.Find(".price-normal").First().Text()),
			PricePerUnit: strings.TrimSpace(el.Find(".price-per-unit").First().Text()),
			ImageURL:     src,
			IsOffer:      el.Find(".avisvare").Length() > 0,
			URL:          s.baseURL + "/produkt/" + m[1],
		}

		extra := strings.TrimSpace(el.Find(".extra").First().Text())
		p.Description = extra
		p.Unit, p.Origin = splitExtra(extra)
		if p.Unit == "" {
			if um := perUnitRe.FindStringSubmatch(p.PricePerUnit); um != nil {
				p.Unit = um[1]
			}
		}

		if before := parseOere(el.Find(".price-before").First().Text()); p.IsOffer && before > p.Price {
			offer := p.Price
			p.OfferPrice = &offer
			p.Price = before
		}
		products = append(products, p)
	})
	return products, nil
}

// parseOere reads a price printed in øre, e.g. "1500" or "15.00", as kroner.
func parseOere(text string) float64 {
	digits := nonDigitsRe.ReplaceAllString(text, "")
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return float64(v) / 100
}

// splitExtra splits "750 GR. / GILLELEJE HAVN" into unit and origin.
func splitExtra(extra string) (unit, origin string) {
	if !strings.Contains(extra, "/") {
		return extra, ""
	}
	parts := strings.Split(extra, "/")
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// ScrapeDiscounts turns flyer items with a known shelf price into discounts
// valid for the current week.
func (s *Rema1000) ScrapeDiscounts(ctx context.Context) ([]Discount, error) {
	products, err := s.ScrapeProducts(ctx, OffersCategory, 0)
	if err != nil {
		return nil, err
	}
	from := models.Day(s.now())
	to := from.AddDate(0, 0, offerValidDays-1)

	discounts := []Discount{}
	for _, p := range products {
		if !p.IsOffer || p.OfferPrice == nil || *p.OfferPrice >= p.Price {
			continue
		}
		discounts = append(discounts, Discount{
			ProductID:     p.ID,
			OriginalPrice: p.Price,
			DiscountPrice: *p.OfferPrice,
			ValidFrom:     from,
			ValidTo:       to,
			Description:   CategoryName(OffersCategory),
		})
	}
	return discounts, nil
}

// HealthCheck loads the shop front page and looks for the brand in its title.
func (s *Rema1000) HealthCheck(ctx context.Context) bool {
	body, err := s.client.Get(ctx, s.baseURL)
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(doc.Find("title").First().Text()), "REMA")
}

// Progress tracks a full scrape
type Progress struct {
	CategoriesTotal     int      `json:"categories_total"`
	CategoriesCompleted int      `json:"categories_completed"`
	CurrentCategory     string   `json:"current_category"`
	ProductsScraped     int      `json:"products_scraped"`
	Errors              []string `json:"errors"`
}

// FullScrapeOptions controls ScrapeAll
type FullScrapeOptions struct {
	// Categories to scrape, all when empty.
	Categories []string
	// OnCategory receives the products of each category. An error stops the scrape.
	OnCategory func(ctx context.Context, category string, products []Product) error
	// OnProgress is called after every category with the slugs still to do.
	OnProgress func(p Progress, remaining []string)
	// Cancelled is polled before each category.
	Cancelled func(ctx context.Context) bool
}

// ScrapeAll walks categories one by one. Consecutive failures back off
// exponentially and trip the circuit breaker at the configured limit.
func (s *Rema1000) ScrapeAll(ctx context.Context, opts FullScrapeOptions) (*Progress, error) {
	slugs := opts.Categories
	if len(slugs) == 0 {
		for _, c := range rema1000Categories {
			slugs = append(slugs, c.slug)
		}
	}
	progress := &Progress{CategoriesTotal: len(slugs), Errors: []string{}}
	br := newBreaker(s.cfg)

	s.logger.Info("starting full scrape", zap.Int("categories", len(slugs)))
	for i, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return progress, err
		}
		if opts.Cancelled != nil && opts.Cancelled(ctx) {
			s.logger.Info("full scrape cancelled", zap.String("category", slug))
			return progress, ErrCancelled
		}
		progress.CurrentCategory = slug

		products, err := s.ScrapeProducts(ctx, slug, 0)
		if err != nil {
			msg := fmt.Sprintf("failed to scrape category %s: %v", slug, err)
			s.logger.Warn("category failed", zap.String("category", slug),
				zap.Int("consecutive_errors", br.consecutive+1), zap.Error(err))
			progress.Errors = append(progress.Errors, msg)
			if br.failure() {
				return progress, fmt.Errorf("%w after %d errors: %v", ErrCircuitOpen, br.consecutive, err)
			}
			if err := s.sleep(ctx, br.next()); err != nil {
				return progress, err
			}
		} else {
			br.success()
			progress.ProductsScraped += len(products)
			if opts.OnCategory != nil {
				if err := opts.OnCategory(ctx, slug, products); err != nil {
					return progress, err
				}
			}
		}

		progress.CategoriesCompleted++
		if opts.OnProgress != nil {
			opts.OnProgress(*progress, slugs[i+1:])
		}

		if i < len(slugs)-1 && s.cfg.CategoryDelay > 0 {
			delay := s.cfg.CategoryDelay + rand.N(categoryJitter)
			s.logger.Info("waiting before next category", zap.Duration("delay", delay))
			if err := s.sleep(ctx, delay); err != nil {
				return progress, err
			}
		}
	}

	s.logger.Info("full scrape completed",
		zap.Int("categories", progress.CategoriesCompleted),
		zap.Int("products", progress.ProductsScraped),
		zap.Int("errors", len(progress.Errors)))
	return progress, nil
}

type breaker struct {
	limit       int
	consecutive int
	minDelay    time.Duration
	current     time.Duration
	factor      float64
}

func newBreaker(cfg config.ScrapingConfig) *breaker {
	factor := cfg.BackoffFactor
	if factor <= 1 {
		factor = 2
	}
	return &breaker{
		limit:    max(cfg.MaxConsecutiveErrors, 1),
		minDelay: cfg.FullScrapeMinDelay,
		current:  cfg.FullScrapeMinDelay,
		factor:   factor,
	}
}

// failure records an error and reports whether the breaker tripped.
func (b *breaker) failure() bool {
	b.consecutive++
	return b.consecutive >= b.limit
}

func (b *breaker) success() {
	b.consecutive = 0
	b.current = b.minDelay
}

// next returns the current backoff and grows it for the following failure.
func (b *breaker) next() time.Duration {
	d := b.current
	b.current = min(time.Duration(float64(b.current)*b.factor), maxBreakerBackoff)
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewDefaultRegistry registers the scrapers this backend ships with.
func NewDefaultRegistry(cfg config.ScrapingConfig, logger *zap.Logger) *Registry {
	r := NewRegistry()
	rema := func() Scraper { return NewRema1000(cfg, logger, nil) }
	r.Register(Rema1000Brand, rema)
	r.Register(Rema1000StoreID, rema)
	return r
}
