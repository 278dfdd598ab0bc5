// Package mealdb is a client for TheMealDB recipe API.
package mealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foodplanner/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

	defaultTimeout      = 30 * time.Second
	defaultRequestDelay = 100 * time.Millisecond
	maxAttempts         = 3
	backoffInitial      = time.Second
	backoffMax          = 30 * time.Second
)

// ConnectorError reports a failed API call. StatusCode is 0 for transport failures.
type ConnectorError struct {
	Message    string
	StatusCode int
	Response   string
}

func (e *ConnectorError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("mealdb: %s (status %d)", e.Message, e.StatusCode)
	}
	return "mealdb: " + e.Message
}

// Client talks to TheMealDB
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.httpClient = c } }

func WithLogger(l *zap.Logger) Option { return func(cl *Client) { cl.logger = l } }

// WithRequestDelay sets the minimum spacing between requests.
func WithRequestDelay(d time.Duration) Option {
	return func(cl *Client) {
		if d <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetryBackoff overrides the exponential retry intervals.
func WithRetryBackoff(initial, maxInterval time.Duration) Option {
	return func(cl *Client) {
		cl.newBackOff = func() backoff.BackOff { return newExponential(initial, maxInterval) }
	}
}

// NewClient builds a client for baseURL, which already includes the API key
// segment. An empty baseURL uses the public test key.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(defaultRequestDelay), 1),
		logger:     zap.NewNop(),
		newBackOff: func() backoff.BackOff { return newExponential(backoffInitial, backoffMax) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newExponential(initial, maxInterval time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	return b
}

// get performs one paced GET with retries on transport errors and decodes
// the JSON body into out. Status codes >= 400 are not retried.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	target := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Foodplanner/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			detail := string(data)
			if detail == "" {
				detail = "No details"
			}
			if len(detail) > 500 {
				detail = detail[:500]
			}
			return backoff.Permanent(&ConnectorError{
				Message:    "API request failed",
				StatusCode: resp.StatusCode,
				Response:   detail,
			})
		}
		body = data
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		metrics.ScraperRequests.WithLabelValues("mealdb", "error").Inc()
		var connErr *ConnectorError
		if errors.As(err, &connErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("mealdb request failed", zap.String("url", target), zap.Error(err))
			return err
		}
		c.logger.Error("mealdb request failed after retries", zap.String("url", target), zap.Error(err))
		return &ConnectorError{Message: fmt.Sprintf("request failed after %d attempts: %v", maxAttempts, err)}
	}
	metrics.ScraperRequests.WithLabelValues("mealdb", "ok").Inc()

	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("failed to parse mealdb response", zap.String("url", target), zap.Error(err))
	}
	return nil
}

type mealsResponse struct {
	Meals []map[string]any `json:"meals"`
}

func (c *Client) meals(ctx context.Context, endpoint string, params url.Values) ([]Meal, error) {
	var resp mealsResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}
	meals := make([]Meal, 0, len(resp.Meals))
	for _, raw := range resp.Meals {
		meals = append(meals, ParseMeal(raw))
	}
	return meals, nil
}

// Categories lists meal categories
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp struct {
		Categories []Category `json:"categories"`
	}
	if err := c.get(ctx, "categories.php", nil, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("fetched meal categories", zap.Int("count", len(resp.Categories)))
	return resp.Categories, nil
}

// Areas lists cuisine names such as "Italian"
func (c *Client) Areas(ctx context.Context) ([]string, error) {
	var resp struct {
		Meals []struct {
			Area string `json:"strArea"`
		} `json:"meals"`
	}
	if err := c.get(ctx, "list.php", url.Values{"a": {"list"}}, &resp); err != nil {
		return nil, err
	}
	areas := make([]string, 0, len(resp.Meals))
	for _, m := range resp.Meals {
		if m.Area != "" {
			areas = append(areas, m.Area)
		}
	}
	return areas, nil
}

// Ingredients lists every ingredient known to the API
func (c *Client) Ingredients(ctx context.Context) ([]IngredientInfo, error) {
	var resp struct {
		Meals []IngredientInfo `json:"meals"`
	}
	if err := c.get(ctx, "list.php", url.Values{"i": {"list"}}, &resp); err != nil {
		return nil, err
	}
	out := make([]IngredientInfo, 0, len(resp.Meals))
	for _, m := range resp.Meals {
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) SearchByName(ctx context.Context, name string) ([]Meal, error) {
	return c.meals(ctx, "search.php", url.Values{"s": {name}})
}

// SearchByLetter returns meals whose name starts with the first letter of letter.
func (c *Client) SearchByLetter(ctx context.Context, letter string) ([]Meal, error) {
	letter = strings.ToLower(letter)
	if len(letter) > 1 {
		letter = letter[:1]
	}
	return c.meals(ctx, "search.php", url.Values{"f": {letter}})
}

// Lookup returns the meal with id, or nil when it does not exist.
func (c *Client) Lookup(ctx context.Context, id string) (*Meal, error) {
	meals, err := c.meals(ctx, "lookup.php", url.Values{"i": {id}})
	if err != nil || len(meals) == 0 {
		return nil, err
	}
	return &meals[0], nil
}

func (c *Client) Random(ctx context.Context) (*Meal, error) {
	meals, err := c.meals(ctx, "random.php", nil)
	if err != nil || len(meals) == 0 {
		return nil, err
	}
	return &meals[0], nil
}

func (c *Client) filter(ctx context.Context, key, value string) ([]MealSummary, error) {
	var resp struct {
		Meals []MealSummary `json:"meals"`
	}
	if err := c.get(ctx, "filter.php", url.Values{key: {value}}, &resp); err != nil {
		return nil, err
	}
	return resp.Meals, nil
}

func (c *Client) FilterByIngredient(ctx context.Context, ingredient string) ([]MealSummary, error) {
	return c.filter(ctx, "i", ingredient)
}

func (c *Client) FilterByCategory(ctx context.Context, category string) ([]MealSummary, error) {
	return c.filter(ctx, "c", category)
}

func (c *Client) FilterByArea(ctx context.Context, area string) ([]MealSummary, error) {
	return c.filter(ctx, "a", area)
}

// AllMeals walks the letters a..z. Letters that fail are logged and skipped.
func (c *Client) AllMeals(ctx context.Context) ([]Meal, error) {
	var all []Meal
	for letter := 'a'; letter <= 'z'; letter++ {
		meals, err := c.SearchByLetter(ctx, string(letter))
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			c.logger.Warn("failed to fetch meals for letter", zap.String("letter", string(letter)), zap.Error(err))
			continue
		}
		all = append(all, meals...)
	}
	c.logger.Info("fetched all meals", zap.Int("count", len(all)))
	return all, nil
}

// HealthCheck reports whether the API answers.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.Categories(ctx)
	return err == nil
}
