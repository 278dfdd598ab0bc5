package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foodplanner/backend/internal/models"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// Match types
const (
	MatchExact   = "exact"
	MatchSynonym = "synonym"
	MatchFuzzy   = "fuzzy"
)

const (
	exactScore    = 1.0
	synonymScore  = 0.95
	partialScore  = 0.55
	maxFuzzyScore = 0.95
	highFuzzy     = 90.0
	mediumFuzzy   = 75.0
	lowFuzzy      = 60.0
	candidatePool = 200
	defaultTopK   = 5
)

// Match is one ingredient-to-product candidate
type Match struct {
	IngredientName  string  `json:"ingredient_name"`
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	ConfidenceScore float64 `json:"confidence_score"`
	MatchType       string  `json:"match_type"`
	MatchedTerm     string  `json:"matched_term"`
}

// ProductSource loads the products that ingredients are matched against.
type ProductSource interface {
	Products(ctx context.Context) ([]models.Product, error)
}

// CandidateRanker narrows fuzzy scoring to the product names closest to a vector.
// Sources that cannot rank return ok=false.
type CandidateRanker interface {
	NearestNames(ctx context.Context, vec pgvector.Vector, limit int) (names []string, ok bool, err error)
}

// Matcher finds products for ingredient names. The product list is cached
// until Invalidate is called or the cache TTL passes.
type Matcher struct {
	source ProductSource
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cache    map[string][]models.Product
	names    []string
	loadedAt time.Time
}

type MatcherOption func(*Matcher)

// WithCacheTTL reloads products once the cache is older than ttl. Zero keeps
// the cache until Invalidate.
func WithCacheTTL(ttl time.Duration) MatcherOption {
	return func(m *Matcher) { m.ttl = ttl }
}

func NewMatcher(source ProductSource, logger *zap.Logger, opts ...MatcherOption) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Matcher{source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) fresh() bool {
	return m.cache != nil && (m.ttl <= 0 || m.now().Sub(m.loadedAt) < m.ttl)
}

// Invalidate drops the cached products; the next match reloads them.
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	m.cache = nil
	m.names = nil
	m.mu.Unlock()
}

func (m *Matcher) load(ctx context.Context) (map[string][]models.Product, []string, error) {
	m.mu.RLock()
	cache, names, ok := m.cache, m.names, m.fresh()
	m.mu.RUnlock()
	if ok {
		return cache, names, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fresh() {
		return m.cache, m.names, nil
	}
	names = nil

	products, err := m.source.Products(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load products: %w", err)
	}
	cache = make(map[string][]models.Product)
	for _, p := range products {
		key := foldName(p.Name)
		if _, ok := cache[key]; !ok {
			names = append(names, key)
		}
		cache[key] = append(cache[key], p)
	}
	sort.Strings(names)
	m.cache, m.names, m.loadedAt = cache, names, m.now()
	m.logger.Info("loaded products into matching cache", zap.Int("products", len(products)))
	return cache, names, nil
}

// Match returns up to topK products for ingredient with confidence >= minConfidence,
// best first. topK <= 0 means 5.
func (m *Matcher) Match(ctx context.Context, ingredient string, topK int, minConfidence float64) ([]Match, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	normalized := NormalizeIngredient(ingredient)
	if normalized == "" {
		return []Match{}, nil
	}

	cache, names, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	terms := Synonyms(normalized)
	c := newCollector(ingredient)

	for _, term := range terms {
		matchType, score := MatchExact, exactScore
		if term != normalized {
			matchType, score = MatchSynonym, synonymScore
		}
		for _, p := range cache[term] {
			c.add(p, score, matchType, term)
		}
	}

	for _, term := range terms {
		for _, scored := range m.extract(ctx, term, names, topK*2) {
			if scored.score < lowFuzzy {
				continue
			}
			conf := fuzzyConfidence(scored.score)
			for _, p := range cache[scored.name] {
				c.add(p, conf, MatchFuzzy, scored.name)
			}
		}
	}

	if words := strings.Fields(normalized); len(c.matches) < topK && len(words) > 1 {
		main := words[len(words)-1]
	partial:
		for _, name := range names {
			if !strings.Contains(name, main) || c.terms[name] {
				continue
			}
			for _, p := range cache[name] {
				c.add(p, partialScore, MatchFuzzy, name)
				if len(c.matches) >= topK*2 {
					break partial
				}
			}
		}
	}

	out := make([]Match, 0, len(c.matches))
	for _, match := range c.matches {
		if match.ConfidenceScore >= minConfidence {
			out = append(out, match)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type scoredName struct {
	name  string
	score float64
}

// extract scores term against the candidate names and keeps the best limit.
func (m *Matcher) extract(ctx context.Context, term string, names []string, limit int) []scoredName {
	candidates := names
	if ranker, ok := m.source.(CandidateRanker); ok {
		nearest, ranked, err := ranker.NearestNames(ctx, NameVector(term), candidatePool)
		switch {
		case err != nil:
			m.logger.Warn("vector pre-ranking failed, scoring all products", zap.String("term", term), zap.Error(err))
		case ranked:
			candidates = foldNames(nearest)
		}
	}

	scored := make([]scoredName, 0, len(candidates))
	for _, name := range candidates {
		scored = append(scored, scoredName{name: name, score: TokenSortRatio(term, name)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// foldNames folds ranked names to cache keys, keeping the first of duplicates.
func foldNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := foldName(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func fuzzyConfidence(score float64) float64 {
	var conf float64
	switch {
	case score >= highFuzzy:
		conf = 0.85 + (score-highFuzzy)*0.01
	case score >= mediumFuzzy:
		conf = 0.70 + (score-mediumFuzzy)*0.01
	default:
		conf = 0.50 + (score-lowFuzzy)*0.013
	}
	return min(conf, maxFuzzyScore)
}

// collector dedupes candidates by product id, keeping the highest score.
type collector struct {
	ingredient string
	matches    []Match
	index      map[string]int
	terms      map[string]bool
}

func newCollector(ingredient string) *collector {
	return &collector{ingredient: ingredient, index: map[string]int{}, terms: map[string]bool{}}
}

func (c *collector) add(p models.Product, score float64, matchType, term string) {
	c.terms[term] = true
	if i, ok := c.index[p.ID]; ok {
		if score > c.matches[i].ConfidenceScore {
			c.matches[i].ConfidenceScore = score
			c.matches[i].MatchType = matchType
			c.matches[i].MatchedTerm = term
		}
		return
	}
	c.index[p.ID] = len(c.matches)
	c.matches = append(c.matches, Match{
		IngredientName:  c.ingredient,
		ProductID:       p.ID,
		ProductName:     p.Name,
		ConfidenceScore: score,
		MatchType:       matchType,
		MatchedTerm:     term,
	})
}
