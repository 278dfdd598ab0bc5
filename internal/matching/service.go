package matching

import (
	"context"
	"fmt"

	"github.com/foodplanner/backend/internal/metrics"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	storeTopK          = 3
	storeMinConfidence = 0.6
	computeBatchSize   = 50
	unmatchedLimit     = 10000
)

// ComputeResult summarizes a ComputeAll pass
type ComputeResult struct {
	TotalIngredients    int `json:"total_ingredients"`
	IngredientsMatched  int `json:"ingredients_matched"`
	TotalMatchesCreated int `json:"total_matches_created"`
	IngredientsNoMatch  int `json:"ingredients_no_match"`
	Errors              int `json:"errors"`
}

// Service persists matches as IngredientMatch rows
type Service struct {
	db      *gorm.DB
	matcher *Matcher
	logger  *zap.Logger
}

func NewService(db *gorm.DB, matcher *Matcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, matcher: matcher, logger: logger}
}

func (s *Service) Matcher() *Matcher { return s.matcher }

// MatchAndStore replaces the stored matches of ingredient with the current best
// ones. topK <= 0 means 3; minConfidence <= 0 means 0.6.
func (s *Service) MatchAndStore(ctx context.Context, ingredient string, topK int, minConfidence float64) ([]Match, error) {
	if topK <= 0 {
		topK = storeTopK
	}
	if minConfidence <= 0 {
		minConfidence = storeMinConfidence
	}

	matches, err := s.matcher.Match(ctx, ingredient, topK, minConfidence)
	if err != nil {
		return nil, err
	}

	key := models.IngredientKey(ingredient)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ingredient_name = ?", key).Delete(&models.IngredientMatch{}).Error; err != nil {
			return err
		}
		for _, m := range matches {
			row := models.IngredientMatch{
				IngredientName:  key,
				ProductID:       m.ProductID,
				ConfidenceScore: m.ConfidenceScore,
				MatchType:       m.MatchType,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store matches for %q: %w", ingredient, err)
	}

	metrics.MatchesCreated.Add(float64(len(matches)))
	return matches, nil
}

// ComputeAll matches every ingredient that has no stored match yet.
func (s *Service) ComputeAll(ctx context.Context, topK int, minConfidence float64) (*ComputeResult, error) {
	s.matcher.Invalidate()

	var unmatched []string
	err := s.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where("normalized_name NOT IN (?)", s.db.Model(&models.IngredientMatch{}).Select("ingredient_name")).
		Order("normalized_name").
		Limit(unmatchedLimit).
		Pluck("normalized_name", &unmatched).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched ingredients: %w", err)
	}
	s.logger.Info("found unmatched ingredients", zap.Int("count", len(unmatched)))

	result := &ComputeResult{TotalIngredients: len(unmatched)}
	for start := 0; start < len(unmatched); start += computeBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+computeBatchSize, len(unmatched))
		for _, name := range unmatched[start:end] {
			matches, err := s.MatchAndStore(ctx, name, topK, minConfidence)
			switch {
			case err != nil:
				s.logger.Error("error matching ingredient", zap.String("ingredient", name), zap.Error(err))
				result.Errors++
			case len(matches) > 0:
				result.IngredientsMatched++
				result.TotalMatchesCreated += len(matches)
			default:
				result.IngredientsNoMatch++
			}
		}
		s.logger.Info("processed ingredients", zap.Int("done", end), zap.Int("total", len(unmatched)))
	}
	return result, nil
}
