package matching

import (
	"context"
	"fmt"

	"github.com/foodplanner/backend/internal/models"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// DBSource reads products through gorm. On Postgres it also ranks names by
// pgvector cosine distance over the stored name vectors.
type DBSource struct {
	db *gorm.DB
}

func NewDBSource(db *gorm.DB) *DBSource {
	return &DBSource{db: db}
}

func (s *DBSource) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Select("id", "store_id", "name", "price", "discount_price", "has_active_discount").
		Where("name <> ''").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// NearestNames returns the limit names closest to vec, followed by every
// name that has no vector yet so fresh products stay matchable.
func (s *DBSource) NearestNames(ctx context.Context, vec pgvector.Vector, limit int) ([]string, bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return nil, false, nil
	}

	var ranked []string
	err := s.db.WithContext(ctx).Raw(
		`SELECT name FROM products WHERE name_vector IS NOT NULL ORDER BY name_vector <=> ? LIMIT ?`,
		vec, limit,
	).Scan(&ranked).Error
	if err != nil {
		return nil, false, fmt.Errorf("nearest product names: %w", err)
	}
	if len(ranked) == 0 {
		// vectors not populated yet
		return nil, false, nil
	}

	var unvectored []string
	err = s.db.WithContext(ctx).Model(&models.Product{}).
		Where("name_vector IS NULL AND name <> ''").
		Distinct().Pluck("name", &unvectored).Error
	if err != nil {
		return nil, false, fmt.Errorf("unvectored product names: %w", err)
	}
	return append(ranked, unvectored...), true, nil
}
