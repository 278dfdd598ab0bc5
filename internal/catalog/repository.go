// Package catalog stores recipes, ingredients and their links to products,
// and answers the discount and cost questions the planner asks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foodplanner/backend/internal/connectors/mealdb"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// Repository is the relational recipe catalog
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// ImportCategory creates or updates a category
func (r *Repository) ImportCategory(ctx context.Context, c mealdb.Category) error {
	row := models.Category{Name: c.Name, Description: c.Description, Thumbnail: c.Thumbnail}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "thumbnail"}),
	}).Create(&row).Error
}

// ImportArea creates an area if it does not exist
func (r *Repository) ImportArea(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Area{Name: name}).Error
}

// ImportMeal upserts a recipe with its category, area and ingredient rows.
// Existing ingredient lines of the recipe are replaced.
func (r *Repository) ImportMeal(ctx context.Context, meal mealdb.Meal) error {
	if meal.ID == "" {
		return fmt.Errorf("meal %q has no id", meal.Name)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if meal.Category != "" {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Category{Name: meal.Category}).Error; err != nil {
				return err
			}
		}
		if meal.Area != "" {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Area{Name: meal.Area}).Error; err != nil {
				return err
			}
		}

		recipe := models.Recipe{
			ID:           meal.ID,
			Name:         meal.Name,
			Category:     meal.Category,
			Area:         meal.Area,
			Instructions: meal.Instructions,
			ImageURL:     meal.Thumbnail,
			YoutubeURL:   meal.YoutubeURL,
			SourceURL:    meal.SourceURL,
			Tags:         models.StringList(meal.Tags),
			Servings:     4,
		}
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "category", "area", "instructions", "image_url",
				"youtube_url", "source_url", "tags", "updated_at",
			}),
		}).Create(&recipe).Error
		if err != nil {
			return err
		}

		if err := tx.Where("recipe_id = ?", meal.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}

		seen := make(map[string]bool, len(meal.Ingredients))
		for i, ing := range meal.Ingredients {
			key := models.IngredientKey(ing.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Ingredient{NormalizedName: key, Name: ing.Name}).Error; err != nil {
				return err
			}
			line := models.RecipeIngredient{
				RecipeID:       meal.ID,
				IngredientName: key,
				Name:           ing.Name,
				Measure:        ing.Measure,
				Position:       i + 1,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportResult summarizes ImportMealsBatch
type ImportResult struct {
	TotalImported int      `json:"total_imported"`
	TotalFailed   int      `json:"total_failed"`
	FailedMeals   []string `json:"failed_meals"`
}

// ImportMealsBatch imports meals one by one, logging progress per batch.
// A failing meal does not stop the import.
func (r *Repository) ImportMealsBatch(ctx context.Context, meals []mealdb.Meal, batchSize int) (*ImportResult, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	result := &ImportResult{FailedMeals: []string{}}
	for start := 0; start < len(meals); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+batchSize, len(meals))
		for _, meal := range meals[start:end] {
			if err := r.ImportMeal(ctx, meal); err != nil {
				r.logger.Error("failed to import meal", zap.String("meal", meal.Name), zap.Error(err))
				result.TotalFailed++
				result.FailedMeals = append(result.FailedMeals, meal.Name)
				continue
			}
			result.TotalImported++
		}
		r.logger.Info("imported meal batch",
			zap.Int("batch", start/batchSize+1), zap.Int("total", result.TotalImported))
	}
	return result, nil
}

// RecipeFilter narrows SearchRecipes. Zero values mean no filter.
type RecipeFilter struct {
	Name       string
	Category   string
	Area       string
	Ingredient string
	Limit      int
	Offset     int
}

func withIngredients(db *gorm.DB) *gorm.DB {
	return db.Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// SearchRecipes returns recipes ordered by name with their ingredient lines.
func (r *Repository) SearchRecipes(ctx context.Context, f RecipeFilter) ([]models.Recipe, error) {
	q := r.db.WithContext(ctx).Model(&models.Recipe{})
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Area != "" {
		q = q.Where("area = ?", f.Area)
	}
	if f.Ingredient != "" {
		q = q.Where("id IN (?)", r.db.Model(&models.RecipeIngredient{}).
			Select("recipe_id").Where("ingredient_name = ?", models.IngredientKey(f.Ingredient)))
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var recipes []models.Recipe
	err := withIngredients(q).Order("name").Offset(f.Offset).Limit(f.Limit).Find(&recipes).Error
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe returns a recipe with its ingredient lines, or ErrNotFound.
func (r *Repository) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := withIngredients(r.db.WithContext(ctx)).First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// RecipesByIDs loads the recipes with ids, in no particular order.
func (r *Repository) RecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recipes []models.Recipe
	if err := withIngredients(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// ListRecipes returns up to limit recipes ordered by name, skipping excluded ids.
func (r *Repository) ListRecipes(ctx context.Context, limit int, exclude []string) ([]models.Recipe, error) {
	q := withIngredients(r.db.WithContext(ctx)).Order("name").Limit(limit)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var recipes []models.Recipe
	if err := q.Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// DeleteRecipe removes a recipe and its ingredient lines. It reports whether a row existed.
func (r *Repository) DeleteRecipe(ctx context.Context, id string) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Recipe{}, "id = ?", id)
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted > 0, err
}

func (r *Repository) ListIngredients(ctx context.Context, limit int) ([]models.Ingredient, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []models.Ingredient
	if err := r.db.WithContext(ctx).Order("name").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetIngredient looks an ingredient up by name, case-insensitively.
func (r *Repository) GetIngredient(ctx context.Context, name string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := r.db.WithContext(ctx).First(&ing, "normalized_name = ?", models.IngredientKey(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// UnmatchedIngredients lists ingredient names with no product match.
func (r *Repository) UnmatchedIngredients(ctx context.Context, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where("normalized_name NOT IN (?)", r.db.Model(&models.IngredientMatch{}).Select("ingredient_name")).
		Order("name").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *Repository) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Areas(ctx context.Context) ([]models.Area, error) {
	var out []models.Area
	if err := r.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts the catalog entities
type Stats struct {
	Recipes     int64 `json:"recipes"`
	Ingredients int64 `json:"ingredients"`
	Products    int64 `json:"products"`
	Categories  int64 `json:"categories"`
	Areas       int64 `json:"areas"`
	Stores      int64 `json:"stores"`
	Matches     int64 `json:"matches"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)
	s := &Stats{}
	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.Recipe{}, &s.Recipes},
		{&models.Ingredient{}, &s.Ingredients},
		{&models.Product{}, &s.Products},
		{&models.Category{}, &s.Categories},
		{&models.Area{}, &s.Areas},
		{&models.Store{}, &s.Stores},
		{&models.IngredientMatch{}, &s.Matches},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return s, nil
}
