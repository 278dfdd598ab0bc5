// Package models holds the gorm models for stores, products, recipes, meal plans and ingestion bookkeeping.
package models

// All lists every model in dependency order for AutoMigrate
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&Discount{},
		&User{},
		&UserPreference{},
		&UserStorePreference{},
		&Category{},
		&Area{},
		&Recipe{},
		&Ingredient{},
		&RecipeIngredient{},
		&IngredientMatch{},
		&MealPlan{},
		&MealPlanRecipe{},
		&IngestionRun{},
		&StoreIngestionStatus{},
		&RawIngestionData{},
	}
}
