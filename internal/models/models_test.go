package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMealPlanMetadataAccessors(t *testing.T) {
	plan := MealPlan{Metadata: JSONMap{"people_count": float64(4), "store_ids": []any{"rema1000-main", 7}}}
	assert.Equal(t, 4, plan.PeopleCount())
	assert.Equal(t, []string{"rema1000-main"}, plan.StoreIDs())

	empty := MealPlan{}
	assert.Equal(t, 2, empty.PeopleCount())
	assert.Empty(t, empty.StoreIDs())
}

func TestProductEffectivePrice(t *testing.T) {
	discount := 12.5
	p := Product{Price: 20, DiscountPrice: &discount}
	assert.Equal(t, 20.0, p.EffectivePrice())

	p.HasActiveDiscount = true
	assert.Equal(t, 12.5, p.EffectivePrice())
}

func TestDiscountActiveOn(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d := Discount{ValidFrom: from, ValidTo: from.AddDate(0, 0, 6)}
	assert.True(t, d.ActiveOn(from))
	assert.True(t, d.ActiveOn(from.AddDate(0, 0, 6)))
	assert.False(t, d.ActiveOn(from.AddDate(0, 0, 7)))
	assert.False(t, d.ActiveOn(from.AddDate(0, 0, -1)))
}

func TestIngestionRunDuration(t *testing.T) {
	start := time.Now()
	run := IngestionRun{StartedAt: start}
	assert.Nil(t, run.DurationSeconds())

	done := start.Add(90 * time.Second)
	run.CompletedAt = &done
	require.NotNil(t, run.DurationSeconds())
	assert.InDelta(t, 90.0, *run.DurationSeconds(), 0.001)
}

func TestJSONColumnsPersist(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(All()...))

	recipe := Recipe{ID: "52772", Name: "Teriyaki Chicken Casserole", Tags: StringList{"Meat", "Casserole"}}
	require.NoError(t, db.Create(&recipe).Error)

	var loaded Recipe
	require.NoError(t, db.First(&loaded, "id = ?", "52772").Error)
	assert.Equal(t, StringList{"Meat", "Casserole"}, loaded.Tags)

	product := Product{ID: "1", StoreID: "s", Name: "Mælk", Price: 10, Nutrition: JSONMap{"is_offer": true}}
	require.NoError(t, db.Create(&product).Error)

	var p Product
	require.NoError(t, db.First(&p, "id = ?", "1").Error)
	assert.Equal(t, true, p.Nutrition["is_offer"])
	assert.Nil(t, p.NameVector)
}
