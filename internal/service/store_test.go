package service_test

import (
	"context"
	"testing"

	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/foodplanner/backend/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverStores(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewStoreService(db, nil)
	ctx := context.Background()

	testhelpers.CreateStore(t, db, "rema1000-main", "REMA 1000", "rema1000")
	netto := testhelpers.CreateStore(t, db, "netto-1", "Netto Nørrebro", "netto")
	require.NoError(t, db.Model(netto).Update("zip_code", "2200").Error)
	closed := testhelpers.CreateStore(t, db, "netto-2", "Netto Closed", "netto")
	require.NoError(t, db.Model(closed).Update("is_active", false).Error)

	all, err := svc.DiscoverStores(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byBrand, err := svc.DiscoverStores(ctx, "", "NETTO", 50)
	require.NoError(t, err)
	require.Len(t, byBrand, 1)
	assert.Equal(t, "netto-1", byBrand[0].ID)

	byZip, err := svc.DiscoverStores(ctx, "2200", "", 50)
	require.NoError(t, err)
	require.Len(t, byZip, 1)

	limited, err := svc.DiscoverStores(ctx, "", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.GetStore(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrStoreNotFound)
}

func TestStorePreferences(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewStoreService(db, nil)
	ctx := context.Background()

	testhelpers.CreateStore(t, db, "rema1000-main", "REMA 1000", "rema1000")
	testhelpers.CreateStore(t, db, "netto-1", "Netto", "netto")
	user := &models.User{Email: "cook@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	added, err := svc.AddPreference(ctx, user.ID, &types.StorePreferenceRequest{StoreID: "netto-1", Priority: 10})
	require.NoError(t, err)
	assert.Equal(t, "Netto", added.StoreName)
	assert.True(t, added.IsActive)

	_, err = svc.AddPreference(ctx, user.ID, &types.StorePreferenceRequest{StoreID: "rema1000-main", Priority: 50})
	require.NoError(t, err)

	_, err = svc.AddPreference(ctx, user.ID, &types.StorePreferenceRequest{StoreID: "netto-1"})
	assert.ErrorIs(t, err, service.ErrPreferenceExists)
	_, err = svc.AddPreference(ctx, user.ID, &types.StorePreferenceRequest{StoreID: "lidl-1"})
	assert.ErrorIs(t, err, service.ErrStoreNotFound)

	prefs, err := svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "rema1000-main", prefs[0].StoreID, "highest priority first")
	assert.Equal(t, "rema1000", prefs[0].StoreBrand)

	updated, err := svc.UpdatePriority(ctx, user.ID, "netto-1", 90)
	require.NoError(t, err)
	assert.Equal(t, 90, updated.Priority)
	prefs, err = svc.Preferences(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "netto-1", prefs[0].StoreID)

	_, err = svc.UpdatePriority(ctx, user.ID, "lidl-1", 1)
	assert.ErrorIs(t, err, service.ErrPreferenceNotFound)

	require.NoError(t, svc.RemovePreference(ctx, user.ID, "netto-1"))
	assert.ErrorIs(t, svc.RemovePreference(ctx, user.ID, "netto-1"), service.ErrPreferenceNotFound)

	other, err := svc.Preferences(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
