package service

import (
	"context"
	"errors"
	"strings"

	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultDiscoverLimit = 50
	MaxDiscoverLimit     = 200
)

var (
	ErrStoreNotFound      = errors.New("store not found")
	ErrPreferenceExists   = errors.New("store already in user preferences")
	ErrPreferenceNotFound = errors.New("store preference not found")
)

// StoreService handles store discovery and users' store preferences
type StoreService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStoreService(db *gorm.DB, logger *zap.Logger) *StoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreService{db: db, logger: logger}
}

// DiscoverStores lists active stores, optionally filtered by zip code and brand.
func (s *StoreService) DiscoverStores(ctx context.Context, zipCode, brand string, limit int) ([]models.Store, error) {
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}
	limit = min(limit, MaxDiscoverLimit)

	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if zipCode != "" {
		q = q.Where("zip_code = ?", zipCode)
	}
	if brand != "" {
		q = q.Where("brand = ?", strings.ToLower(brand))
	}
	stores := []models.Store{}
	if err := q.Order("id").Limit(limit).Find(&stores).Error; err != nil {
		return nil, err
	}
	s.logger.Info("store discovery",
		zap.String("zip_code", zipCode), zap.String("brand", brand), zap.Int("found", len(stores)))
	return stores, nil
}

func (s *StoreService) GetStore(ctx context.Context, id string) (*models.Store, error) {
	var store models.Store
	err := s.db.WithContext(ctx).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// Preferences lists a user's stores, highest priority first.
func (s *StoreService) Preferences(ctx context.Context, userID uuid.UUID) ([]types.StorePreferenceResponse, error) {
	var prefs []models.UserStorePreference
	err := s.db.WithContext(ctx).
		Preload("Store").
		Where("user_id = ?", userID).
		Order("priority DESC").Order("store_id").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.StorePreferenceResponse, 0, len(prefs))
	for i := range prefs {
		out = append(out, preferenceResponse(&prefs[i]))
	}
	return out, nil
}

func (s *StoreService) AddPreference(ctx context.Context, userID uuid.UUID, req *types.StorePreferenceRequest) (*types.StorePreferenceResponse, error) {
	store, err := s.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&models.UserStorePreference{}).
		Where("user_id = ? AND store_id = ?", userID, req.StoreID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPreferenceExists
	}

	pref := &models.UserStorePreference{
		UserID:   userID,
		StoreID:  req.StoreID,
		Priority: req.Priority,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(pref).Error; err != nil {
		return nil, err
	}
	pref.Store = store
	s.logger.Info("added store preference",
		zap.String("user_id", userID.String()), zap.String("store_id", req.StoreID))

	resp := preferenceResponse(pref)
	return &resp, nil
}

func (s *StoreService) UpdatePriority(ctx context.Context, userID uuid.UUID, storeID string, priority int) (*types.StorePreferenceResponse, error) {
	pref, err := s.preference(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(pref).Update("priority", priority).Error; err != nil {
		return nil, err
	}
	pref.Priority = priority

	resp := preferenceResponse(pref)
	return &resp, nil
}

func (s *StoreService) RemovePreference(ctx context.Context, userID uuid.UUID, storeID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		Delete(&models.UserStorePreference{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreferenceNotFound
	}
	s.logger.Info("removed store preference",
		zap.String("user_id", userID.String()), zap.String("store_id", storeID))
	return nil
}

func (s *StoreService) preference(ctx context.Context, userID uuid.UUID, storeID string) (*models.UserStorePreference, error) {
	var pref models.UserStorePreference
	err := s.db.WithContext(ctx).Preload("Store").
		Where("user_id = ? AND store_id = ?", userID, storeID).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPreferenceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func preferenceResponse(p *models.UserStorePreference) types.StorePreferenceResponse {
	r := types.StorePreferenceResponse{
		ID:       p.ID,
		StoreID:  p.StoreID,
		Priority: p.Priority,
		IsActive: p.IsActive,
	}
	if p.Store != nil {
		r.StoreName = p.Store.Name
		r.StoreBrand = p.Store.Brand
	}
	return r
}
