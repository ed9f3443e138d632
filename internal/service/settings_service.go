package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxTaxPercentage = decimal.NewFromInt(100)

// SettingsCache is an optional read-through cache for store settings.
type SettingsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type SettingsUpdate struct {
	StoreName     *string          `json:"store_name"`
	TaxEnabled    *bool            `json:"tax_enabled"`
	TaxPercentage *decimal.Decimal `json:"tax_percentage" validate:"omitempty,decimal_gte0"`
}

type SettingsService interface {
	SettingsProvider
	UpdateStoreSettings(ctx context.Context, update SettingsUpdate, actor Actor) (*model.StoreSetting, error)
}

type settingsService struct {
	repo     repository.SettingRepository
	cache    SettingsCache
	cacheKey string
	ttl      time.Duration
	log      *logger.Logger
}

// NewSettingsService builds the settings service. cache may be nil.
func NewSettingsService(repo repository.SettingRepository, cache SettingsCache, cacheKey string, ttl time.Duration, log *logger.Logger) SettingsService {
	if log == nil {
		log = logger.Nop()
	}
	return &settingsService{repo: repo, cache: cache, cacheKey: cacheKey, ttl: ttl, log: log}
}

// GetStoreSettings returns the stored settings, or tax-free defaults when
// none were saved yet.
func (s *settingsService) GetStoreSettings(ctx context.Context) (*model.StoreSetting, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}

	setting, err := s.repo.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.StoreSetting{ID: model.StoreSettingID}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not load store settings")
	}
	s.toCache(ctx, setting)
	return setting, nil
}

func (s *settingsService) UpdateStoreSettings(ctx context.Context, update SettingsUpdate, actor Actor) (*model.StoreSetting, error) {
	if update.TaxPercentage != nil && (update.TaxPercentage.IsNegative() || update.TaxPercentage.GreaterThan(maxTaxPercentage)) {
		return nil, apperrors.New(apperrors.CodeValidation, "tax percentage must be between 0 and 100")
	}

	current, err := s.repo.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		current = &model.StoreSetting{ID: model.StoreSettingID}
	} else if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not load store settings")
	}

	if update.StoreName != nil {
		current.StoreName = *update.StoreName
	}
	if update.TaxEnabled != nil {
		current.TaxEnabled = *update.TaxEnabled
	}
	if update.TaxPercentage != nil {
		current.TaxPercentage = *update.TaxPercentage
	}
	current.UpdatedBy = actor.ID

	if err := s.repo.Save(ctx, current); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not save")
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey); err != nil {
			s.log.Warn(ctx, "settings cache not invalidated")
		}
	}
	s.log.Info(s.log.WithField(ctx, "updated_by", actor.ID), "store settings updated")
	return current, nil
}

func (s *settingsService) fromCache(ctx context.Context) (*model.StoreSetting, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey)
	if err != nil {
		return nil, false
	}
	var setting model.StoreSetting
	if err := json.Unmarshal([]byte(raw), &setting); err != nil {
		return nil, false
	}
	setting.ID = model.StoreSettingID
	return &setting, true
}

func (s *settingsService) toCache(ctx context.Context, setting *model.StoreSetting) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(setting)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey, string(raw), s.ttl); err != nil {
		s.log.Warn(ctx, "settings cache not written")
	}
}
