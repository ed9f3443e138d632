package repository

import (
	"context"

	"go-pos-ws/internal/model"

	"gorm.io/gorm"
)

type SettingRepository interface {
	Get(ctx context.Context) (*model.StoreSetting, error)
	Save(ctx context.Context, setting *model.StoreSetting) error
	// EnsureDefault creates the settings row from defaults when it is missing
	// and returns the stored row either way.
	EnsureDefault(ctx context.Context, defaults model.StoreSetting) (*model.StoreSetting, error)
}

type settingRepo struct {
	db *gorm.DB
}

func NewSettingRepo(db *gorm.DB) SettingRepository {
	return &settingRepo{db}
}

func (r *settingRepo) Get(ctx context.Context) (*model.StoreSetting, error) {
	var setting model.StoreSetting
	err := r.db.WithContext(ctx).First(&setting, "id = ?", model.StoreSettingID).Error
	return &setting, err
}

func (r *settingRepo) Save(ctx context.Context, setting *model.StoreSetting) error {
	setting.ID = model.StoreSettingID
	return r.db.WithContext(ctx).Save(setting).Error
}

func (r *settingRepo) EnsureDefault(ctx context.Context, defaults model.StoreSetting) (*model.StoreSetting, error) {
	defaults.ID = model.StoreSettingID
	var setting model.StoreSetting
	err := r.db.WithContext(ctx).
		Where(model.StoreSetting{ID: model.StoreSettingID}).
		Attrs(defaults).
		FirstOrCreate(&setting).Error
	return &setting, err
}
