package models

import (
	"context"
	"errors"
	"time"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
	"github.com/asaalabbadi2-web/goldbooks_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	MainKarat Karat     `gorm:"not null;default:21" json:"main_karat"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email"`
	MainKarat Karat  `json:"main_karat"`
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	if input.Name == "" {
		return nil, errors.New("business name is required")
	}
	mainKarat := input.MainKarat
	if mainKarat == 0 {
		mainKarat = DefaultMainKarat
	}
	if !mainKarat.Valid() {
		return nil, errors.New("invalid main karat")
	}

	business := Business{
		ID:        uuid.New(),
		Name:      input.Name,
		Email:     input.Email,
		MainKarat: mainKarat,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// GetBusiness loads the business from the ctx tenant id, redis-cached.
func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var business Business
	exists, err := config.GetRedisObject("Business:"+businessId, &business)
	if err != nil {
		return nil, err
	}
	if exists {
		return &business, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.SetRedisObject("Business:"+businessId, &business, 0); err != nil {
		return nil, err
	}
	return &business, nil
}

// GetMainKarat returns the reference purity for weight normalization.
func GetMainKarat(ctx context.Context) (Karat, error) {
	business, err := GetBusiness(ctx)
	if err != nil {
		return 0, err
	}
	if !business.MainKarat.Valid() {
		return DefaultMainKarat, nil
	}
	return business.MainKarat, nil
}
