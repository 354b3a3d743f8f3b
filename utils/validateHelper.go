package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
)

// ValidateResourceId checks a referenced row exists within the business.
func ValidateResourceId[T any](ctx context.Context, businessId string, id int) error {
	count, err := ResourceCountWhere[T](ctx, businessId, "id = ?", id)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique fails when another row (excluding exceptId) already holds the value.
func ValidateUnique[T any](ctx context.Context, businessId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, businessId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, businessId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// ValidateUniqueWhere fails when any row matches the condition.
func ValidateUniqueWhere[T any](ctx context.Context, businessId string, condition string, value ...interface{}) error {
	count, err := ResourceCountWhere[T](ctx, businessId, condition, value...)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate record")
	}
	return nil
}

// count records, using WHERE business_id = ? AND $condition
// business_id can be blank for admin use
func ResourceCountWhere[T any](ctx context.Context, businessId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if businessId != "" {
		dbCtx = dbCtx.Where("business_id = ?", businessId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
