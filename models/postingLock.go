package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Advisory locks serialize the read-then-write windows (posting a journal,
// allocating an account number) across instances using MySQL GET_LOCK.
// NOTE: GET_LOCK is connection-scoped, so these must be called on the same
// *gorm.DB / transaction that will do the guarded writes.

func acquireNamedLock(tx *gorm.DB, name string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", name).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire lock %s", name)
	}
	return nil
}

func releaseNamedLock(tx *gorm.DB, name string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", name).Scan(&_ok).Error
}

// AcquirePostingLock serializes journal posting per business.
func AcquirePostingLock(tx *gorm.DB, businessId string) error {
	return acquireNamedLock(tx, fmt.Sprintf("posting:%s", businessId))
}

func ReleasePostingLock(tx *gorm.DB, businessId string) {
	releaseNamedLock(tx, fmt.Sprintf("posting:%s", businessId))
}

// acquireRangeLock serializes account-number allocation per parent range.
func acquireRangeLock(tx *gorm.DB, businessId string, parentCode string) error {
	return acquireNamedLock(tx, fmt.Sprintf("numbering:%s:%s", businessId, parentCode))
}

func releaseRangeLock(tx *gorm.DB, businessId string, parentCode string) {
	releaseNamedLock(tx, fmt.Sprintf("numbering:%s:%s", businessId, parentCode))
}
