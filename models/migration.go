package models

import (
	"github.com/asaalabbadi2-web/goldbooks_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Business{},
		&Account{},
		&JournalEntry{},
		&JournalEntryLine{},
		&Party{},
		&WeightClosingOrder{},
		&WeightClosingExecution{},
	)
}
