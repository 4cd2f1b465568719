package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrConditionNotMet is returned by guarded updates and deletes when the row
// exists but was not in the state the caller required, so zero rows changed.
var ErrConditionNotMet = errors.New("row not in expected state")

func orDefault(db, fallback *gorm.DB) *gorm.DB {
	if db == nil {
		return fallback
	}
	return db
}
