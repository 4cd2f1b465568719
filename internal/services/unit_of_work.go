package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// maxTxAttempts bounds how often a unit of work is replayed after a
// transient storage conflict.
const maxTxAttempts = 3

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// runInTransaction executes fn in one storage transaction: either every write
// fn makes commits or none does. Serialization failures and deadlocks are
// replayed up to maxTxAttempts times; fn must therefore only assign captured
// results on its success path.
func runInTransaction(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !isTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transient storage conflict, retrying")
	}
	return err
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
