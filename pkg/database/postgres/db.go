package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/retry"
	"github.com/code-payments/txguard/pkg/retry/backoff"
)

const (
	maxRetryableAttempts = 5
)

// retryableStrategies retry serialization failures only, with a short
// jittered backoff.
var retryableStrategies = []retry.Strategy{
	func(_ context.Context, _ uint, err error) bool {
		return IsSerializationFailure(err)
	},
	retry.Limit(maxRetryableAttempts),
	retry.BackoffWithJitter(backoff.BinaryExponential(10*time.Millisecond), 250*time.Millisecond, 0.1),
}

// ExecuteRetryable retries fn while it fails with a serialization failure.
func ExecuteRetryable(ctx context.Context, fn func() error) error {
	_, err := retry.Retry(ctx, fn, retryableStrategies...)
	return err
}

// ExecuteInTx runs fn within a new DB transaction, committing when fn
// succeeds and rolling back otherwise. The whole transaction is retried on
// serialization failures, so fn must be safe to run more than once.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	return ExecuteRetryable(ctx, func() error {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{
			Isolation: isolation,
		})
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}

		if err := fn(tx); err != nil {
			// Rollback is always required so sql.DB releases the connection.
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return errors.Wrap(rollbackErr, "failed to rollback transaction")
			}
			return err
		}
		return tx.Commit()
	})
}
