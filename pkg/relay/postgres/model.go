package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	pgutil "github.com/code-payments/txguard/pkg/database/postgres"
	"github.com/code-payments/txguard/pkg/relay"
)

const (
	tableName = "txguard__relay_session"

	allColumns = `id, session_id, latest_tx, wallet_connected, created_at, last_updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	SessionId       uuid.UUID `db:"session_id"`
	LatestTx        string    `db:"latest_tx"`
	WalletConnected bool      `db:"wallet_connected"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *relay.Session) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		SessionId:       obj.Id,
		LatestTx:        string(obj.LatestTx),
		WalletConnected: obj.WalletConnected,
		CreatedAt:       obj.CreatedAt,
		LastUpdatedAt:   obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *relay.Session {
	var latestTx []byte
	if len(obj.LatestTx) > 0 {
		latestTx = []byte(obj.LatestTx)
	}

	return &relay.Session{
		Id:              obj.SessionId,
		LatestTx:        latestTx,
		WalletConnected: obj.WalletConnected,
		CreatedAt:       obj.CreatedAt,
		LastUpdatedAt:   obj.LastUpdatedAt,
	}
}

func (m *model) dbInit(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(session_id, latest_tx, wallet_connected, created_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		if m.LastUpdatedAt.IsZero() {
			m.LastUpdatedAt = m.CreatedAt
		}

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.SessionId,
			m.LatestTx,
			m.WalletConnected,
			m.CreatedAt.UTC(),
			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, relay.ErrSessionExists)
	})
}

func dbReplace(ctx context.Context, db *sqlx.DB, sessionId uuid.UUID, latestTx string) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET latest_tx = $2, last_updated_at = $3
			WHERE session_id = $1
			RETURNING ` + allColumns

		res := &model{}
		err := tx.QueryRowxContext(ctx, query, sessionId, latestTx, time.Now().UTC()).StructScan(res)
		return pgutil.CheckNoRows(err, relay.ErrSessionNotFound)
	})
}

func dbSetWalletConnected(ctx context.Context, db *sqlx.DB, sessionId uuid.UUID, connected bool) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET wallet_connected = $2, last_updated_at = $3
			WHERE session_id = $1
			RETURNING ` + allColumns

		res := &model{}
		err := tx.QueryRowxContext(ctx, query, sessionId, connected, time.Now().UTC()).StructScan(res)
		return pgutil.CheckNoRows(err, relay.ErrSessionNotFound)
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, sessionId uuid.UUID) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE session_id = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, sessionId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, relay.ErrSessionNotFound)
	}
	return res, nil
}

func dbDelete(ctx context.Context, db *sqlx.DB, sessionId uuid.UUID) error {
	query := `DELETE FROM ` + tableName + `
		WHERE session_id = $1`

	_, err := db.ExecContext(ctx, query, sessionId)
	return err
}

func dbDeleteOlderThan(ctx context.Context, db *sqlx.DB, olderThan time.Time) (int, error) {
	query := `DELETE FROM ` + tableName + `
		WHERE last_updated_at < $1`

	var rowsAffected int64
	err := pgutil.ExecuteRetryable(ctx, func() error {
		res, err := db.ExecContext(ctx, query, olderThan.UTC())
		if err != nil {
			return err
		}

		rowsAffected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}
