package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/code-payments/txguard/pkg/relay"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed relay.Store
func New(db *sql.DB) relay.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Init implements relay.Store.Init
func (s *store) Init(ctx context.Context, id uuid.UUID) error {
	model, err := toModel(&relay.Session{Id: id})
	if err != nil {
		return err
	}
	return model.dbInit(ctx, s.db)
}

// Replace implements relay.Store.Replace
func (s *store) Replace(ctx context.Context, id uuid.UUID, tx []byte) error {
	updated := &relay.Session{Id: id, LatestTx: tx}
	if err := updated.Validate(); err != nil {
		return err
	}
	return dbReplace(ctx, s.db, id, string(tx))
}

// SetWalletConnected implements relay.Store.SetWalletConnected
func (s *store) SetWalletConnected(ctx context.Context, id uuid.UUID, connected bool) error {
	return dbSetWalletConnected(ctx, s.db, id, connected)
}

// Get implements relay.Store.Get
func (s *store) Get(ctx context.Context, id uuid.UUID) (*relay.Session, error) {
	model, err := dbGet(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// Clear implements relay.Store.Clear
func (s *store) Clear(ctx context.Context, id uuid.UUID) error {
	return dbDelete(ctx, s.db, id)
}

// ClearExpired implements relay.Store.ClearExpired
func (s *store) ClearExpired(ctx context.Context, olderThan time.Time) (int, error) {
	return dbDeleteOlderThan(ctx, s.db, olderThan)
}
