package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrSessionExists indicates a session with the same id already exists
	ErrSessionExists = errors.New("relay session already exists")

	// ErrSessionNotFound indicates a session doesn't exist
	ErrSessionNotFound = errors.New("relay session not found")
)

type Store interface {
	// Init creates an empty session
	Init(ctx context.Context, id uuid.UUID) error

	// Replace sets the latest relayed transaction of a session
	Replace(ctx context.Context, id uuid.UUID, tx []byte) error

	// SetWalletConnected records whether a wallet is connected in the session
	SetWalletConnected(ctx context.Context, id uuid.UUID, connected bool) error

	// Get gets a session by id
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// Clear deletes a session. Clearing a missing session is not an error.
	Clear(ctx context.Context, id uuid.UUID) error

	// ClearExpired deletes sessions last updated before olderThan, returning
	// the number deleted.
	ClearExpired(ctx context.Context, olderThan time.Time) (int, error)
}
