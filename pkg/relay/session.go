package relay

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Session is the relay state of one browser tab. LatestTx holds the last
// relayed transaction message as received, and is empty until one arrives.
type Session struct {
	Id uuid.UUID

	LatestTx        []byte
	WalletConnected bool

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

func (s *Session) Validate() error {
	if bytes.Equal(s.Id[:], uuid.Nil[:]) {
		return errors.New("id is required")
	}

	if len(s.LatestTx) > 0 && !json.Valid(s.LatestTx) {
		return errors.New("latest transaction is not valid json")
	}

	return nil
}

// HasLatestTx reports whether a transaction has been relayed.
func (s *Session) HasLatestTx() bool {
	return len(s.LatestTx) > 0
}

func (s *Session) Clone() Session {
	var latestTx []byte
	if s.LatestTx != nil {
		latestTx = make([]byte, len(s.LatestTx))
		copy(latestTx, s.LatestTx)
	}

	return Session{
		Id: s.Id,

		LatestTx:        latestTx,
		WalletConnected: s.WalletConnected,

		CreatedAt:     s.CreatedAt,
		LastUpdatedAt: s.LastUpdatedAt,
	}
}

func (s *Session) CopyTo(dst *Session) {
	*dst = s.Clone()
}

// Document returns the latest transaction indented for download.
func (s *Session) Document() ([]byte, error) {
	if !s.HasLatestTx() {
		return nil, ErrNoLatestTransaction
	}

	var out bytes.Buffer
	if err := json.Indent(&out, s.LatestTx, "", "  "); err != nil {
		return nil, errors.Wrap(err, "latest transaction is not valid json")
	}
	return out.Bytes(), nil
}
