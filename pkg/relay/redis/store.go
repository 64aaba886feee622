package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/code-payments/txguard/pkg/relay"
)

// Sessions are hashes indexed by a sorted set scored by last update time in
// microseconds. All keys share a hash tag so scripts stay in one slot.
const (
	sessionKeyPrefix = "txguard:{relay}:session:"
	indexKey         = "txguard:{relay}:sessions"

	fieldLatestTx        = "latest_tx"
	fieldWalletConnected = "wallet_connected"
	fieldCreatedAt       = "created_at"
	fieldLastUpdatedAt   = "last_updated_at"
)

var (
	initScript = redis.NewScript(`
		if redis.call('EXISTS', KEYS[1]) == 1 then
			return 0
		end
		redis.call('HSET', KEYS[1], 'latest_tx', '', 'wallet_connected', '0', 'created_at', ARGV[1], 'last_updated_at', ARGV[1])
		redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
		return 1
	`)

	updateScript = redis.NewScript(`
		if redis.call('EXISTS', KEYS[1]) == 0 then
			return 0
		end
		redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'last_updated_at', ARGV[3])
		redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
		return 1
	`)

	clearExpiredScript = redis.NewScript(`
		local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
		for _, id in ipairs(ids) do
			redis.call('DEL', ARGV[2] .. id)
			redis.call('ZREM', KEYS[1], id)
		end
		return #ids
	`)
)

type store struct {
	client redis.UniversalClient
}

// New returns a new redis-backed relay.Store
func New(client redis.UniversalClient) relay.Store {
	return &store{
		client: client,
	}
}

// Init implements relay.Store.Init
func (s *store) Init(ctx context.Context, id uuid.UUID) error {
	session := &relay.Session{Id: id}
	if err := session.Validate(); err != nil {
		return err
	}

	created, err := initScript.Run(
		ctx,
		s.client,
		[]string{sessionKey(id), indexKey},
		toScore(time.Now()),
		id.String(),
	).Int()
	if err != nil {
		return errors.Wrap(err, "failed to init session")
	}

	if created == 0 {
		return relay.ErrSessionExists
	}
	return nil
}

// Replace implements relay.Store.Replace
func (s *store) Replace(ctx context.Context, id uuid.UUID, tx []byte) error {
	updated := &relay.Session{Id: id, LatestTx: tx}
	if err := updated.Validate(); err != nil {
		return err
	}
	return s.update(ctx, id, fieldLatestTx, string(tx))
}

// SetWalletConnected implements relay.Store.SetWalletConnected
func (s *store) SetWalletConnected(ctx context.Context, id uuid.UUID, connected bool) error {
	value := "0"
	if connected {
		value = "1"
	}
	return s.update(ctx, id, fieldWalletConnected, value)
}

// Get implements relay.Store.Get
func (s *store) Get(ctx context.Context, id uuid.UUID) (*relay.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	if len(fields) == 0 {
		return nil, relay.ErrSessionNotFound
	}

	return fromFields(id, fields)
}

// Clear implements relay.Store.Clear
func (s *store) Clear(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, indexKey, id.String())
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to clear session")
	}
	return nil
}

// ClearExpired implements relay.Store.ClearExpired
func (s *store) ClearExpired(ctx context.Context, olderThan time.Time) (int, error) {
	count, err := clearExpiredScript.Run(
		ctx,
		s.client,
		[]string{indexKey},
		toScore(olderThan),
		sessionKeyPrefix,
	).Int()
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear expired sessions")
	}
	return count, nil
}

func (s *store) update(ctx context.Context, id uuid.UUID, field, value string) error {
	updated, err := updateScript.Run(
		ctx,
		s.client,
		[]string{sessionKey(id), indexKey},
		field,
		value,
		toScore(time.Now()),
		id.String(),
	).Int()
	if err != nil {
		return errors.Wrapf(err, "failed to update session %s", field)
	}

	if updated == 0 {
		return relay.ErrSessionNotFound
	}
	return nil
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func toScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func fromScore(value string) (time.Time, error) {
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(micros), nil
}

func fromFields(id uuid.UUID, fields map[string]string) (*relay.Session, error) {
	createdAt, err := fromScore(fields[fieldCreatedAt])
	if err != nil {
		return nil, errors.Wrap(err, "invalid created_at")
	}

	lastUpdatedAt, err := fromScore(fields[fieldLastUpdatedAt])
	if err != nil {
		return nil, errors.Wrap(err, "invalid last_updated_at")
	}

	session := &relay.Session{
		Id:              id,
		WalletConnected: fields[fieldWalletConnected] == "1",
		CreatedAt:       createdAt,
		LastUpdatedAt:   lastUpdatedAt,
	}
	if latestTx := fields[fieldLatestTx]; len(latestTx) > 0 {
		session.LatestTx = []byte(latestTx)
	}
	return session, nil
}
