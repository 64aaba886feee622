package relay

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txguard/pkg/metrics"
)

const (
	metricsSweeperStructName = "relay.sweeper"

	DefaultSessionTTL = 24 * time.Hour
)

// Sweeper removes sessions that haven't been updated within a TTL.
type Sweeper struct {
	log   *logrus.Entry
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSweeper(store Store, ttl time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &Sweeper{
		log:   logrus.StandardLogger().WithField("type", "relay/sweeper"),
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Sweep clears expired sessions, returning the number removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsSweeperStructName, "Sweep")
	defer tracer.End()

	cutoff := s.now().Add(-s.ttl)
	cleared, err := s.store.ClearExpired(ctx, cutoff)
	if err != nil {
		tracer.OnError(err)
		return 0, errors.Wrap(err, "error clearing expired sessions")
	}

	metrics.SessionsExpiredTotal.Add(float64(cleared))
	if cleared > 0 {
		s.log.WithFields(logrus.Fields{
			"method":  "Sweep",
			"cleared": cleared,
			"cutoff":  cutoff,
		}).Info("cleared expired sessions")
	}
	return cleared, nil
}

// Job adapts Sweep to a cron callback bounded by timeout.
func (s *Sweeper) Job(timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Warn("failure sweeping expired sessions")
		}
	}
}
