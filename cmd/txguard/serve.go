package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/code-payments/txguard/pkg/app"
	pg "github.com/code-payments/txguard/pkg/database/postgres"
	redisdb "github.com/code-payments/txguard/pkg/database/redis"
	"github.com/code-payments/txguard/pkg/explain"
	"github.com/code-payments/txguard/pkg/inspect"
	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/relay"
	memory_relay_store "github.com/code-payments/txguard/pkg/relay/memory"
	postgres_relay_store "github.com/code-payments/txguard/pkg/relay/postgres"
	redis_relay_store "github.com/code-payments/txguard/pkg/relay/redis"
	"github.com/code-payments/txguard/pkg/server/web"
)

const (
	relayStoreMemory   = "memory"
	relayStorePostgres = "postgres"
	relayStoreRedis    = "redis"

	sweepTimeout = time.Minute
)

// serviceConfig is decoded from the "app" section of the config file.
type serviceConfig struct {
	RelayStore      string        `mapstructure:"relay_store"`
	TrustList       string        `mapstructure:"trust_list"`
	MaxInstructions int           `mapstructure:"max_instructions"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`

	Postgres pg.Config      `mapstructure:"postgres"`
	Redis    redisdb.Config `mapstructure:"redis"`
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		RelayStore:      relayStoreMemory,
		MaxInstructions: inspect.DefaultMaxInstructions,
		SessionTTL:      relay.DefaultSessionTTL,
		Postgres: pg.Config{
			Host:   "localhost",
			Port:   5432,
			DbName: "txguard",
		},
		Redis: redisdb.Config{
			Address: "localhost:6379",
		},
	}
}

func decodeServiceConfig(config app.Config) (serviceConfig, error) {
	decoded := defaultServiceConfig()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &decoded,
	})
	if err != nil {
		return serviceConfig{}, err
	}

	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return serviceConfig{}, errors.Wrap(err, "invalid app config")
	}
	return decoded, nil
}

type service struct {
	log *logrus.Entry

	metricsProvider *newrelic.Application
	server          *web.Server
	store           relay.Store
	sweeper         *relay.Sweeper
	closers         []func() error

	shutdownCh chan struct{}
	stopOnce   sync.Once
}

func newService() *service {
	return &service{
		log:        logrus.StandardLogger().WithField("type", "cmd/serve"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (s *service) Init(config app.Config, metricsProvider *newrelic.Application) error {
	ctx := context.Background()

	conf, err := decodeServiceConfig(config)
	if err != nil {
		return err
	}

	lists, err := loadTrustList(conf.TrustList)
	if err != nil {
		return err
	}
	if invalid := lists.Validate(); len(invalid) > 0 {
		s.log.WithField("entries", len(invalid)).Warn("trust list has entries that can never match")
	}

	s.store, err = s.openRelayStore(ctx, conf)
	if err != nil {
		return err
	}
	s.sweeper = relay.NewSweeper(s.store, conf.SessionTTL)

	explainConfig := explain.WithEnvConfigs()
	explainer := explain.NewExplainer(explain.NewGroqClient(explainConfig), explainConfig)
	if !explainer.Enabled(ctx) {
		s.log.Info("no explanation api key configured, explanations are disabled")
	}

	s.metricsProvider = metricsProvider
	s.server = web.NewServer(
		inspect.NewAnalyzer(inspect.NewDecoder(conf.MaxInstructions)),
		lists,
		explainer,
		s.store,
		web.WithEnvConfigs(),
	)

	s.log.WithFields(logrus.Fields{
		"relay_store": conf.RelayStore,
		"session_ttl": conf.SessionTTL,
	}).Info("initialized")
	return nil
}

func (s *service) openRelayStore(ctx context.Context, conf serviceConfig) (relay.Store, error) {
	switch conf.RelayStore {
	case relayStoreMemory:
		return memory_relay_store.New(), nil
	case relayStorePostgres:
		db, err := pg.Open(&conf.Postgres)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return postgres_relay_store.New(db), nil
	case relayStoreRedis:
		client, err := redisdb.Open(ctx, &conf.Redis)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		return redis_relay_store.New(client), nil
	default:
		return nil, errors.Errorf("unknown relay store %q", conf.RelayStore)
	}
}

// RegisterWithGRPC implements app.App.RegisterWithGRPC. Only the standard
// health service is served over gRPC.
func (s *service) RegisterWithGRPC(_ *grpc.Server) {}

// HTTPHandler implements app.App.HTTPHandler
func (s *service) HTTPHandler() http.Handler {
	handler := s.server.Handler()
	if s.metricsProvider == nil {
		return handler
	}

	next := handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(metrics.WithNewRelic(r.Context(), s.metricsProvider)))
	})
	_, handler = newrelic.WrapHandle(s.metricsProvider, "txguard", handler)
	return handler
}

// ShutdownChan implements app.App.ShutdownChan
func (s *service) ShutdownChan() <-chan struct{} {
	return s.shutdownCh
}

// Stop implements app.App.Stop
func (s *service) Stop() {
	s.stopOnce.Do(func() {
		for _, closer := range s.closers {
			if err := closer(); err != nil {
				s.log.WithError(err).Warn("failure closing relay store")
			}
		}
		close(s.shutdownCh)
	})
}

// sweep is registered before Init runs, so it tolerates a missing sweeper.
func (s *service) sweep() {
	if s.sweeper == nil {
		return
	}
	s.sweeper.Job(sweepTimeout)()
}

func newServeCmd() *cobra.Command {
	var (
		configPath    string
		sweepSchedule string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API and the wallet relay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			return app.Run(
				svc,
				app.WithConfigPath(configPath),
				app.WithCronJob("session expiry", sweepSchedule, svc.sweep),
			)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "configuration file path")
	cmd.Flags().StringVar(&sweepSchedule, "sweep-schedule", "@every 10m", "cron schedule for removing expired relay sessions")

	return cmd
}
