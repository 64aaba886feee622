package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/app"
	"github.com/code-payments/txguard/pkg/relay"
)

func TestDecodeServiceConfig(t *testing.T) {
	conf, err := decodeServiceConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, relayStoreMemory, conf.RelayStore)
	assert.Equal(t, relay.DefaultSessionTTL, conf.SessionTTL)
	assert.Equal(t, 5432, conf.Postgres.Port)

	conf, err = decodeServiceConfig(app.Config{
		"relay_store":      "redis",
		"max_instructions": "16",
		"session_ttl":      "2h",
		"postgres": map[string]interface{}{
			"host":              "db",
			"conn_max_lifetime": "5m",
		},
		"redis": map[string]interface{}{
			"address": "cache:6379",
			"db":      2,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, relayStoreRedis, conf.RelayStore)
	assert.Equal(t, 16, conf.MaxInstructions)
	assert.Equal(t, 2*time.Hour, conf.SessionTTL)
	assert.Equal(t, "db", conf.Postgres.Host)
	assert.Equal(t, 5432, conf.Postgres.Port)
	assert.Equal(t, 5*time.Minute, conf.Postgres.ConnMaxLifetime)
	assert.Equal(t, "cache:6379", conf.Redis.Address)
	assert.Equal(t, 2, conf.Redis.DB)

	_, err = decodeServiceConfig(app.Config{"session_ttl": "forever"})
	assert.Error(t, err)
}

func TestService_Lifecycle(t *testing.T) {
	svc := newService()
	svc.sweep()

	require.NoError(t, svc.Init(app.Config{"session_ttl": "1h"}, nil))

	server := httptest.NewServer(svc.HTTPHandler())
	defer server.Close()

	resp, err := server.Client().Post(server.URL+"/v1/session", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sessionId := uuid.New()
	require.NoError(t, svc.store.Init(context.Background(), sessionId))
	svc.sweep()
	_, err = svc.store.Get(context.Background(), sessionId)
	assert.NoError(t, err)

	svc.Stop()
	svc.Stop()
	select {
	case <-svc.ShutdownChan():
	default:
		t.Fatal("shutdown channel not closed")
	}
}

func TestService_UnknownRelayStore(t *testing.T) {
	svc := newService()
	assert.Error(t, svc.Init(app.Config{"relay_store": "etcd"}, nil))
}
