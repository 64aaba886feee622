package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/txguard/pkg/config"
)

func TestConfig(t *testing.T) {
	const env = "ENV_CONFIG_TEST_VAR"

	t.Setenv(env, "value")
	v, err := NewConfig(env).Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	// Keys are upper cased
	v, err = NewConfig("env_config_test_var").Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	t.Setenv(env, "")
	v, err = NewConfig(env).Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ENV_CONFIG_TEST_TIMEOUT", "45s")
	t.Setenv("ENV_CONFIG_TEST_RATE", "2.5")
	t.Setenv("ENV_CONFIG_TEST_SIZE", "not a number")

	assert.Equal(t, 45*time.Second, NewDurationConfig("ENV_CONFIG_TEST_TIMEOUT", time.Second).Get(ctx))
	assert.Equal(t, 2.5, NewFloat64Config("ENV_CONFIG_TEST_RATE", 1).Get(ctx))
	assert.EqualValues(t, 100, NewUint64Config("ENV_CONFIG_TEST_SIZE", 100).Get(ctx))
	assert.Equal(t, "fallback", NewStringConfig("ENV_CONFIG_TEST_UNSET", "fallback").Get(ctx))
	assert.True(t, NewBoolConfig("ENV_CONFIG_TEST_UNSET", true).Get(ctx))
}
