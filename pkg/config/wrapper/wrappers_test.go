package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/config"
	"github.com/code-payments/txguard/pkg/config/memory"
)

func testTypedConfig[T any](t *testing.T, ctor func(config.Config, T) config.Value[T], defaultValue, overridenValue T, raw []byte, fromRaw T) {
	mock := memory.NewConfig(nil)
	wrapper := ctor(mock, defaultValue)
	ctx := context.Background()

	// Return the default value when no override is set
	val, err := wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	// The overriden value is returned when set
	mock.SetValue(overridenValue)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)

	// The last observed config value is returned on error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(ctx))

	// Raw bytes, as provided by env configs, are parsed
	mock.StopInducingErrors()
	mock.SetValue(raw)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, fromRaw, val)

	// The default value is returned when the override no longer has a value
	mock.ClearValue()
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	// Unsupported source types keep the last value
	mock.SetValue(struct{}{})
	val, err = wrapper.GetSafe(ctx)
	assert.Equal(t, ErrUnsuportedConversion, err)
	assert.Equal(t, defaultValue, val)
}

func TestBoolConfig(t *testing.T) {
	testTypedConfig(t, NewBoolConfig, true, false, []byte("false"), false)
}

func TestUint64Config(t *testing.T) {
	testTypedConfig(t, NewUint64Config, uint64(1000), uint64(42), []byte("7"), uint64(7))
}

func TestFloat64Config(t *testing.T) {
	testTypedConfig(t, NewFloat64Config, 2.0, 0.5, []byte("12.25"), 12.25)
}

func TestStringConfig(t *testing.T) {
	testTypedConfig(t, NewStringConfig, "default", "override", []byte("raw"), "raw")
}

func TestDurationConfig(t *testing.T) {
	testTypedConfig(t, NewDurationConfig, 20*time.Second, time.Minute, []byte("1500ms"), 1500*time.Millisecond)
}

func TestParseFailureKeepsLastValue(t *testing.T) {
	mock := memory.NewConfig([]byte("15"))
	wrapper := NewUint64Config(mock, 10)

	assert.EqualValues(t, 15, wrapper.Get(context.Background()))

	mock.SetValue([]byte("not a number"))
	val, err := wrapper.GetSafe(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 15, val)
}

func TestShutdown(t *testing.T) {
	mock := memory.NewConfig("value")
	wrapper := NewStringConfig(mock, "default")
	wrapper.Shutdown()

	val, err := wrapper.GetSafe(context.Background())
	assert.Equal(t, config.ErrShutdown, err)
	assert.Equal(t, "default", val)
}
