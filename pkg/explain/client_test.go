package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txguard/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, overrides *Overrides) *groqClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if overrides == nil {
		overrides = &Overrides{}
	}
	overrides.APIKey = "test-key"
	overrides.BaseURL = server.URL
	if overrides.RequestsPerSecond == 0 {
		overrides.RequestsPerSecond = 1000
	}

	client := NewGroqClient(WithOverrides(overrides)).(*groqClient)
	client.retrier = retry.NewRetrier(
		retry.NonRetriableErrors(context.Canceled, context.DeadlineExceeded, errClientStatus),
		retry.Limit(3),
	)
	return client
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	var resp chatResponse
	resp.Choices = append(resp.Choices, struct {
		Message chatMessage `json:"message"`
	}{Message: chatMessage{Role: "assistant", Content: content}})

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestGroqClient_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultModel, req.Model)
		assert.EqualValues(t, defaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "the prompt", req.Messages[0].Content)

		writeCompletion(t, w, `{"safetyLevel":"safe"}`)
	}, nil)

	content, err := client.Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"safetyLevel":"safe"}`, content)
}

func TestGroqClient_Overrides(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "custom-model", req.Model)
		assert.EqualValues(t, 50, req.MaxTokens)

		writeCompletion(t, w, "ok")
	}, &Overrides{Model: "custom-model", MaxTokens: 50})

	_, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
}

func TestGroqClient_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, nil)

	_, err := client.Complete(context.Background(), "prompt")
	assert.Equal(t, ErrNoExplanation, err)
}

func TestGroqClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeCompletion(t, w, "third time")
	}, nil)

	content, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "third time", content)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGroqClient_ClientErrorsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
	}, nil)

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errClientStatus))
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// Client errors do not count against the circuit breaker
	for i := 0; i < 5; i++ {
		_, err = client.Complete(context.Background(), "prompt")
		assert.True(t, errors.Is(err, errClientStatus))
	}
}

func TestGroqClient_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "ok")
	}, &Overrides{RequestsPerSecond: 1})

	_, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt")
	assert.Equal(t, ErrRateLimited, err)
}

func TestGroqClient_CircuitBreaker(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)
	client.retrier = retry.NewRetrier(retry.Limit(1))

	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.NotEqual(t, ErrCircuitOpen, errors.Cause(err))
	}

	_, err := client.Complete(context.Background(), "prompt")
	assert.Equal(t, ErrCircuitOpen, errors.Cause(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGroqClient_Canceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "ok")
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "prompt")
	assert.Equal(t, context.Canceled, err)
}
