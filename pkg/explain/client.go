package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/rate"
	"github.com/code-payments/txguard/pkg/retry"
	"github.com/code-payments/txguard/pkg/retry/backoff"
)

const (
	metricsClientStructName = "explain.client"

	circuitBreakerName = "explain"
	rateLimiterKey     = "explain"
	maxErrorBodySize   = 1024
)

var (
	ErrNoExplanation = errors.New("no explanation received")
	ErrRateLimited   = errors.New("explanation rate limit exceeded")
	ErrCircuitOpen   = errors.New("explanation service unavailable")

	// errClientStatus marks 4xx responses, other than 429, that will not
	// succeed on retry.
	errClientStatus = errors.New("client error status")
)

// Client sends a prompt to a language model and returns its answer.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens uint64        `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type groqClient struct {
	log        *logrus.Entry
	conf       *conf
	httpClient *http.Client
	retrier    retry.Retrier
	breaker    *gobreaker.CircuitBreaker
	limiter    rate.Limiter
}

// NewGroqClient returns a Client for an OpenAI compatible chat completions
// endpoint, Groq's by default.
func NewGroqClient(configProvider ConfigProvider) Client {
	conf := configProvider()
	log := logrus.StandardLogger().WithField("type", "explain/client")

	return &groqClient{
		log:  log,
		conf: conf,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retrier: retry.NewRetrier(
			retry.NonRetriableErrors(context.Canceled, context.DeadlineExceeded, errClientStatus),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        circuitBreakerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errClientStatus) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Info("circuit breaker state changed")

				var open float64
				if to == gobreaker.StateOpen {
					open = 1
				}
				metrics.CircuitBreakerOpen.WithLabelValues(name).Set(open)
			},
		}),
		limiter: rate.NewLimiter(conf.requestsPerSecond.Get(context.Background())),
	}
}

// Complete implements Client.Complete
func (c *groqClient) Complete(ctx context.Context, prompt string) (string, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsClientStructName, "Complete")
	defer tracer.End()

	allowed, err := c.limiter.Allow(rateLimiterKey)
	if err != nil {
		tracer.OnError(err)
		return "", err
	} else if !allowed {
		metrics.RateLimitExceeded.WithLabelValues(rateLimiterKey).Inc()
		return "", ErrRateLimited
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.submitRequest(ctx, prompt)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "", errors.Wrap(ErrCircuitOpen, err.Error())
	} else if err != nil {
		tracer.OnError(err)
		return "", err
	}

	return result.(string), nil
}

func (c *groqClient) submitRequest(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.conf.model.Get(ctx),
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.conf.maxTokens.Get(ctx),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	var resp chatResponse
	attempts, err := c.retrier.Retry(ctx, func() error {
		return c.post(ctx, body, &resp)
	})
	if err != nil {
		c.log.WithError(err).WithField("attempts", attempts).Warn("explanation request failed")
		return "", err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Content) == 0 {
		return "", ErrNoExplanation
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *groqClient) post(ctx context.Context, body []byte, resp interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.baseURL.Get(ctx), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.conf.apiKey.Get(ctx))

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "failed to make request")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		message, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodySize))

		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
			return errors.Wrapf(errClientStatus, "received status code %d: %s", httpResp.StatusCode, message)
		}
		return errors.Errorf("received status code %d: %s", httpResp.StatusCode, message)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
