package explain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/code-payments/txguard/pkg/cache"
	"github.com/code-payments/txguard/pkg/inspect"
	"github.com/code-payments/txguard/pkg/metrics"
)

const (
	metricsExplainerStructName = "explain.explainer"

	explanationDurationMetricName = "Custom/Explainer/Duration"
)

var (
	ErrExplanationDisabled = errors.New("explanations are disabled")
)

// Explainer asks a language model for a verdict on an analysis. Identical
// concurrent requests share one model call and answers are cached by prompt.
type Explainer struct {
	log    *logrus.Entry
	conf   *conf
	client Client
	group  singleflight.Group
	cache  cache.Cache
}

func NewExplainer(client Client, configProvider ConfigProvider) *Explainer {
	conf := configProvider()
	ctx := context.Background()

	return &Explainer{
		log:    logrus.StandardLogger().WithField("type", "explain/explainer"),
		conf:   conf,
		client: client,
		cache:  cache.NewCacheWithTTL(int(conf.cacheSize.Get(ctx)), conf.cacheTTL.Get(ctx)),
	}
}

// Enabled reports whether an API key is configured.
func (e *Explainer) Enabled(ctx context.Context) bool {
	return len(e.conf.apiKey.Get(ctx)) > 0
}

// Explain returns the model's explanation of records and findings. A response
// that cannot be parsed is returned as an Explanation with only Raw set, not
// as an error. Errors never affect the analysis itself.
func (e *Explainer) Explain(ctx context.Context, records []inspect.Record, findings inspect.Findings) (*Explanation, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsExplainerStructName, "Explain")
	defer tracer.End()

	if !e.Enabled(ctx) {
		metrics.ExplanationsTotal.WithLabelValues(metrics.ResultDisabled).Inc()
		return nil, ErrExplanationDisabled
	}

	prompt, err := BuildPrompt(records, findings)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	digest := sha256.Sum256([]byte(prompt))
	key := hex.EncodeToString(digest[:])
	log := e.log.WithFields(logrus.Fields{
		"method": "Explain",
		"prompt": key,
	})

	if cached, ok := e.cache.Retrieve(key); ok {
		metrics.ExplanationsTotal.WithLabelValues(metrics.ResultCached).Inc()
		explanation := cached.(Explanation)
		return &explanation, nil
	}

	start := time.Now()

	// Shared by all callers with the same prompt. Bounded by the configured
	// timeout rather than any one caller's context.
	resultCh := e.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.conf.timeout.Get(ctx))
		defer cancel()

		content, err := e.client.Complete(callCtx, prompt)
		if err != nil {
			return nil, err
		}

		explanation := ParseExplanation(content)
		if err := e.cache.Insert(key, explanation, 1); err != nil && err != cache.ErrKeyExists {
			log.WithError(err).Warn("failure caching explanation")
		}
		return explanation, nil
	})

	var result singleflight.Result
	select {
	case <-ctx.Done():
		metrics.ExplanationsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, ctx.Err()
	case result = <-resultCh:
	}

	elapsed := time.Since(start)
	metrics.ExplanationDuration.Observe(elapsed.Seconds())
	metrics.RecordDuration(ctx, explanationDurationMetricName, elapsed)

	if result.Err != nil {
		log.WithError(result.Err).Warn("failure getting explanation")
		tracer.OnError(result.Err)
		metrics.ExplanationsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, result.Err
	}

	explanation := result.Val.(Explanation)
	if err := explanation.Err(); err != nil {
		log.WithError(err).Info("explanation returned as raw text")
	}

	metrics.ExplanationsTotal.WithLabelValues(metrics.ResultOk).Inc()
	return &explanation, nil
}
