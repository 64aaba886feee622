package explain

import (
	"os"
	"time"

	"github.com/code-payments/txguard/pkg/config"
	"github.com/code-payments/txguard/pkg/config/env"
	"github.com/code-payments/txguard/pkg/config/memory"
	"github.com/code-payments/txguard/pkg/config/wrapper"
)

const (
	envConfigPrefix = "EXPLAIN_"

	// GroqAPIKeyEnvName is read when APIKeyConfigEnvName is unset.
	GroqAPIKeyEnvName = "GROQ_API_KEY"

	APIKeyConfigEnvName = envConfigPrefix + "API_KEY"
	defaultAPIKey       = ""

	BaseURLConfigEnvName = envConfigPrefix + "BASE_URL"
	defaultBaseURL       = "https://api.groq.com/openai/v1/chat/completions"

	ModelConfigEnvName = envConfigPrefix + "MODEL"
	defaultModel       = "meta-llama/llama-4-scout-17b-16e-instruct"

	MaxTokensConfigEnvName = envConfigPrefix + "MAX_TOKENS"
	defaultMaxTokens       = 1000

	TimeoutConfigEnvName = envConfigPrefix + "TIMEOUT"
	defaultTimeout       = 30 * time.Second

	CacheSizeConfigEnvName = envConfigPrefix + "CACHE_SIZE"
	defaultCacheSize       = 256

	CacheTTLConfigEnvName = envConfigPrefix + "CACHE_TTL"
	defaultCacheTTL       = time.Hour

	RequestsPerSecondConfigEnvName = envConfigPrefix + "REQUESTS_PER_SECOND"
	defaultRequestsPerSecond       = 2.0
)

type conf struct {
	apiKey            config.String
	baseURL           config.String
	model             config.String
	maxTokens         config.Uint64
	timeout           config.Duration
	cacheSize         config.Uint64
	cacheTTL          config.Duration
	requestsPerSecond config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			apiKey:            env.NewStringConfig(APIKeyConfigEnvName, os.Getenv(GroqAPIKeyEnvName)),
			baseURL:           env.NewStringConfig(BaseURLConfigEnvName, defaultBaseURL),
			model:             env.NewStringConfig(ModelConfigEnvName, defaultModel),
			maxTokens:         env.NewUint64Config(MaxTokensConfigEnvName, defaultMaxTokens),
			timeout:           env.NewDurationConfig(TimeoutConfigEnvName, defaultTimeout),
			cacheSize:         env.NewUint64Config(CacheSizeConfigEnvName, defaultCacheSize),
			cacheTTL:          env.NewDurationConfig(CacheTTLConfigEnvName, defaultCacheTTL),
			requestsPerSecond: env.NewFloat64Config(RequestsPerSecondConfigEnvName, defaultRequestsPerSecond),
		}
	}
}

// Overrides replaces individual configuration values. Zero values keep the
// defaults.
type Overrides struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         uint64
	Timeout           time.Duration
	CacheSize         uint64
	CacheTTL          time.Duration
	RequestsPerSecond float64
}

// WithOverrides returns configuration from explicit values, for callers that
// take settings from flags rather than the environment.
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		return &conf{
			apiKey:            wrapper.NewStringConfig(override(overrides.APIKey), defaultAPIKey),
			baseURL:           wrapper.NewStringConfig(override(overrides.BaseURL), defaultBaseURL),
			model:             wrapper.NewStringConfig(override(overrides.Model), defaultModel),
			maxTokens:         wrapper.NewUint64Config(override(overrides.MaxTokens), defaultMaxTokens),
			timeout:           wrapper.NewDurationConfig(override(overrides.Timeout), defaultTimeout),
			cacheSize:         wrapper.NewUint64Config(override(overrides.CacheSize), defaultCacheSize),
			cacheTTL:          wrapper.NewDurationConfig(override(overrides.CacheTTL), defaultCacheTTL),
			requestsPerSecond: wrapper.NewFloat64Config(override(overrides.RequestsPerSecond), defaultRequestsPerSecond),
		}
	}
}

func override[T comparable](value T) config.Config {
	var zero T
	if value == zero {
		return memory.NewConfig(nil)
	}
	return memory.NewConfig(value)
}
