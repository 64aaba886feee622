package web

import (
	"github.com/code-payments/txguard/pkg/config"
	"github.com/code-payments/txguard/pkg/config/env"
)

const (
	envConfigPrefix = "WEB_"

	RequestsPerSecondConfigEnvName = envConfigPrefix + "REQUESTS_PER_SECOND"
	defaultRequestsPerSecond       = 10.0

	MaxBodySizeConfigEnvName = envConfigPrefix + "MAX_BODY_SIZE"
	defaultMaxBodySize       = 1 << 20

	TrustForwardedForConfigEnvName = envConfigPrefix + "TRUST_FORWARDED_FOR"
	defaultTrustForwardedFor       = false
)

type conf struct {
	requestsPerSecond config.Float64
	maxBodySize       config.Uint64
	trustForwardedFor config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			requestsPerSecond: env.NewFloat64Config(RequestsPerSecondConfigEnvName, defaultRequestsPerSecond),
			maxBodySize:       env.NewUint64Config(MaxBodySizeConfigEnvName, defaultMaxBodySize),
			trustForwardedFor: env.NewBoolConfig(TrustForwardedForConfigEnvName, defaultTrustForwardedFor),
		}
	}
}
