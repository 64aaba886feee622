package test

import (
	"context"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txguard/pkg/retry"
	"github.com/code-payments/txguard/pkg/retry/backoff"
)

const (
	containerName     = "redis"
	containerVersion  = "7.2"
	containerAutoKill = 120 * time.Second

	port = 6379
)

// StartRedis starts a Docker container using the redis image and returns a
// client for testing purposes. closeFunc purges the container.
func StartRedis(pool *dockertest.Pool) (client *redis.Client, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start resource")
	}

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			logrus.StandardLogger().WithError(err).Warn("failure purging redis container")
		}
	}

	// Expire() never returns an error
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	client = redis.NewClient(&redis.Options{
		Addr: resource.GetHostPort(fmt.Sprintf("%d/tcp", port)),
	})

	_, err = retry.Retry(
		context.Background(),
		func() error {
			return client.Ping(context.Background()).Err()
		},
		retry.Limit(50),
		retry.Backoff(backoff.Constant(500*time.Millisecond), 500*time.Millisecond),
	)
	if err != nil {
		client.Close()
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for redis container to become available")
	}

	return client, closeFunc, nil
}
