package app

import (
	"google.golang.org/grpc"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type cronJob struct {
	name     string
	schedule string
	job      func()
}

type opts struct {
	configPath string

	unaryServerInterceptors  []grpc.UnaryServerInterceptor
	streamServerInterceptors []grpc.StreamServerInterceptor

	cronJobs []cronJob
}

// WithConfigPath sets the config file read by Run. A missing file is not an
// error.
func WithConfigPath(path string) Option {
	return func(o *opts) {
		o.configPath = path
	}
}

// WithUnaryServerInterceptor configures the app's gRPC server to use the provided interceptor.
//
// Interceptors are evaluated in addition order, and configured interceptors are executed after
// the app's default interceptors.
func WithUnaryServerInterceptor(interceptor grpc.UnaryServerInterceptor) Option {
	return func(o *opts) {
		o.unaryServerInterceptors = append(o.unaryServerInterceptors, interceptor)
	}
}

// WithStreamServerInterceptor configures the app's gRPC server to use the provided interceptor.
func WithStreamServerInterceptor(interceptor grpc.StreamServerInterceptor) Option {
	return func(o *opts) {
		o.streamServerInterceptors = append(o.streamServerInterceptors, interceptor)
	}
}

// WithCronJob runs job on a cron schedule for the life of the app.
func WithCronJob(name, schedule string, job func()) Option {
	return func(o *opts) {
		o.cronJobs = append(o.cronJobs, cronJob{
			name:     name,
			schedule: schedule,
			job:      job,
		})
	}
}
