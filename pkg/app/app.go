package app

import (
	"context"
	"expvar"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/osutil"
)

// App is a long lived application that services network requests over HTTP,
// with an optional set of gRPC services next to the standard health service.
//
// The lifecycle of the App is tied to the process. The app gets initialized
// before the servers run, and gets stopped after the servers have stopped
// serving.
type App interface {
	// Init initializes the application in a blocking fashion. When Init returns, it
	// is expected that the application is ready to start receiving requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// RegisterWithGRPC provides a mechanism for the application to register gRPC services
	// with the gRPC server.
	RegisterWithGRPC(server *grpc.Server)

	// HTTPHandler returns the handler served on the HTTP listen address. A nil
	// handler disables the HTTP server.
	HTTPHandler() http.Handler

	// ShutdownChan returns a channel that is closed when the application is shutdown.
	//
	// If the channel is closed, the servers will initiate a shutdown if they have
	// not already done so.
	ShutdownChan() <-chan struct{}

	// Stop stops the service, allowing for it to clean up any resources. When Stop()
	// returns, the process exits.
	//
	// Stop should be idempotent.
	Stop()
}

// Run loads configuration, then serves app until a signal is received, a
// server stops or the app shuts itself down.
func Run(app App, options ...Option) error {
	osSigCh := make(chan os.Signal, 1)
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(osSigCh)

	opts := opts{
		configPath: "config.yaml",
	}
	for _, o := range options {
		o(&opts)
	}

	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger := logrus.StandardLogger().WithField("type", "app")

	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return errors.Wrap(err, "error connecting to new relic")
		}

		metricsProvider = nr
	}

	logOutput := configureLogger(config, metricsProvider)
	if rotated, ok := logOutput.(*lumberjack.Logger); ok {
		defer rotated.Close()
	}

	// pprof and expvar install themselves on the default mux, which must
	// never be exposed publically.
	http.DefaultServeMux = http.NewServeMux()

	debugHTTPMux := http.NewServeMux()
	if config.EnableExpvar {
		debugHTTPMux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		debugHTTPMux.HandleFunc("/debug/pprof/", pprof.Index)
		debugHTTPMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		debugHTTPMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		debugHTTPMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		debugHTTPMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if config.EnableExpvar || config.EnablePprof {
		go func() {
			for {
				if err := http.ListenAndServe(config.DebugListenAddress, debugHTTPMux); err != nil {
					logger.WithError(err).Warn("Debug HTTP server failed. Retrying in 5s...")
				}
				time.Sleep(5 * time.Second)
			}
		}()
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, ballastSize(config.BallastCapacity, osutil.GetTotalMemory()))
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		return errors.Wrap(err, "failed to initialize application")
	}

	cronScheduler := cron.New(cron.WithLocation(time.Local))
	memoryLeakShutdownCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		_, err = cronScheduler.AddFunc(config.MemoryLeakCronSchedule, func() {
			close(memoryLeakShutdownCh)
		})
		if err != nil {
			app.Stop()
			return errors.Wrap(err, "failed to initialize memory leak cron")
		}
	}
	for _, job := range opts.cronJobs {
		if _, err := cronScheduler.AddFunc(job.schedule, job.job); err != nil {
			app.Stop()
			return errors.Wrapf(err, "failed to schedule %s cron", job.name)
		}
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	grpcLis, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		app.Stop()
		return errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}

	grpcLogger := logrus.StandardLogger().WithField("type", "app/grpc")
	unaryServerInterceptors := append([]grpc.UnaryServerInterceptor{
		grpc_logrus.UnaryServerInterceptor(grpcLogger),
		grpc_recovery.UnaryServerInterceptor(),
	}, opts.unaryServerInterceptors...)
	streamServerInterceptors := append([]grpc.StreamServerInterceptor{
		grpc_logrus.StreamServerInterceptor(grpcLogger),
		grpc_recovery.StreamServerInterceptor(),
	}, opts.streamServerInterceptors...)

	grpcServ := grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(unaryServerInterceptors...),
		grpc_middleware.WithStreamServerChain(streamServerInterceptors...),
	)
	app.RegisterWithGRPC(grpcServ)
	healthgrpc.RegisterHealthServer(grpcServ, health.NewServer())

	grpcServShutdownCh := make(chan struct{})
	go func() {
		if err := grpcServ.Serve(grpcLis); err != nil {
			logger.WithError(err).Error("grpc serve stopped")
		} else {
			logger.Info("grpc server stopped")
		}

		close(grpcServShutdownCh)
	}()

	var httpServ *http.Server
	httpServShutdownCh := make(chan struct{})
	if handler := app.HTTPHandler(); handler != nil {
		httpServ = &http.Server{
			Addr:              config.HTTPListenAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := httpServ.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("http serve stopped")
			} else {
				logger.Info("http server stopped")
			}

			close(httpServShutdownCh)
		}()
	}

	logger.WithFields(logrus.Fields{
		"grpc": config.ListenAddress,
		"http": config.HTTPListenAddress,
	}).Info("serving")

	// Wait for the following shutdown conditions:
	//    1. OS Signal telling us to shutdown
	//    2. A server has shutdown (for whatever reason)
	//    3. The application has shutdown (for whatever reason)
	select {
	case <-osSigCh:
		logger.Info("interrupt received, shutting down")
	case <-grpcServShutdownCh:
		logger.Info("grpc server shutdown")
	case <-httpServShutdownCh:
		logger.Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	shutdownCh := make(chan struct{})
	go func() {
		// Servers and the application have idempotent shutdown methods, so
		// it's fine to call them all regardless of the shutdown condition.
		if httpServ != nil {
			if err := httpServ.Shutdown(ctx); err != nil {
				logger.WithError(err).Warn("failure shutting down http server")
			}
		}
		grpcServ.GracefulStop()
		app.Stop()

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Ensure the ballast is used to avoid any possible compiler optimizations
		// around unused variable.
		if len(ballast) > 0 {
			ballast[0] = 1
		}

		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func ballastSize(capacity float32, totalMemory uint64) uint64 {
	if capacity > 0.5 {
		capacity = 0.5
	}
	if capacity < 0 {
		capacity = 0
	}
	return uint64(capacity * float32(totalMemory))
}

// configureLogger sets up the standard logger and returns its output.
func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) io.Writer {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	var output io.Writer = os.Stdout
	if len(config.LogFile) > 0 {
		output = &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    config.LogFileMaxSizeMB,
			MaxBackups: config.LogFileMaxBackups,
			MaxAge:     config.LogFileMaxAgeDays,
		}
	}

	logrus.SetOutput(output)
	return output
}
