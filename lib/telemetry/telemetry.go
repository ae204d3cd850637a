package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"sgassist/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type providers struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
}

var (
	current   providers
	currentMu sync.Mutex
)

// InitSlog installs a text handler on stderr as the default slog logger.
func InitSlog(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry. when no such file exists
// telemetry stays on the global no-op providers.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	cfg, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("telemetry.json5 not found, telemetry disabled", "service", serviceName)
		return nil
	}
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, cfg)
}

func Setup(ctx context.Context, serviceName string, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return err
	}

	tracerProvider, err := newTraceProvider(ctx, r, cfg)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tracerProvider)

	meterProvider, err := newMetricProvider(ctx, r, cfg)
	if err != nil {
		return err
	}
	otel.SetMeterProvider(meterProvider)

	currentMu.Lock()
	current = providers{tracer: tracerProvider, meter: meterProvider}
	currentMu.Unlock()

	return nil
}

// Shutdown flushes and stops whatever providers Setup installed.
func Shutdown(ctx context.Context) error {
	currentMu.Lock()
	p := current
	current = providers{}
	currentMu.Unlock()

	var errlist []error
	if p.tracer != nil {
		errlist = append(errlist, p.tracer.Shutdown(ctx))
	}
	if p.meter != nil {
		errlist = append(errlist, p.meter.Shutdown(ctx))
	}
	return errors.Join(errlist...)
}

var (
	setupTestEnvironments   = map[string]bool{}
	setupTestEnvironmentsMu sync.Mutex
)

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once
func SetupForTesting(serviceName string) func() {
	setupTestEnvironmentsMu.Lock()
	defer setupTestEnvironmentsMu.Unlock()
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		panic(err)
	}

	return func() {
		err = Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}
