package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/gateway-release-server/internal/api"
	"github.com/stacklok/gateway-release-server/internal/app/storage"
	"github.com/stacklok/gateway-release-server/internal/config"
	"github.com/stacklok/gateway-release-server/internal/convertor"
	"github.com/stacklok/gateway-release-server/internal/distributor"
	"github.com/stacklok/gateway-release-server/internal/registry"
	"github.com/stacklok/gateway-release-server/internal/sources"
	"github.com/stacklok/gateway-release-server/internal/status"
	"github.com/stacklok/gateway-release-server/internal/tasks"
	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// ReleaseAppOptions is a function that configures the release app builder
type ReleaseAppOptions func(*releaseAppConfig) error

// releaseAppConfig collects the builder inputs. Component overrides are
// mostly used by tests and one-shot commands.
type releaseAppConfig struct {
	config *config.Config

	storageFactory storage.Factory
	source         sources.Source
	locator        registry.Locator

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...ReleaseAppOptions) (*releaseAppConfig, error) {
	cfg := &releaseAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewReleaseApp builds every component and the HTTP server
func NewReleaseApp(ctx context.Context, opts ...ReleaseAppOptions) (*ReleaseApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpServer, err := buildHTTPServer(ctx, cfg, &releaseStatusService{components: components})
	if err != nil {
		components.Storage.Cleanup()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &ReleaseApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// BuildComponents builds the release components without an HTTP server.
// Callers own the result and must Close it.
func BuildComponents(ctx context.Context, opts ...ReleaseAppOptions) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, cfg)
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory
func WithStorageFactory(f storage.Factory) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSource allows injecting a source instead of the configured one
func WithSource(s sources.Source) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.source = s
		return nil
	}
}

// WithLocator sets the registry locator used by the registry strategy
func WithLocator(l registry.Locator) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.locator = l
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) ReleaseAppOptions {
	return func(cfg *releaseAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildComponents wires storage, source, conversion, distribution and the
// task pipeline together
func buildComponents(ctx context.Context, b *releaseAppConfig) (*AppComponents, error) {
	slog.Info("Initializing release components")
	cfg := b.config

	if b.storageFactory == nil {
		f, err := storage.NewStorageFactory(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		b.storageFactory = f
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			b.storageFactory.Cleanup()
		}
	}()

	store, err := b.storageFactory.CreateEventStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	if b.source == nil {
		b.source, err = sources.NewSource(cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to create source: %w", err)
		}
	}

	publishMetrics, err := telemetry.NewPublishMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish metrics: %w", err)
	}
	distributeMetrics, err := telemetry.NewDistributeMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create distribute metrics: %w", err)
	}
	retentionMetrics, err := telemetry.NewRetentionMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create retention metrics: %w", err)
	}

	distOpts := []distributor.Option{distributor.WithMetrics(distributeMetrics)}
	var serviceOpts []tasks.ServiceOption
	if b.tracerProvider != nil {
		distOpts = append(distOpts, distributor.WithTracer(b.tracerProvider.Tracer(telemetry.DistributeTracerName)))
		serviceOpts = append(serviceOpts, tasks.WithTracer(b.tracerProvider.Tracer(telemetry.PublishTracerName)))
	}

	dist, err := buildDistributor(b, distOpts)
	if err != nil {
		return nil, err
	}

	conv := convertor.NewOrchestrator(convertor.Options{
		ControllerEndpoints: cfg.Controller.Endpoints,
		BasePathTemplate:    cfg.Controller.GetBasePath(),
		DomainTemplate:      cfg.Stage.GetDomainTemplate(),
		PathPrefixTemplate:  cfg.Stage.GetPathPrefixTemplate(),
	})

	pool := tasks.NewPool(cfg.Publish.GetWorkers(), tasks.WithPoolMetrics(publishMetrics))

	retry := cfg.Publish.Retry
	serviceOpts = append(serviceOpts, tasks.WithRetryPolicy(tasks.RetryPolicy{
		MaxAttempts:     retry.GetMaxAttempts(),
		InitialInterval: retry.GetInitialInterval(),
		MaxInterval:     retry.GetMaxInterval(),
	}))
	releases := tasks.NewService(b.source, conv, dist, store, pool, serviceOpts...)

	engine := status.NewEngine(store, pool,
		status.WithDoingTimeout(cfg.Publish.GetDoingTimeout()),
		status.WithEventFailInterval(cfg.Publish.GetEventFailInterval()),
	)

	retention := tasks.NewRetentionLoop(store, cfg.Retention.GetWindow(), cfg.Retention.GetInterval(),
		tasks.WithRetentionMetrics(retentionMetrics))

	cleanupNeeded = false
	slog.Info("Release components initialized",
		"event_store", cfg.Events.GetStore(),
		"distribution", cfg.Distribution.GetStrategy(),
		"workers", cfg.Publish.GetWorkers(),
	)

	return &AppComponents{
		Storage:     b.storageFactory,
		Events:      store,
		Source:      b.source,
		Converter:   conv,
		Distributor: dist,
		Pool:        pool,
		Releases:    releases,
		Status:      engine,
		Retention:   retention,
	}, nil
}

// buildDistributor creates the distributor of the configured strategy
func buildDistributor(b *releaseAppConfig, opts []distributor.Option) (distributor.Distributor, error) {
	switch strategy := b.config.Distribution.GetStrategy(); strategy {
	case config.StrategyRegistry:
		if b.locator == nil {
			b.locator = registry.NewMemoryLocator()
		}
		return distributor.NewRegistryDistributor(b.locator, opts...), nil
	case config.StrategyBundle:
		return distributor.NewBundleDistributor(b.config.Distribution.GetBundleDir(), opts...), nil
	default:
		return nil, fmt.Errorf("unknown distribution strategy: %s", strategy)
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *releaseAppConfig,
	svc api.Service,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first to capture every request
	var instrumentation []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			instrumentation = append(instrumentation, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	if b.tracerProvider != nil {
		instrumentation = append(instrumentation, telemetry.TracingMiddleware(b.tracerProvider))
		slog.Info("HTTP tracing middleware enabled")
	}
	middlewares := append(instrumentation, b.middlewares...)

	router := api.NewServer(svc, api.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
