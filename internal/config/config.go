// Package config provides configuration loading and management for the release server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/gateway-release-server/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the server
const EnvPrefix = "GW_RELEASE"

const (
	// StrategyRegistry distributes manifests by synchronizing the instance registry
	StrategyRegistry = "registry"

	// StrategyBundle distributes manifests by rendering a deployment bundle
	StrategyBundle = "bundle"
)

const (
	// EventStoreMemory keeps publish events in memory
	EventStoreMemory = "memory"

	// EventStoreFile keeps publish events in JSON files
	EventStoreFile = "file"

	// EventStoreDatabase keeps publish events in Postgres
	EventStoreDatabase = "database"
)

const (
	// DefaultEventFailInterval is how long a non final successful step may wait for its successor
	DefaultEventFailInterval = 5 * time.Minute

	// DefaultDoingTimeout is how long a step may stay in progress before it is considered stalled
	DefaultDoingTimeout = 600 * time.Second

	// DefaultWorkers is the default size of the task worker pool
	DefaultWorkers = 8

	// DefaultRetentionWindow is how long publish events are kept
	DefaultRetentionWindow = 30 * 24 * time.Hour

	// DefaultRetentionInterval is how often expired publish events are deleted
	DefaultRetentionInterval = time.Hour

	defaultMaxAttempts        = 5
	defaultInitialInterval    = time.Second
	defaultMaxInterval        = 30 * time.Second
	defaultBundleDir          = "./data/bundles"
	defaultEventsDir          = "./data/events"
	defaultBasePath           = "/api/v1/controller/{gateway}"
	defaultDomainTemplate     = "{gateway}.apigw.local"
	defaultPathPrefixTemplate = "/{stage}/"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Controller   ControllerConfig   `yaml:"controller"`
	Stage        StageConfig        `yaml:"stage,omitempty"`
	Publish      PublishConfig      `yaml:"publish,omitempty"`
	Retention    RetentionConfig    `yaml:"retention,omitempty"`
	Distribution DistributionConfig `yaml:"distribution,omitempty"`
	Events       EventsConfig       `yaml:"events,omitempty"`
	Source       *SourceConfig      `yaml:"source,omitempty"`
	Database     *DatabaseConfig    `yaml:"database,omitempty"`
	Telemetry    *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// ControllerConfig describes the control plane gateway instances report to
type ControllerConfig struct {
	// Endpoints are the control plane addresses handed to every instance
	Endpoints []string `yaml:"endpoints"`

	// BasePath is the API path on the control plane.
	// It may contain the {gateway}, {stage} and {instance_id} placeholders.
	BasePath string `yaml:"basePath,omitempty"`
}

// StageConfig holds the templates used to render stage addresses
type StageConfig struct {
	// DomainTemplate renders the stage domain, e.g. "{gateway}.example.com"
	DomainTemplate string `yaml:"domainTemplate,omitempty"`

	// PathPrefixTemplate renders the stage path prefix, e.g. "/{stage}/"
	PathPrefixTemplate string `yaml:"pathPrefixTemplate,omitempty"`
}

// PublishConfig tunes the publish pipeline
type PublishConfig struct {
	// Workers is the number of tasks the worker pool runs concurrently
	Workers int64 `yaml:"workers,omitempty"`

	// EventFailInterval is how long a non final successful step may go without
	// a successor before the attempt is reported as failed (e.g. "5m")
	EventFailInterval string `yaml:"eventFailInterval,omitempty"`

	// DoingTimeout is how long a step may stay in progress (e.g. "600s")
	DoingTimeout string `yaml:"doingTimeout,omitempty"`

	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig is the retry policy applied to publish tasks
type RetryConfig struct {
	MaxAttempts     uint   `yaml:"maxAttempts,omitempty"`
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
}

// RetentionConfig controls deletion of old publish events
type RetentionConfig struct {
	// Window is the age after which events are deleted (e.g. "720h")
	Window string `yaml:"window,omitempty"`

	// Interval is how often the retention loop runs (e.g. "1h")
	Interval string `yaml:"interval,omitempty"`
}

// DistributionConfig selects how manifests reach gateway instances
type DistributionConfig struct {
	// Strategy is either "registry" or "bundle"
	Strategy string `yaml:"strategy,omitempty"`

	// BundleDir is where bundles are rendered when using the bundle strategy
	BundleDir string `yaml:"bundleDir,omitempty"`
}

// EventsConfig selects where publish events are stored
type EventsConfig struct {
	// Store is one of "memory", "file" or "database"
	Store string `yaml:"store,omitempty"`

	// Dir is the directory used by the file store
	Dir string `yaml:"dir,omitempty"`
}

// SourceConfig defines where gateway configuration is read from
type SourceConfig struct {
	File *FileSourceConfig `yaml:"file,omitempty"`
}

// FileSourceConfig reads gateway configuration from a snapshot file
type FileSourceConfig struct {
	// Path is the path to a YAML or JSON snapshot
	Path string `yaml:"path"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from GW_RELEASE_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if len(c.Controller.Endpoints) == 0 {
		errs = append(errs, fmt.Errorf("controller.endpoints: at least one endpoint is required"))
	}
	for i, ep := range c.Controller.Endpoints {
		if _, err := url.Parse(ep); err != nil {
			errs = append(errs, fmt.Errorf("controller.endpoints[%d]: %w", i, err))
		}
	}

	if c.Publish.Workers < 0 {
		errs = append(errs, fmt.Errorf("publish.workers must not be negative"))
	}

	for field, value := range map[string]string{
		"publish.eventFailInterval":     c.Publish.EventFailInterval,
		"publish.doingTimeout":          c.Publish.DoingTimeout,
		"publish.retry.initialInterval": c.Publish.Retry.InitialInterval,
		"publish.retry.maxInterval":     c.Publish.Retry.MaxInterval,
		"retention.window":              c.Retention.Window,
		"retention.interval":            c.Retention.Interval,
	} {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Distribution.Strategy {
	case "", StrategyRegistry, StrategyBundle:
	default:
		errs = append(errs, fmt.Errorf("distribution.strategy must be %q or %q, got %q",
			StrategyRegistry, StrategyBundle, c.Distribution.Strategy))
	}

	switch c.Events.Store {
	case "", EventStoreMemory, EventStoreFile:
	case EventStoreDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("events.store %q requires a database configuration", EventStoreDatabase))
		}
	default:
		errs = append(errs, fmt.Errorf("events.store must be one of %q, %q or %q, got %q",
			EventStoreMemory, EventStoreFile, EventStoreDatabase, c.Events.Store))
	}

	if c.Source != nil && c.Source.File != nil && c.Source.File.Path == "" {
		errs = append(errs, fmt.Errorf("source.file.path is required"))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// validateDuration checks that an optional duration field parses and is positive
func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

// parseDurationOr parses a validated duration, returning def when unset
func parseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetBasePath returns the controller base path template
func (c *ControllerConfig) GetBasePath() string {
	if c.BasePath == "" {
		return defaultBasePath
	}
	return c.BasePath
}

// GetDomainTemplate returns the stage domain template
func (s *StageConfig) GetDomainTemplate() string {
	if s.DomainTemplate == "" {
		return defaultDomainTemplate
	}
	return s.DomainTemplate
}

// GetPathPrefixTemplate returns the stage path prefix template
func (s *StageConfig) GetPathPrefixTemplate() string {
	if s.PathPrefixTemplate == "" {
		return defaultPathPrefixTemplate
	}
	return s.PathPrefixTemplate
}

// GetWorkers returns the worker pool size
func (p *PublishConfig) GetWorkers() int64 {
	if p.Workers == 0 {
		return DefaultWorkers
	}
	return p.Workers
}

// GetEventFailInterval returns the abandoned chain threshold
func (p *PublishConfig) GetEventFailInterval() time.Duration {
	return parseDurationOr(p.EventFailInterval, DefaultEventFailInterval)
}

// GetDoingTimeout returns the stalled step threshold
func (p *PublishConfig) GetDoingTimeout() time.Duration {
	return parseDurationOr(p.DoingTimeout, DefaultDoingTimeout)
}

// GetMaxAttempts returns the number of attempts a task gets before it fails
func (r *RetryConfig) GetMaxAttempts() uint {
	if r.MaxAttempts == 0 {
		return defaultMaxAttempts
	}
	return r.MaxAttempts
}

// GetInitialInterval returns the first retry delay
func (r *RetryConfig) GetInitialInterval() time.Duration {
	return parseDurationOr(r.InitialInterval, defaultInitialInterval)
}

// GetMaxInterval returns the upper bound of the retry delay
func (r *RetryConfig) GetMaxInterval() time.Duration {
	return parseDurationOr(r.MaxInterval, defaultMaxInterval)
}

// GetWindow returns the event retention window
func (r *RetentionConfig) GetWindow() time.Duration {
	return parseDurationOr(r.Window, DefaultRetentionWindow)
}

// GetInterval returns the period of the retention loop
func (r *RetentionConfig) GetInterval() time.Duration {
	return parseDurationOr(r.Interval, DefaultRetentionInterval)
}

// GetStrategy returns the distribution strategy
func (d *DistributionConfig) GetStrategy() string {
	if d.Strategy == "" {
		return StrategyRegistry
	}
	return d.Strategy
}

// GetBundleDir returns the bundle output directory
func (d *DistributionConfig) GetBundleDir() string {
	if d.BundleDir == "" {
		return defaultBundleDir
	}
	return d.BundleDir
}

// GetStore returns the event store type
func (e *EventsConfig) GetStore() string {
	if e.Store == "" {
		return EventStoreMemory
	}
	return e.Store
}

// GetDir returns the directory of the file event store
func (e *EventsConfig) GetDir() string {
	if e.Dir == "" {
		return defaultEventsDir
	}
	return e.Dir
}
