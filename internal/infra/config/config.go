// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment environment.
type Environment string

// Known environments.
const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// APIServerConfig configures the HTTP surface.
type APIServerConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// DatabaseConfig controls PostgreSQL connectivity and migration behaviour.
type DatabaseConfig struct {
	DSN               string        `yaml:"dsn"`
	MigrationsDir     string        `yaml:"migrationsDir"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	RunMigrations     bool          `yaml:"runMigrations"`
}

func (c *DatabaseConfig) applyDefaults() {
	c.DSN = strings.TrimSpace(c.DSN)
	if c.DSN == "" {
		c.DSN = "postgresql://localhost:5432/fiscaldesk"
	}
	if strings.TrimSpace(c.MigrationsDir) == "" {
		c.MigrationsDir = filepath.Join("db", "migrations")
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 16
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
}

func (c DatabaseConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("maxConns must be >0")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("minConns must be >=0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("minConns must be <= maxConns")
	}
	return nil
}

// ProviderConfig configures the Infosimples consultation API client.
type ProviderConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTries      int           `yaml:"maxTries"`
	RetryInterval time.Duration `yaml:"retryInterval"`
}

// StoreConfig throttles and retries calls to the tabular backend.
type StoreConfig struct {
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxTries          int           `yaml:"maxTries"`
	InitialInterval   time.Duration `yaml:"initialInterval"`
	MaxInterval       time.Duration `yaml:"maxInterval"`
}

func (c *StoreConfig) applyDefaults() {
	if c.RequestsPerSecond <= 0 {
		// Sheet-style backends commonly allow 60 requests/min per user.
		c.RequestsPerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
	if c.MaxTries <= 0 {
		c.MaxTries = 4
	}
}

// PersistConfig names the backing tables and bounds the snapshot shards.
type PersistConfig struct {
	FactsTable    string `yaml:"factsTable"`
	SnapshotTable string `yaml:"snapshotTable"`
	ShardLimit    int    `yaml:"shardLimit"`
}

func (c *PersistConfig) applyDefaults() {
	if strings.TrimSpace(c.FactsTable) == "" {
		c.FactsTable = "perdecomp_facts"
	}
	if strings.TrimSpace(c.SnapshotTable) == "" {
		c.SnapshotTable = "perdecomp_snapshot"
	}
}

// AppConfig is the unified application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	APIServer   APIServerConfig `yaml:"apiServer"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Database    DatabaseConfig  `yaml:"database"`
	Provider    ProviderConfig  `yaml:"provider"`
	Store       StoreConfig     `yaml:"store"`
	Persist     PersistConfig   `yaml:"persist"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() AppConfig {
	cfg := AppConfig{
		Environment: EnvDev,
		APIServer:   APIServerConfig{Addr: ":8780"},
		Telemetry: TelemetryConfig{
			ServiceName:   "fiscaldesk",
			EnableMetrics: true,
		},
	}
	cfg.Database.applyDefaults()
	cfg.Store.applyDefaults()
	cfg.Persist.applyDefaults()
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file.
// Environment variables override file values after parsing.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalise()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from configPath, falling back to the
// defaults (with env overrides applied) when the file does not exist. The
// second return reports whether the file was read.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, false, err
	}
	cfg = DefaultConfig()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, false, err
	}
	return cfg, false, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}
	c.APIServer.Addr = strings.TrimSpace(c.APIServer.Addr)
	if c.APIServer.Addr == "" {
		c.APIServer.Addr = ":8780"
	}
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "fiscaldesk"
	}
	c.Provider.BaseURL = strings.TrimSpace(c.Provider.BaseURL)
	c.Provider.Token = strings.TrimSpace(c.Provider.Token)
	c.Database.applyDefaults()
	c.Store.applyDefaults()
	c.Persist.applyDefaults()
}

// applyEnvOverrides lets deployment secrets stay out of the YAML file.
func (c *AppConfig) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_ENV")); v != "" {
		c.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_API_ADDR")); v != "" {
		c.APIServer.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_DB_DSN")); v != "" {
		c.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_INFOSIMPLES_TOKEN")); v != "" {
		c.Provider.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_INFOSIMPLES_URL")); v != "" {
		c.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FISCALDESK_RUN_MIGRATIONS")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Database.RunMigrations = parsed
		}
	}
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	if strings.TrimSpace(c.APIServer.Addr) == "" {
		return fmt.Errorf("apiServer addr required")
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		return fmt.Errorf("telemetry serviceName required")
	}
	if c.Store.RequestsPerSecond <= 0 {
		return fmt.Errorf("store requestsPerSecond must be >0")
	}
	if c.Store.Burst <= 0 {
		return fmt.Errorf("store burst must be >0")
	}
	if strings.TrimSpace(c.Persist.FactsTable) == "" {
		return fmt.Errorf("persist factsTable required")
	}
	if strings.TrimSpace(c.Persist.SnapshotTable) == "" {
		return fmt.Errorf("persist snapshotTable required")
	}
	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
