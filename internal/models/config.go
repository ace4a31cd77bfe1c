// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components:
// external API endpoints, outbound rate limiting, retry behavior, response
// caching, storage, collection, logging, and observability.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// Cache eviction strategy constants
const (
	CacheStrategyLRU  = "lru"
	CacheStrategyLFU  = "lfu"
	CacheStrategyFIFO = "fifo"
	CacheStrategyTTL  = "ttl"
)

// API name constants used to key rate limiters and cache TTL overrides.
const (
	APINameUniProt  = "UniProt"
	APINameInterPro = "InterPro"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	API           APIConfig           `yaml:"api" json:"api"`                     // External API endpoints and timeouts
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`       // Outbound rate limiting
	Retry         RetryConfig         `yaml:"retry" json:"retry"`                 // Retry behavior for external calls
	Cache         CacheConfig         `yaml:"cache" json:"cache"`                 // Response caching
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Data persistence settings
	Collection    CollectionConfig    `yaml:"collection" json:"collection"`       // Collection orchestration
	Server        ServerConfig        `yaml:"server" json:"server"`               // Status API server
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus metrics endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

// APIConfig holds external API endpoints and HTTP timeouts.
type APIConfig struct {
	UniProtBaseURL  string        `yaml:"uniprot_base_url" json:"uniprot_base_url"`
	InterProBaseURL string        `yaml:"interpro_base_url" json:"interpro_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// APIRateConfig holds the per-API rate ceiling and burst parameters.
type APIRateConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	BurstLimit        int           `yaml:"burst_limit" json:"burst_limit"`
	BurstWindow       time.Duration `yaml:"burst_window" json:"burst_window"`
}

// RateLimitConfig holds rate limiting settings for all external APIs.
// Violation backoff and monitoring settings are shared across APIs.
type RateLimitConfig struct {
	UniProt  APIRateConfig `yaml:"uniprot" json:"uniprot"`
	InterPro APIRateConfig `yaml:"interpro" json:"interpro"`

	ViolationInitialDelay      time.Duration `yaml:"violation_initial_delay" json:"violation_initial_delay"`
	ViolationBackoffMultiplier float64       `yaml:"violation_backoff_multiplier" json:"violation_backoff_multiplier"`
	ViolationMaxDelay          time.Duration `yaml:"violation_max_delay" json:"violation_max_delay"`

	SoftLimitThreshold float64 `yaml:"soft_limit_threshold" json:"soft_limit_threshold"`
	EnableMonitoring   bool    `yaml:"enable_monitoring" json:"enable_monitoring"`
	EnableReporting    bool    `yaml:"enable_reporting" json:"enable_reporting"`
}

// RetryConfig holds retry behavior for all external API calls.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay      time.Duration `yaml:"initial_delay" json:"initial_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled         bool                     `yaml:"enabled" json:"enabled"`
	DefaultTTL      time.Duration            `yaml:"default_ttl" json:"default_ttl"`
	APITTL          map[string]time.Duration `yaml:"api_ttl" json:"api_ttl"`
	MaxEntries      int                      `yaml:"max_entries" json:"max_entries"`
	MaxMemoryMB     int                      `yaml:"max_memory_mb" json:"max_memory_mb"`
	Strategy        string                   `yaml:"strategy" json:"strategy"`
	CleanupInterval time.Duration            `yaml:"cleanup_interval" json:"cleanup_interval"`
	Compression     bool                     `yaml:"compression" json:"compression"`
}

// StorageConfig holds data persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

// DatabaseConfig holds connection settings for database backends.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// CollectionConfig holds collection orchestration settings.
type CollectionConfig struct {
	BatchSize    int    `yaml:"batch_size" json:"batch_size"`
	ProgressFile string `yaml:"progress_file" json:"progress_file"`
	Resume       bool   `yaml:"resume" json:"resume"`
}

// ServerConfig holds the status/query API server settings.
type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

// ObservabilityConfig holds tracing settings.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

// TracingConfig holds trace exporter settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with defaults matching the public
// rate limits of the upstream databases: UniProt at 5 requests/second and
// InterPro at 10 requests/second, with burst windows of one minute.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			UniProtBaseURL:  "https://rest.uniprot.org/",
			InterProBaseURL: "https://www.ebi.ac.uk/interpro/api/",
			RequestTimeout:  30 * time.Second,
			ConnectTimeout:  10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			UniProt: APIRateConfig{
				RequestsPerSecond: 5.0,
				BurstLimit:        25,
				BurstWindow:       time.Minute,
			},
			InterPro: APIRateConfig{
				RequestsPerSecond: 10.0,
				BurstLimit:        50,
				BurstWindow:       time.Minute,
			},
			ViolationInitialDelay:      time.Second,
			ViolationBackoffMultiplier: 2.0,
			ViolationMaxDelay:          5 * time.Minute,
			SoftLimitThreshold:         0.8,
			EnableMonitoring:           true,
			EnableReporting:            true,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialDelay:      time.Second,
			BackoffMultiplier: 2.0,
			MaxDelay:          time.Minute,
		},
		Cache: CacheConfig{
			Enabled:    true,
			DefaultTTL: time.Hour,
			APITTL: map[string]time.Duration{
				APINameInterPro: 2 * time.Hour,
				APINameUniProt:  time.Hour,
			},
			MaxEntries:      10000,
			MaxMemoryMB:     500,
			Strategy:        CacheStrategyLRU,
			CleanupInterval: 5 * time.Minute,
			Compression:     true,
		},
		Storage: StorageConfig{
			Type: StorageTypeSQLite,
			Path: "./data/biocollect.db",
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Collection: CollectionConfig{
			BatchSize:    100,
			ProgressFile: "./data/collection_progress.json",
			Resume:       true,
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "biocollect",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// Validate checks the full configuration for consistency.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("invalid api config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Collection.Validate(); err != nil {
		return fmt.Errorf("invalid collection config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (ac *APIConfig) Validate() error {
	if ac.UniProtBaseURL == "" {
		return errors.New("uniprot base URL cannot be empty")
	}

	if ac.InterProBaseURL == "" {
		return errors.New("interpro base URL cannot be empty")
	}

	if ac.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}

	return nil
}

func (arc *APIRateConfig) Validate() error {
	if arc.RequestsPerSecond <= 0 {
		return errors.New("requests per second must be positive")
	}

	if arc.BurstLimit <= 0 {
		return errors.New("burst limit must be positive")
	}

	if arc.BurstWindow <= 0 {
		return errors.New("burst window must be positive")
	}

	return nil
}

func (rlc *RateLimitConfig) Validate() error {
	if err := rlc.UniProt.Validate(); err != nil {
		return fmt.Errorf("uniprot: %w", err)
	}

	if err := rlc.InterPro.Validate(); err != nil {
		return fmt.Errorf("interpro: %w", err)
	}

	if rlc.ViolationInitialDelay <= 0 {
		return errors.New("violation initial delay must be positive")
	}

	if rlc.ViolationBackoffMultiplier < 1 {
		return errors.New("violation backoff multiplier must be at least 1")
	}

	if rlc.ViolationMaxDelay < rlc.ViolationInitialDelay {
		return errors.New("violation max delay cannot be less than initial delay")
	}

	if rlc.SoftLimitThreshold <= 0 || rlc.SoftLimitThreshold > 1 {
		return errors.New("soft limit threshold must be in (0, 1]")
	}

	return nil
}

func (rc *RetryConfig) Validate() error {
	if rc.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}

	if rc.InitialDelay <= 0 {
		return errors.New("initial delay must be positive")
	}

	if rc.BackoffMultiplier < 1 {
		return errors.New("backoff multiplier must be at least 1")
	}

	if rc.MaxDelay < rc.InitialDelay {
		return errors.New("max delay cannot be less than initial delay")
	}

	return nil
}

func (cc *CacheConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	validStrategies := []string{CacheStrategyLRU, CacheStrategyLFU, CacheStrategyFIFO, CacheStrategyTTL}
	found := false
	for _, vs := range validStrategies {
		if cc.Strategy == vs {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid cache strategy: %s", cc.Strategy)
	}

	if cc.DefaultTTL <= 0 {
		return errors.New("default TTL must be positive")
	}

	if cc.MaxEntries <= 0 {
		return errors.New("max entries must be positive")
	}

	if cc.MaxMemoryMB <= 0 {
		return errors.New("max memory must be positive")
	}

	if cc.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}

	return nil
}

func (sc *StorageConfig) Validate() error {
	switch sc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypeSQLite:
		if sc.Path == "" && sc.Database.DSN == "" {
			return errors.New("path or DSN is required for sqlite storage")
		}
	case StorageTypePostgres:
		if sc.Database.DSN == "" {
			return errors.New("database DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", sc.Type)
	}

	return nil
}

func (cc *CollectionConfig) Validate() error {
	if cc.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if cc.Resume && cc.ProgressFile == "" {
		return errors.New("progress file is required when resume is enabled")
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

// RateFor returns the rate configuration for a named API.
func (rlc *RateLimitConfig) RateFor(apiName string) (APIRateConfig, bool) {
	switch apiName {
	case APINameUniProt:
		return rlc.UniProt, true
	case APINameInterPro:
		return rlc.InterPro, true
	default:
		return APIRateConfig{}, false
	}
}
