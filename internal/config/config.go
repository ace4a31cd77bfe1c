// Package config loads service configuration from an optional YAML file and
// BIOCOLLECT_* environment variables, with environment taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"biocollect/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// API configuration
	if url := os.Getenv("BIOCOLLECT_UNIPROT_BASE_URL"); url != "" {
		config.API.UniProtBaseURL = url
	}

	if url := os.Getenv("BIOCOLLECT_INTERPRO_BASE_URL"); url != "" {
		config.API.InterProBaseURL = url
	}

	if timeout := os.Getenv("BIOCOLLECT_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.API.RequestTimeout = d
		}
	}

	// Rate limiting configuration
	if rps := os.Getenv("BIOCOLLECT_UNIPROT_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			config.RateLimit.UniProt.RequestsPerSecond = r
		}
	}

	if burst := os.Getenv("BIOCOLLECT_UNIPROT_BURST_LIMIT"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			config.RateLimit.UniProt.BurstLimit = b
		}
	}

	if rps := os.Getenv("BIOCOLLECT_INTERPRO_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			config.RateLimit.InterPro.RequestsPerSecond = r
		}
	}

	if burst := os.Getenv("BIOCOLLECT_INTERPRO_BURST_LIMIT"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			config.RateLimit.InterPro.BurstLimit = b
		}
	}

	if threshold := os.Getenv("BIOCOLLECT_SOFT_LIMIT_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.RateLimit.SoftLimitThreshold = t
		}
	}

	// Retry configuration
	if retries := os.Getenv("BIOCOLLECT_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Retry.MaxRetries = r
		}
	}

	if delay := os.Getenv("BIOCOLLECT_RETRY_INITIAL_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Retry.InitialDelay = d
		}
	}

	if delay := os.Getenv("BIOCOLLECT_RETRY_MAX_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Retry.MaxDelay = d
		}
	}

	// Cache configuration
	if cache := os.Getenv("BIOCOLLECT_CACHE_ENABLED"); cache != "" {
		config.Cache.Enabled = strings.ToLower(cache) == "true"
	}

	if ttl := os.Getenv("BIOCOLLECT_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Cache.DefaultTTL = d
		}
	}

	if maxEntries := os.Getenv("BIOCOLLECT_CACHE_MAX_ENTRIES"); maxEntries != "" {
		if n, err := strconv.Atoi(maxEntries); err == nil {
			config.Cache.MaxEntries = n
		}
	}

	if strategy := os.Getenv("BIOCOLLECT_CACHE_STRATEGY"); strategy != "" {
		config.Cache.Strategy = strings.ToLower(strategy)
	}

	if compress := os.Getenv("BIOCOLLECT_CACHE_COMPRESSION"); compress != "" {
		config.Cache.Compression = strings.ToLower(compress) == "true"
	}

	// Storage configuration
	if storageType := os.Getenv("BIOCOLLECT_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}

	if storagePath := os.Getenv("BIOCOLLECT_STORAGE_PATH"); storagePath != "" {
		config.Storage.Path = storagePath
	}

	if dsn := os.Getenv("BIOCOLLECT_DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
	}

	// Collection configuration
	if batch := os.Getenv("BIOCOLLECT_BATCH_SIZE"); batch != "" {
		if b, err := strconv.Atoi(batch); err == nil {
			config.Collection.BatchSize = b
		}
	}

	if progress := os.Getenv("BIOCOLLECT_PROGRESS_FILE"); progress != "" {
		config.Collection.ProgressFile = progress
	}

	if resume := os.Getenv("BIOCOLLECT_RESUME"); resume != "" {
		config.Collection.Resume = strings.ToLower(resume) == "true"
	}

	// Server configuration
	if port := os.Getenv("BIOCOLLECT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("BIOCOLLECT_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("BIOCOLLECT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("BIOCOLLECT_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("BIOCOLLECT_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("BIOCOLLECT_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("BIOCOLLECT_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if port := os.Getenv("BIOCOLLECT_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Tracing configuration
	if tracing := os.Getenv("BIOCOLLECT_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if endpoint := os.Getenv("BIOCOLLECT_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
		config.Observability.Tracing.Exporter = "otlp"
	}
}
