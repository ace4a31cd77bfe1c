package storage

import (
	"fmt"

	"biocollect/internal/models"
)

// Factory provides a centralized way to create storage instances based on
// configuration. This allows for easy extensibility and provider swapping
// without code changes.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - memory: In-memory storage (for testing/development)
//   - sqlite: SQLite database storage (single-node deployments)
//   - postgres: PostgreSQL database storage (production-ready)
func (f *Factory) Create(config models.StorageConfig) (Storage, error) {
	storageConfig := Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.DSN,
	}

	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(storageConfig)
	case models.StorageTypePostgres:
		return NewPostgresStorage(storageConfig)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StorageTypeMemory, models.StorageTypeSQLite, models.StorageTypePostgres}
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	switch config.Type {
	case models.StorageTypeMemory:
		// Memory storage requires no additional configuration
	case models.StorageTypeSQLite:
		if config.Path == "" && config.Database.DSN == "" {
			return fmt.Errorf("path or DSN is required for sqlite storage")
		}
	case models.StorageTypePostgres:
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	return nil
}
