package storage

import (
	"context"

	"biocollect/internal/models"
)

// Storage defines the interface for collected data persistence and retrieval.
// It provides a clean abstraction that can be implemented by different
// backends such as in-memory maps, SQLite, or PostgreSQL.
type Storage interface {
	// SaveEntry stores or updates a PFAM/InterPro entry
	SaveEntry(ctx context.Context, entry *models.Entry) error

	// GetEntry retrieves an entry by its accession
	GetEntry(ctx context.Context, accession string) (*models.Entry, error)

	// Entries returns all stored entries
	Entries(ctx context.Context) ([]*models.Entry, error)

	// SaveProtein stores or updates a protein record
	SaveProtein(ctx context.Context, protein *models.Protein) error

	// GetProtein retrieves a protein by its UniProt accession
	GetProtein(ctx context.Context, accession string) (*models.Protein, error)

	// Proteins returns stored proteins, optionally filtered by owning entry
	// accession (empty string means all)
	Proteins(ctx context.Context, entryAccession string) ([]*models.Protein, error)

	// SaveIsoform stores or updates a protein isoform
	SaveIsoform(ctx context.Context, isoform *models.Isoform) error

	// Isoforms returns all isoforms of a parent protein
	Isoforms(ctx context.Context, parentAccession string) ([]*models.Isoform, error)

	// Counts returns record totals across all tables
	Counts(ctx context.Context) (Counts, error)

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Counts holds record totals per table.
type Counts struct {
	Entries  int64 `json:"entries"`
	Proteins int64 `json:"proteins"`
	Isoforms int64 `json:"isoforms"`
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`
}
