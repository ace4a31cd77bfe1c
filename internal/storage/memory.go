package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"biocollect/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. This provider is ideal for development and testing; data is
// lost on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	entries  map[string]*models.Entry
	proteins map[string]*models.Protein
	isoforms map[string][]*models.Isoform // key: parent accession
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		entries:  make(map[string]*models.Entry),
		proteins: make(map[string]*models.Protein),
		isoforms: make(map[string][]*models.Isoform),
	}, nil
}

// SaveEntry stores or updates an entry
func (m *MemoryStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy to prevent external modification
	entryCopy := *entry
	if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = time.Now()
	}
	m.entries[entry.Accession] = &entryCopy

	return nil
}

// GetEntry retrieves an entry by its accession
func (m *MemoryStorage) GetEntry(ctx context.Context, accession string) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[accession]
	if !exists {
		return nil, fmt.Errorf("entry %s: %w", accession, ErrNotFound)
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// Entries returns all stored entries sorted by accession
func (m *MemoryStorage) Entries(ctx context.Context) ([]*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Accession < entries[j].Accession
	})

	return entries, nil
}

// SaveProtein stores or updates a protein record
func (m *MemoryStorage) SaveProtein(ctx context.Context, protein *models.Protein) error {
	if err := protein.Validate(); err != nil {
		return fmt.Errorf("invalid protein: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	proteinCopy := *protein
	if proteinCopy.CreatedAt.IsZero() {
		proteinCopy.CreatedAt = time.Now()
	}
	m.proteins[protein.Accession] = &proteinCopy

	return nil
}

// GetProtein retrieves a protein by its UniProt accession
func (m *MemoryStorage) GetProtein(ctx context.Context, accession string) (*models.Protein, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	protein, exists := m.proteins[accession]
	if !exists {
		return nil, fmt.Errorf("protein %s: %w", accession, ErrNotFound)
	}

	proteinCopy := *protein
	return &proteinCopy, nil
}

// Proteins returns stored proteins, optionally filtered by owning entry
func (m *MemoryStorage) Proteins(ctx context.Context, entryAccession string) ([]*models.Protein, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proteins := make([]*models.Protein, 0, len(m.proteins))
	for _, protein := range m.proteins {
		if entryAccession != "" && protein.EntryAccession != entryAccession {
			continue
		}
		proteinCopy := *protein
		proteins = append(proteins, &proteinCopy)
	}

	sort.Slice(proteins, func(i, j int) bool {
		return proteins[i].Accession < proteins[j].Accession
	})

	return proteins, nil
}

// SaveIsoform stores or updates a protein isoform
func (m *MemoryStorage) SaveIsoform(ctx context.Context, isoform *models.Isoform) error {
	if err := isoform.Validate(); err != nil {
		return fmt.Errorf("invalid isoform: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	isoformCopy := *isoform
	if isoformCopy.CreatedAt.IsZero() {
		isoformCopy.CreatedAt = time.Now()
	}

	parent := isoformCopy.ParentAccession
	existing := m.isoforms[parent]
	for i, iso := range existing {
		if iso.IsoformID == isoformCopy.IsoformID {
			existing[i] = &isoformCopy
			return nil
		}
	}
	m.isoforms[parent] = append(existing, &isoformCopy)

	return nil
}

// Isoforms returns all isoforms of a parent protein
func (m *MemoryStorage) Isoforms(ctx context.Context, parentAccession string) ([]*models.Isoform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	isoforms, exists := m.isoforms[parentAccession]
	if !exists {
		return []*models.Isoform{}, nil
	}

	result := make([]*models.Isoform, len(isoforms))
	for i, isoform := range isoforms {
		isoformCopy := *isoform
		result[i] = &isoformCopy
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].IsoformID < result[j].IsoformID
	})

	return result, nil
}

// Counts returns record totals
func (m *MemoryStorage) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := Counts{
		Entries:  int64(len(m.entries)),
		Proteins: int64(len(m.proteins)),
	}
	for _, isoforms := range m.isoforms {
		counts.Isoforms += int64(len(isoforms))
	}

	return counts, nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
