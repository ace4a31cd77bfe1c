package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Collection phases, in execution order.
const (
	PhaseEntries  = "entries"
	PhaseProteins = "proteins"
	PhaseIsoforms = "isoforms"
	PhaseDone     = "done"
)

// Progress is the resumable checkpoint state of one collection run. It is
// persisted to disk after every completed unit of work so an interrupted run
// can pick up where it left off.
type Progress struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Phase     string    `json:"phase"`

	// Requested entry accessions for this run.
	EntryAccessions []string `json:"entry_accessions"`

	// Completed units per phase, keyed by accession.
	EntriesDone  map[string]bool `json:"entries_done"`
	ProteinsDone map[string]bool `json:"proteins_done"`
	IsoformsDone map[string]bool `json:"isoforms_done"`

	// Running totals.
	EntriesCollected  int `json:"entries_collected"`
	ProteinsCollected int `json:"proteins_collected"`
	IsoformsCollected int `json:"isoforms_collected"`
	Skipped           int `json:"skipped"`
}

// NewProgress creates checkpoint state for a fresh run.
func NewProgress(entryAccessions []string) *Progress {
	now := time.Now()
	return &Progress{
		RunID:           uuid.NewString(),
		StartedAt:       now,
		UpdatedAt:       now,
		Phase:           PhaseEntries,
		EntryAccessions: entryAccessions,
		EntriesDone:     make(map[string]bool),
		ProteinsDone:    make(map[string]bool),
		IsoformsDone:    make(map[string]bool),
	}
}

// LoadProgress reads checkpoint state from disk. A missing file returns
// (nil, nil) so callers can start fresh.
func LoadProgress(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse progress file: %w", err)
	}

	if p.EntriesDone == nil {
		p.EntriesDone = make(map[string]bool)
	}
	if p.ProteinsDone == nil {
		p.ProteinsDone = make(map[string]bool)
	}
	if p.IsoformsDone == nil {
		p.IsoformsDone = make(map[string]bool)
	}

	return &p, nil
}

// Save writes the checkpoint atomically via a temp file rename.
func (p *Progress) Save(path string) error {
	p.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close progress file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	return nil
}

// Matches reports whether the checkpoint belongs to a run over the same
// entry accessions, in order.
func (p *Progress) Matches(entryAccessions []string) bool {
	if len(p.EntryAccessions) != len(entryAccessions) {
		return false
	}
	for i, acc := range entryAccessions {
		if p.EntryAccessions[i] != acc {
			return false
		}
	}
	return true
}
