// Package collector orchestrates the phased collection of protein data:
// entries first, then the proteins cross-referenced to each entry, then the
// isoforms of each protein. Progress is checkpointed to disk after every
// completed unit so interrupted runs resume without repeating work.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"biocollect/internal/errs"
	"biocollect/internal/models"
	"biocollect/internal/storage"
)

// EntrySource fetches PFAM/InterPro entry metadata.
type EntrySource interface {
	GetEntry(ctx context.Context, accession string) (*models.Entry, error)
}

// ProteinSource fetches proteins and isoforms from UniProt.
type ProteinSource interface {
	SearchByEntry(ctx context.Context, entryAccession string, batchSize int) ([]*models.Protein, error)
	GetIsoforms(ctx context.Context, accession string) ([]*models.Isoform, error)
}

// Report summarizes one collection run.
type Report struct {
	RunID             string        `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Duration          time.Duration `json:"duration"`
	EntriesCollected  int           `json:"entries_collected"`
	ProteinsCollected int           `json:"proteins_collected"`
	IsoformsCollected int           `json:"isoforms_collected"`
	Skipped           int           `json:"skipped"`
	Resumed           bool          `json:"resumed"`
}

// Collector runs the collection pipeline.
type Collector struct {
	cfg      models.CollectionConfig
	entries  EntrySource
	proteins ProteinSource
	store    storage.Storage
	logger   *slog.Logger
}

// New creates a collector.
func New(cfg models.CollectionConfig, entries EntrySource, proteins ProteinSource, store storage.Storage, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:      cfg,
		entries:  entries,
		proteins: proteins,
		store:    store,
		logger:   logger,
	}
}

// Run collects the given entries and everything beneath them. When resume is
// enabled and a matching checkpoint exists, completed work is skipped.
func (c *Collector) Run(ctx context.Context, entryAccessions []string) (Report, error) {
	progress, resumed, err := c.prepareProgress(entryAccessions)
	if err != nil {
		return Report{}, err
	}

	c.logger.Info("collection run starting",
		"run_id", progress.RunID,
		"entries", len(entryAccessions),
		"phase", progress.Phase,
		"resumed", resumed,
	)

	if progress.Phase == PhaseEntries {
		if err := c.collectEntries(ctx, progress); err != nil {
			return c.report(progress, resumed), err
		}
		progress.Phase = PhaseProteins
		c.checkpoint(progress)
	}

	if progress.Phase == PhaseProteins {
		if err := c.collectProteins(ctx, progress); err != nil {
			return c.report(progress, resumed), err
		}
		progress.Phase = PhaseIsoforms
		c.checkpoint(progress)
	}

	if progress.Phase == PhaseIsoforms {
		if err := c.collectIsoforms(ctx, progress); err != nil {
			return c.report(progress, resumed), err
		}
		progress.Phase = PhaseDone
		c.checkpoint(progress)
	}

	report := c.report(progress, resumed)
	c.logger.Info("collection run finished",
		"run_id", report.RunID,
		"duration", report.Duration,
		"entries_collected", report.EntriesCollected,
		"proteins_collected", report.ProteinsCollected,
		"isoforms_collected", report.IsoformsCollected,
		"skipped", report.Skipped,
	)

	return report, nil
}

func (c *Collector) prepareProgress(entryAccessions []string) (*Progress, bool, error) {
	if c.cfg.Resume && c.cfg.ProgressFile != "" {
		existing, err := LoadProgress(c.cfg.ProgressFile)
		if err != nil {
			return nil, false, err
		}
		if existing != nil && existing.Matches(entryAccessions) && existing.Phase != PhaseDone {
			return existing, true, nil
		}
	}
	return NewProgress(entryAccessions), false, nil
}

func (c *Collector) collectEntries(ctx context.Context, progress *Progress) error {
	for _, accession := range progress.EntryAccessions {
		if progress.EntriesDone[accession] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := c.entries.GetEntry(ctx, accession)
		if err != nil {
			if c.skippable(err, "entry", accession, progress) {
				progress.EntriesDone[accession] = true
				c.checkpoint(progress)
				continue
			}
			return fmt.Errorf("failed to collect entry %s: %w", accession, err)
		}

		if err := c.store.SaveEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to store entry %s: %w", accession, err)
		}

		progress.EntriesDone[accession] = true
		progress.EntriesCollected++
		c.checkpoint(progress)

		c.logger.Debug("collected entry", "accession", accession, "name", entry.Name)
	}
	return nil
}

func (c *Collector) collectProteins(ctx context.Context, progress *Progress) error {
	for _, accession := range progress.EntryAccessions {
		if progress.ProteinsDone[accession] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		proteins, err := c.proteins.SearchByEntry(ctx, accession, c.cfg.BatchSize)
		if err != nil {
			if c.skippable(err, "proteins", accession, progress) {
				progress.ProteinsDone[accession] = true
				c.checkpoint(progress)
				continue
			}
			return fmt.Errorf("failed to collect proteins for %s: %w", accession, err)
		}

		for _, protein := range proteins {
			if err := c.store.SaveProtein(ctx, protein); err != nil {
				return fmt.Errorf("failed to store protein %s: %w", protein.Accession, err)
			}
			progress.ProteinsCollected++
		}

		progress.ProteinsDone[accession] = true
		c.checkpoint(progress)

		c.logger.Debug("collected proteins", "entry_accession", accession, "count", len(proteins))
	}
	return nil
}

func (c *Collector) collectIsoforms(ctx context.Context, progress *Progress) error {
	proteins, err := c.store.Proteins(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list stored proteins: %w", err)
	}

	for _, protein := range proteins {
		if progress.IsoformsDone[protein.Accession] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		isoforms, err := c.proteins.GetIsoforms(ctx, protein.Accession)
		if err != nil {
			if c.skippable(err, "isoforms", protein.Accession, progress) {
				progress.IsoformsDone[protein.Accession] = true
				c.checkpoint(progress)
				continue
			}
			return fmt.Errorf("failed to collect isoforms for %s: %w", protein.Accession, err)
		}

		for _, isoform := range isoforms {
			if err := c.store.SaveIsoform(ctx, isoform); err != nil {
				return fmt.Errorf("failed to store isoform %s: %w", isoform.IsoformID, err)
			}
			progress.IsoformsCollected++
		}

		progress.IsoformsDone[protein.Accession] = true
		c.checkpoint(progress)
	}
	return nil
}

// skippable consults the error classifier: skip and log_and_continue
// failures are recorded and collection moves on; anything else aborts the
// run.
func (c *Collector) skippable(err error, unit, accession string, progress *Progress) bool {
	classification := errs.Classify(err)
	if classification.Action != errs.ActionSkip && classification.Action != errs.ActionLogAndContinue {
		return false
	}

	progress.Skipped++
	c.logger.Warn("skipping failed unit",
		"unit", unit,
		"accession", accession,
		"error_category", string(classification.Category),
		"error", err,
	)
	return true
}

// checkpoint persists progress, logging failures without aborting the run.
func (c *Collector) checkpoint(progress *Progress) {
	if c.cfg.ProgressFile == "" {
		return
	}
	if err := progress.Save(c.cfg.ProgressFile); err != nil {
		c.logger.Error("failed to save progress checkpoint", "error", err)
	}
}

func (c *Collector) report(progress *Progress, resumed bool) Report {
	now := time.Now()
	return Report{
		RunID:             progress.RunID,
		StartedAt:         progress.StartedAt,
		FinishedAt:        now,
		Duration:          now.Sub(progress.StartedAt),
		EntriesCollected:  progress.EntriesCollected,
		ProteinsCollected: progress.ProteinsCollected,
		IsoformsCollected: progress.IsoformsCollected,
		Skipped:           progress.Skipped,
		Resumed:           resumed,
	}
}
