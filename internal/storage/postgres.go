package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"biocollect/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS entries (
	accession        TEXT PRIMARY KEY,
	entry_type       TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT,
	interpro_type    TEXT,
	member_databases JSONB,
	interpro_id      TEXT,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS proteins (
	accession       TEXT PRIMARY KEY,
	entry_accession TEXT NOT NULL,
	name            TEXT NOT NULL,
	organism        TEXT,
	taxonomy_id     INTEGER,
	sequence        TEXT,
	length          INTEGER NOT NULL,
	reviewed        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proteins_entry ON proteins(entry_accession);

CREATE TABLE IF NOT EXISTS isoforms (
	isoform_id        TEXT PRIMARY KEY,
	parent_accession  TEXT NOT NULL,
	name              TEXT,
	sequence          TEXT,
	is_canonical      BOOLEAN NOT NULL DEFAULT FALSE,
	sequence_features JSONB,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_isoforms_parent ON isoforms(parent_accession);
`

// PostgresStorage implements the Storage interface using PostgreSQL through a
// pgx connection pool. Suitable for multi-instance deployments.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and applies
// the schema.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	pool, err := pgxpool.New(context.Background(), config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// SaveEntry stores or updates an entry (upsert pattern).
func (ps *PostgresStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO entries (accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (accession) DO UPDATE SET
			entry_type = EXCLUDED.entry_type,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			interpro_type = EXCLUDED.interpro_type,
			member_databases = EXCLUDED.member_databases,
			interpro_id = EXCLUDED.interpro_id`,
		entry.Accession, entry.EntryType, entry.Name, stringToPgText(entry.Description),
		stringToPgText(entry.InterProType), entry.MemberDatabases, stringToPgText(entry.InterProID),
		timeToPgTimestamptz(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.Accession, err)
	}
	return nil
}

// GetEntry retrieves an entry by its accession.
func (ps *PostgresStorage) GetEntry(ctx context.Context, accession string) (*models.Entry, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at
		FROM entries WHERE accession = $1`, accession)

	entry, err := scanPgEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", accession, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// Entries returns all stored entries sorted by accession.
func (ps *PostgresStorage) Entries(ctx context.Context) ([]*models.Entry, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at
		FROM entries ORDER BY accession`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.Entry{}
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveProtein stores or updates a protein record (upsert pattern).
func (ps *PostgresStorage) SaveProtein(ctx context.Context, protein *models.Protein) error {
	if err := protein.Validate(); err != nil {
		return fmt.Errorf("invalid protein: %w", err)
	}

	createdAt := protein.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO proteins (accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (accession) DO UPDATE SET
			entry_accession = EXCLUDED.entry_accession,
			name = EXCLUDED.name,
			organism = EXCLUDED.organism,
			taxonomy_id = EXCLUDED.taxonomy_id,
			sequence = EXCLUDED.sequence,
			length = EXCLUDED.length,
			reviewed = EXCLUDED.reviewed`,
		protein.Accession, protein.EntryAccession, protein.Name, stringToPgText(protein.Organism),
		protein.TaxonomyID, stringToPgText(protein.Sequence), protein.Length, protein.Reviewed,
		timeToPgTimestamptz(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save protein %s: %w", protein.Accession, err)
	}
	return nil
}

// GetProtein retrieves a protein by its UniProt accession.
func (ps *PostgresStorage) GetProtein(ctx context.Context, accession string) (*models.Protein, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at
		FROM proteins WHERE accession = $1`, accession)

	protein, err := scanPgProtein(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("protein %s: %w", accession, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get protein: %w", err)
	}
	return protein, nil
}

// Proteins returns stored proteins, optionally filtered by owning entry.
func (ps *PostgresStorage) Proteins(ctx context.Context, entryAccession string) ([]*models.Protein, error) {
	query := `
		SELECT accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at
		FROM proteins`
	args := []any{}
	if entryAccession != "" {
		query += ` WHERE entry_accession = $1`
		args = append(args, entryAccession)
	}
	query += ` ORDER BY accession`

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proteins: %w", err)
	}
	defer rows.Close()

	proteins := []*models.Protein{}
	for rows.Next() {
		protein, err := scanPgProtein(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protein: %w", err)
		}
		proteins = append(proteins, protein)
	}
	return proteins, rows.Err()
}

// SaveIsoform stores or updates a protein isoform (upsert pattern).
func (ps *PostgresStorage) SaveIsoform(ctx context.Context, isoform *models.Isoform) error {
	if err := isoform.Validate(); err != nil {
		return fmt.Errorf("invalid isoform: %w", err)
	}

	createdAt := isoform.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO isoforms (isoform_id, parent_accession, name, sequence, is_canonical, sequence_features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (isoform_id) DO UPDATE SET
			parent_accession = EXCLUDED.parent_accession,
			name = EXCLUDED.name,
			sequence = EXCLUDED.sequence,
			is_canonical = EXCLUDED.is_canonical,
			sequence_features = EXCLUDED.sequence_features`,
		isoform.IsoformID, isoform.ParentAccession, stringToPgText(isoform.Name),
		stringToPgText(isoform.Sequence), isoform.IsCanonical, isoform.SequenceFeatures,
		timeToPgTimestamptz(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save isoform %s: %w", isoform.IsoformID, err)
	}
	return nil
}

// Isoforms returns all isoforms of a parent protein.
func (ps *PostgresStorage) Isoforms(ctx context.Context, parentAccession string) ([]*models.Isoform, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT isoform_id, parent_accession, name, sequence, is_canonical, sequence_features, created_at
		FROM isoforms WHERE parent_accession = $1 ORDER BY isoform_id`, parentAccession)
	if err != nil {
		return nil, fmt.Errorf("failed to query isoforms: %w", err)
	}
	defer rows.Close()

	isoforms := []*models.Isoform{}
	for rows.Next() {
		var (
			iso       models.Isoform
			name      pgtype.Text
			sequence  pgtype.Text
			features  []string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&iso.IsoformID, &iso.ParentAccession, &name, &sequence,
			&iso.IsCanonical, &features, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan isoform: %w", err)
		}
		iso.Name = pgTextToString(name)
		iso.Sequence = pgTextToString(sequence)
		iso.SequenceFeatures = features
		if createdAt.Valid {
			iso.CreatedAt = createdAt.Time
		}
		isoforms = append(isoforms, &iso)
	}
	return isoforms, rows.Err()
}

// Counts returns record totals across all tables.
func (ps *PostgresStorage) Counts(ctx context.Context) (Counts, error) {
	var counts Counts

	row := ps.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM proteins),
			(SELECT COUNT(*) FROM isoforms)`)
	if err := row.Scan(&counts.Entries, &counts.Proteins, &counts.Isoforms); err != nil {
		return Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return counts, nil
}

// Ping verifies the storage backend is reachable and operational.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the storage connection.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

// Conversion helpers

func scanPgEntry(row pgx.Row) (*models.Entry, error) {
	var (
		entry        models.Entry
		description  pgtype.Text
		interproType pgtype.Text
		memberDBs    map[string]string
		interproID   pgtype.Text
		createdAt    pgtype.Timestamptz
	)
	if err := row.Scan(&entry.Accession, &entry.EntryType, &entry.Name, &description,
		&interproType, &memberDBs, &interproID, &createdAt); err != nil {
		return nil, err
	}

	entry.Description = pgTextToString(description)
	entry.InterProType = pgTextToString(interproType)
	entry.MemberDatabases = memberDBs
	entry.InterProID = pgTextToString(interproID)
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}

	return &entry, nil
}

func scanPgProtein(row pgx.Row) (*models.Protein, error) {
	var (
		protein   models.Protein
		organism  pgtype.Text
		taxonomy  pgtype.Int4
		sequence  pgtype.Text
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&protein.Accession, &protein.EntryAccession, &protein.Name, &organism,
		&taxonomy, &sequence, &protein.Length, &protein.Reviewed, &createdAt); err != nil {
		return nil, err
	}

	protein.Organism = pgTextToString(organism)
	protein.TaxonomyID = int(taxonomy.Int32)
	protein.Sequence = pgTextToString(sequence)
	if createdAt.Valid {
		protein.CreatedAt = createdAt.Time
	}

	return &protein, nil
}

// pgtype helpers

func pgTextToString(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func stringToPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
