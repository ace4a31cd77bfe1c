package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"biocollect/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	accession        TEXT PRIMARY KEY,
	entry_type       TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT,
	interpro_type    TEXT,
	member_databases TEXT,
	interpro_id      TEXT,
	created_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS proteins (
	accession       TEXT PRIMARY KEY,
	entry_accession TEXT NOT NULL,
	name            TEXT NOT NULL,
	organism        TEXT,
	taxonomy_id     INTEGER,
	sequence        TEXT,
	length          INTEGER NOT NULL,
	reviewed        BOOLEAN NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proteins_entry ON proteins(entry_accession);

CREATE TABLE IF NOT EXISTS isoforms (
	isoform_id        TEXT PRIMARY KEY,
	parent_accession  TEXT NOT NULL,
	name              TEXT,
	sequence          TEXT,
	is_canonical      BOOLEAN NOT NULL DEFAULT 0,
	sequence_features TEXT,
	created_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_isoforms_parent ON isoforms(parent_accession);
`

// SQLiteStorage implements the Storage interface using SQLite. Suitable for
// single-node deployments and local development.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance and applies the
// schema. The parent directory of the database file is created if missing.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	dsn := config.ConnectionString
	if dsn == "" {
		dsn = config.Path
	}
	if dsn == "" {
		return nil, fmt.Errorf("path or connection string is required for SQLite storage")
	}

	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SaveEntry stores or updates an entry (upsert pattern).
func (ss *SQLiteStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	memberDBs, err := marshalStringMap(entry.MemberDatabases)
	if err != nil {
		return fmt.Errorf("failed to marshal member databases: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO entries (accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(accession) DO UPDATE SET
			entry_type = excluded.entry_type,
			name = excluded.name,
			description = excluded.description,
			interpro_type = excluded.interpro_type,
			member_databases = excluded.member_databases,
			interpro_id = excluded.interpro_id`,
		entry.Accession, entry.EntryType, entry.Name, entry.Description,
		entry.InterProType, memberDBs, entry.InterProID, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.Accession, err)
	}
	return nil
}

// GetEntry retrieves an entry by its accession.
func (ss *SQLiteStorage) GetEntry(ctx context.Context, accession string) (*models.Entry, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at
		FROM entries WHERE accession = ?`, accession)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", accession, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// Entries returns all stored entries sorted by accession.
func (ss *SQLiteStorage) Entries(ctx context.Context) ([]*models.Entry, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT accession, entry_type, name, description, interpro_type, member_databases, interpro_id, created_at
		FROM entries ORDER BY accession`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveProtein stores or updates a protein record (upsert pattern).
func (ss *SQLiteStorage) SaveProtein(ctx context.Context, protein *models.Protein) error {
	if err := protein.Validate(); err != nil {
		return fmt.Errorf("invalid protein: %w", err)
	}

	createdAt := protein.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO proteins (accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(accession) DO UPDATE SET
			entry_accession = excluded.entry_accession,
			name = excluded.name,
			organism = excluded.organism,
			taxonomy_id = excluded.taxonomy_id,
			sequence = excluded.sequence,
			length = excluded.length,
			reviewed = excluded.reviewed`,
		protein.Accession, protein.EntryAccession, protein.Name, protein.Organism,
		protein.TaxonomyID, protein.Sequence, protein.Length, protein.Reviewed, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save protein %s: %w", protein.Accession, err)
	}
	return nil
}

// GetProtein retrieves a protein by its UniProt accession.
func (ss *SQLiteStorage) GetProtein(ctx context.Context, accession string) (*models.Protein, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at
		FROM proteins WHERE accession = ?`, accession)

	protein, err := scanProtein(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("protein %s: %w", accession, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get protein: %w", err)
	}
	return protein, nil
}

// Proteins returns stored proteins, optionally filtered by owning entry.
func (ss *SQLiteStorage) Proteins(ctx context.Context, entryAccession string) ([]*models.Protein, error) {
	query := `
		SELECT accession, entry_accession, name, organism, taxonomy_id, sequence, length, reviewed, created_at
		FROM proteins`
	args := []any{}
	if entryAccession != "" {
		query += ` WHERE entry_accession = ?`
		args = append(args, entryAccession)
	}
	query += ` ORDER BY accession`

	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proteins: %w", err)
	}
	defer rows.Close()

	proteins := []*models.Protein{}
	for rows.Next() {
		protein, err := scanProtein(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protein: %w", err)
		}
		proteins = append(proteins, protein)
	}
	return proteins, rows.Err()
}

// SaveIsoform stores or updates a protein isoform (upsert pattern).
func (ss *SQLiteStorage) SaveIsoform(ctx context.Context, isoform *models.Isoform) error {
	if err := isoform.Validate(); err != nil {
		return fmt.Errorf("invalid isoform: %w", err)
	}

	features, err := marshalStringSlice(isoform.SequenceFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal sequence features: %w", err)
	}

	createdAt := isoform.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO isoforms (isoform_id, parent_accession, name, sequence, is_canonical, sequence_features, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isoform_id) DO UPDATE SET
			parent_accession = excluded.parent_accession,
			name = excluded.name,
			sequence = excluded.sequence,
			is_canonical = excluded.is_canonical,
			sequence_features = excluded.sequence_features`,
		isoform.IsoformID, isoform.ParentAccession, isoform.Name, isoform.Sequence,
		isoform.IsCanonical, features, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save isoform %s: %w", isoform.IsoformID, err)
	}
	return nil
}

// Isoforms returns all isoforms of a parent protein.
func (ss *SQLiteStorage) Isoforms(ctx context.Context, parentAccession string) ([]*models.Isoform, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT isoform_id, parent_accession, name, sequence, is_canonical, sequence_features, created_at
		FROM isoforms WHERE parent_accession = ? ORDER BY isoform_id`, parentAccession)
	if err != nil {
		return nil, fmt.Errorf("failed to query isoforms: %w", err)
	}
	defer rows.Close()

	isoforms := []*models.Isoform{}
	for rows.Next() {
		var (
			iso      models.Isoform
			name     sql.NullString
			sequence sql.NullString
			features sql.NullString
		)
		if err := rows.Scan(&iso.IsoformID, &iso.ParentAccession, &name, &sequence,
			&iso.IsCanonical, &features, &iso.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan isoform: %w", err)
		}
		iso.Name = name.String
		iso.Sequence = sequence.String
		if iso.SequenceFeatures, err = unmarshalStringSlice(features.String); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sequence features: %w", err)
		}
		isoforms = append(isoforms, &iso)
	}
	return isoforms, rows.Err()
}

// Counts returns record totals across all tables.
func (ss *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var counts Counts

	row := ss.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM proteins),
			(SELECT COUNT(*) FROM isoforms)`)
	if err := row.Scan(&counts.Entries, &counts.Proteins, &counts.Isoforms); err != nil {
		return Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return counts, nil
}

// Ping verifies the database is reachable.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		entry        models.Entry
		description  sql.NullString
		interproType sql.NullString
		memberDBs    sql.NullString
		interproID   sql.NullString
	)
	if err := row.Scan(&entry.Accession, &entry.EntryType, &entry.Name, &description,
		&interproType, &memberDBs, &interproID, &entry.CreatedAt); err != nil {
		return nil, err
	}

	entry.Description = description.String
	entry.InterProType = interproType.String
	entry.InterProID = interproID.String

	dbs, err := unmarshalStringMap(memberDBs.String)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal member databases: %w", err)
	}
	entry.MemberDatabases = dbs

	return &entry, nil
}

func scanProtein(row rowScanner) (*models.Protein, error) {
	var (
		protein  models.Protein
		organism sql.NullString
		taxonomy sql.NullInt64
		sequence sql.NullString
	)
	if err := row.Scan(&protein.Accession, &protein.EntryAccession, &protein.Name, &organism,
		&taxonomy, &sequence, &protein.Length, &protein.Reviewed, &protein.CreatedAt); err != nil {
		return nil, err
	}

	protein.Organism = organism.String
	protein.TaxonomyID = int(taxonomy.Int64)
	protein.Sequence = sequence.String

	return &protein, nil
}

func marshalStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func unmarshalStringMap(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	err := json.Unmarshal([]byte(s), &m)
	return m, err
}

func marshalStringSlice(s []string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

func unmarshalStringSlice(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}
