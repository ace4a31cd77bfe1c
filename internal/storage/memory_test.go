package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biocollect/internal/models"
)

func testEntry() *models.Entry {
	return &models.Entry{
		Accession:    "PF00069",
		EntryType:    models.EntryTypePfam,
		Name:         "Protein kinase domain",
		Description:  "Catalytic domain of protein kinases",
		InterProID:   "IPR000719",
		CreatedAt:    time.Now(),
	}
}

func testProtein() *models.Protein {
	return &models.Protein{
		Accession:      "P04637",
		EntryAccession: "PF00069",
		Name:           "Cellular tumor antigen p53",
		Organism:       "Homo sapiens",
		TaxonomyID:     9606,
		Sequence:       "MEEPQ",
		Length:         5,
		Reviewed:       true,
		CreatedAt:      time.Now(),
	}
}

func testIsoform() *models.Isoform {
	return &models.Isoform{
		IsoformID:       "P04637-2",
		ParentAccession: "P04637",
		Name:            "Isoform 2",
		IsCanonical:     false,
		CreatedAt:       time.Now(),
	}
}

// exerciseStorage runs the shared storage contract against any backend.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	// Entry round trip.
	entry := testEntry()
	require.NoError(t, s.SaveEntry(ctx, entry))

	got, err := s.GetEntry(ctx, entry.Accession)
	require.NoError(t, err)
	assert.Equal(t, entry.Accession, got.Accession)
	assert.Equal(t, entry.Name, got.Name)
	assert.Equal(t, entry.InterProID, got.InterProID)

	_, err = s.GetEntry(ctx, "PF99999")
	assert.ErrorIs(t, err, ErrNotFound)

	// Upsert updates in place.
	entry.Name = "Protein kinase domain (renamed)"
	require.NoError(t, s.SaveEntry(ctx, entry))
	got, err = s.GetEntry(ctx, entry.Accession)
	require.NoError(t, err)
	assert.Equal(t, "Protein kinase domain (renamed)", got.Name)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Protein round trip.
	protein := testProtein()
	require.NoError(t, s.SaveProtein(ctx, protein))

	gotProtein, err := s.GetProtein(ctx, protein.Accession)
	require.NoError(t, err)
	assert.Equal(t, protein.Sequence, gotProtein.Sequence)
	assert.Equal(t, protein.TaxonomyID, gotProtein.TaxonomyID)
	assert.True(t, gotProtein.Reviewed)

	_, err = s.GetProtein(ctx, "Q99999")
	assert.ErrorIs(t, err, ErrNotFound)

	byEntry, err := s.Proteins(ctx, "PF00069")
	require.NoError(t, err)
	assert.Len(t, byEntry, 1)

	byOther, err := s.Proteins(ctx, "PF00001")
	require.NoError(t, err)
	assert.Empty(t, byOther)

	all, err := s.Proteins(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Isoform round trip.
	isoform := testIsoform()
	require.NoError(t, s.SaveIsoform(ctx, isoform))

	isoforms, err := s.Isoforms(ctx, "P04637")
	require.NoError(t, err)
	require.Len(t, isoforms, 1)
	assert.Equal(t, "P04637-2", isoforms[0].IsoformID)

	none, err := s.Isoforms(ctx, "P00533")
	require.NoError(t, err)
	assert.Empty(t, none)

	// Counts reflect everything saved.
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Entries: 1, Proteins: 1, Isoforms: 1}, counts)
}

func TestMemoryStorageContract(t *testing.T) {
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
}

func TestMemoryStorageRejectsInvalid(t *testing.T) {
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	err = s.SaveEntry(ctx, &models.Entry{Accession: "bogus", EntryType: models.EntryTypePfam, Name: "x"})
	assert.Error(t, err)

	err = s.SaveProtein(ctx, &models.Protein{Accession: "not-an-accession", Name: "x"})
	assert.Error(t, err)

	err = s.SaveIsoform(ctx, &models.Isoform{IsoformID: "nodash"})
	assert.Error(t, err)
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveEntry(ctx, testEntry()))

	got, err := s.GetEntry(ctx, "PF00069")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetEntry(ctx, "PF00069")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Name, "stored record is isolated from caller mutation")
}

func TestMemoryStorageIsoformUpsert(t *testing.T) {
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	iso := testIsoform()
	require.NoError(t, s.SaveIsoform(ctx, iso))

	iso.Name = "Isoform 2 (updated)"
	require.NoError(t, s.SaveIsoform(ctx, iso))

	isoforms, err := s.Isoforms(ctx, "P04637")
	require.NoError(t, err)
	require.Len(t, isoforms, 1, "same isoform ID updates in place")
	assert.Equal(t, "Isoform 2 (updated)", isoforms[0].Name)
}
