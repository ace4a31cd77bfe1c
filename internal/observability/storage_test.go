package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biocollect/internal/models"
	"biocollect/internal/storage"
)

func newInstrumented(t *testing.T) *InstrumentedStorage {
	t.Helper()

	inner, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	instrumented, err := NewInstrumentedStorage(inner)
	require.NoError(t, err)
	t.Cleanup(func() { instrumented.Close() })

	return instrumented
}

func TestInstrumentedStorageDelegates(t *testing.T) {
	s := newInstrumented(t)
	ctx := context.Background()

	entry := &models.Entry{Accession: "PF00069", EntryType: models.EntryTypePfam, Name: "Pkinase"}
	require.NoError(t, s.SaveEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "PF00069")
	require.NoError(t, err)
	assert.Equal(t, "Pkinase", got.Name)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	protein := &models.Protein{Accession: "P04637", EntryAccession: "PF00069", Name: "p53", Length: 5, Sequence: "MEEPQ"}
	require.NoError(t, s.SaveProtein(ctx, protein))

	gotProtein, err := s.GetProtein(ctx, "P04637")
	require.NoError(t, err)
	assert.Equal(t, "p53", gotProtein.Name)

	proteins, err := s.Proteins(ctx, "PF00069")
	require.NoError(t, err)
	assert.Len(t, proteins, 1)

	isoform := &models.Isoform{IsoformID: "P04637-2", ParentAccession: "P04637"}
	require.NoError(t, s.SaveIsoform(ctx, isoform))

	isoforms, err := s.Isoforms(ctx, "P04637")
	require.NoError(t, err)
	assert.Len(t, isoforms, 1)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Entries: 1, Proteins: 1, Isoforms: 1}, counts)

	assert.NoError(t, s.Ping(ctx))
}

func TestInstrumentedStoragePropagatesErrors(t *testing.T) {
	s := newInstrumented(t)

	_, err := s.GetEntry(context.Background(), "PF99999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
