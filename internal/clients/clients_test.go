package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biocollect/internal/errs"
	"biocollect/internal/models"
	"biocollect/internal/ratelimit"
	"biocollect/internal/respcache"
	"biocollect/internal/retry"
)

func testDeps(t *testing.T, withCache bool) Deps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager := ratelimit.NewManager(true, false, logger)
	for _, api := range []string{models.APINameUniProt, models.APINameInterPro} {
		manager.CreateLimiter(api, ratelimit.Config{
			RequestsPerSecond:          1000,
			BurstLimit:                 1000,
			BurstWindow:                time.Second,
			ViolationInitialDelay:      time.Millisecond,
			ViolationBackoffMultiplier: 2.0,
			ViolationMaxDelay:          10 * time.Millisecond,
			SoftLimitThreshold:         0.8,
		})
	}

	retrier := retry.NewController(retry.Config{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}, nil, logger)

	var cache *respcache.Cache
	if withCache {
		cache = respcache.New(models.CacheConfig{
			Enabled:         true,
			DefaultTTL:      time.Hour,
			MaxEntries:      1000,
			MaxMemoryMB:     10,
			Strategy:        models.CacheStrategyLRU,
			CleanupInterval: time.Minute,
		}, logger)
		t.Cleanup(cache.Close)
	}

	return Deps{RateLimits: manager, Retrier: retrier, Cache: cache, Logger: logger}
}

func apiConfigFor(serverURL string) models.APIConfig {
	return models.APIConfig{
		UniProtBaseURL:  serverURL,
		InterProBaseURL: serverURL,
		RequestTimeout:  5 * time.Second,
	}
}

const uniProtEntryJSON = `{
	"primaryAccession": "P04637",
	"entryType": "UniProtKB reviewed (Swiss-Prot)",
	"proteinDescription": {"recommendedName": {"fullName": {"value": "Cellular tumor antigen p53"}}},
	"organism": {"scientificName": "Homo sapiens", "taxonId": 9606},
	"sequence": {"value": "MEEPQ", "length": 5}
}`

func TestUniProtGetProtein(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uniprotkb/P04637", r.URL.Path)
		w.Write([]byte(uniProtEntryJSON))
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, false))

	protein, err := client.GetProtein(context.Background(), "P04637", "PF00069")
	require.NoError(t, err)
	assert.Equal(t, "P04637", protein.Accession)
	assert.Equal(t, "PF00069", protein.EntryAccession)
	assert.Equal(t, "Cellular tumor antigen p53", protein.Name)
	assert.Equal(t, 9606, protein.TaxonomyID)
	assert.True(t, protein.Reviewed)
	assert.Equal(t, 5, protein.Length)
}

func TestUniProtSearchByEntryPaginates(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/uniprotkb/search", r.URL.Path)
		assert.Equal(t, "xref:pfam-PF00069", r.URL.Query().Get("query"))

		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"results": [` + uniProtEntryJSON + `], "nextCursor": "page2"}`))
			return
		}
		w.Write([]byte(`{"results": [{
			"primaryAccession": "P00533",
			"entryType": "UniProtKB reviewed (Swiss-Prot)",
			"proteinDescription": {"recommendedName": {"fullName": {"value": "EGFR"}}},
			"organism": {"scientificName": "Homo sapiens", "taxonId": 9606},
			"sequence": {"value": "MRPSG", "length": 5}
		}], "nextCursor": ""}`))
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, false))

	proteins, err := client.SearchByEntry(context.Background(), "PF00069", 1)
	require.NoError(t, err)
	require.Len(t, proteins, 2)
	assert.Equal(t, 2, requests)
	assert.Equal(t, "P04637", proteins[0].Accession)
	assert.Equal(t, "P00533", proteins[1].Accession)
}

func TestUniProtSearchRejectsBadAccession(t *testing.T) {
	client := NewUniProtClient(apiConfigFor("http://localhost:0"), testDeps(t, false))

	_, err := client.SearchByEntry(context.Background(), "XX123", 10)
	var validationErr *errs.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUniProtGetIsoforms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"primaryAccession": "P04637",
			"comments": [{
				"commentType": "ALTERNATIVE PRODUCTS",
				"isoforms": [
					{"isoformIds": ["P04637-1"], "name": {"value": "1"}, "isoformSequenceStatus": "displayed"},
					{"isoformIds": ["P04637-2"], "name": {"value": "2"}, "isoformSequenceStatus": "described", "sequenceIds": ["VSP_038527"]}
				]
			}]
		}`))
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, false))

	isoforms, err := client.GetIsoforms(context.Background(), "P04637")
	require.NoError(t, err)
	require.Len(t, isoforms, 2)
	assert.True(t, isoforms[0].IsCanonical)
	assert.False(t, isoforms[1].IsCanonical)
	assert.Equal(t, []string{"VSP_038527"}, isoforms[1].SequenceFeatures)
}

func TestClientRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(uniProtEntryJSON))
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, false))

	protein, err := client.GetProtein(context.Background(), "P04637", "PF00069")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "5xx responses are retried")
	assert.Equal(t, "P04637", protein.Accession)
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, false))

	_, err := client.GetProtein(context.Background(), "P99999", "PF00069")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "404 is classified as skip, not retried")

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientServesRepeatRequestsFromCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(uniProtEntryJSON))
	}))
	defer server.Close()

	client := NewUniProtClient(apiConfigFor(server.URL), testDeps(t, true))

	for i := 0; i < 3; i++ {
		_, err := client.GetProtein(context.Background(), "P04637", "PF00069")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, requests, "repeat requests served from cache")
	times := client.Times()
	assert.Equal(t, int64(2), times.CachedRequests)
	assert.Equal(t, int64(1), times.UpstreamRequests)
}

func TestInterProGetEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entry/interpro/IPR000719", r.URL.Path)
		w.Write([]byte(`{"metadata": {
			"accession": "IPR000719",
			"name": {"name": "Protein kinase domain"},
			"type": "domain",
			"description": [{"text": "Catalytic domain"}],
			"member_databases": {"pfam": {"PF00069": "Pkinase"}}
		}}`))
	}))
	defer server.Close()

	client := NewInterProClient(apiConfigFor(server.URL), testDeps(t, false))

	entry, err := client.GetEntry(context.Background(), "IPR000719")
	require.NoError(t, err)
	assert.Equal(t, "IPR000719", entry.Accession)
	assert.Equal(t, models.EntryTypeInterPro, entry.EntryType)
	assert.Equal(t, "Protein kinase domain", entry.Name)
	assert.Equal(t, "domain", entry.InterProType)
	assert.Equal(t, "Catalytic domain", entry.Description)
	assert.Equal(t, map[string]string{"pfam": "PF00069"}, entry.MemberDatabases)
}

func TestInterProGetPfamEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entry/pfam/PF00069", r.URL.Path)
		w.Write([]byte(`{"metadata": {
			"accession": "PF00069",
			"name": "Pkinase",
			"type": "domain",
			"integrated": "IPR000719"
		}}`))
	}))
	defer server.Close()

	client := NewInterProClient(apiConfigFor(server.URL), testDeps(t, false))

	entry, err := client.GetEntry(context.Background(), "PF00069")
	require.NoError(t, err)
	assert.Equal(t, models.EntryTypePfam, entry.EntryType)
	assert.Equal(t, "Pkinase", entry.Name)
	assert.Equal(t, "IPR000719", entry.InterProID)
}

func TestInterProListPfamEntriesPaginates(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entry/pfam", r.URL.Path)

		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"count": 2, "next": "` + serverURL + `/entry/pfam?cursor=abc", "results": [
				{"metadata": {"accession": "PF00069", "name": "Pkinase", "integrated": "IPR000719"}}
			]}`))
			return
		}
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"count": 2, "next": "", "results": [
			{"metadata": {"accession": "PF00070", "name": "Pyr_redox", "integrated": ""}}
		]}`))
	}))
	defer server.Close()
	serverURL = server.URL

	client := NewInterProClient(apiConfigFor(server.URL), testDeps(t, false))

	entries, err := client.ListPfamEntries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "PF00069", entries[0].Accession)
	assert.Equal(t, "PF00070", entries[1].Accession)
}
