package respcache

// Metrics accumulates cache effectiveness counters. All fields are guarded by
// the owning Cache's mutex.
type Metrics struct {
	hits               int64
	misses             int64
	evictions          int64
	expirations        int64
	compressionSavings int64
}

// hitRate returns the fraction of lookups served from cache, or zero before
// any lookup.
func (m *Metrics) hitRate() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

// Stats is a point-in-time snapshot of the cache state for reporting.
type Stats struct {
	Entries            int     `json:"entries"`
	MemoryBytes        int64   `json:"memory_bytes"`
	MaxEntries         int     `json:"max_entries"`
	MaxMemoryBytes     int64   `json:"max_memory_bytes"`
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	Evictions          int64   `json:"evictions"`
	Expirations        int64   `json:"expirations"`
	CompressionSavings int64   `json:"compression_savings_bytes"`
	HitRate            float64 `json:"hit_rate"`
	Strategy           string  `json:"strategy"`
}

// MissRate is the complement of HitRate once any lookup has happened.
func (s Stats) MissRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return 1 - s.HitRate
}
