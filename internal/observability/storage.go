package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"biocollect/internal/models"
	"biocollect/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace
// spans, operation latency histograms, and error counters for every storage
// method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("biocollect/storage")
	meter := otel.Meter("biocollect/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	ctx, span := s.startSpan(ctx, "SaveEntry", attribute.String("accession", entry.Accession))
	start := time.Now()
	err := s.inner.SaveEntry(ctx, entry)
	s.record(ctx, span, "SaveEntry", start, err)
	return err
}

func (s *InstrumentedStorage) GetEntry(ctx context.Context, accession string) (*models.Entry, error) {
	ctx, span := s.startSpan(ctx, "GetEntry", attribute.String("accession", accession))
	start := time.Now()
	result, err := s.inner.GetEntry(ctx, accession)
	s.record(ctx, span, "GetEntry", start, err)
	return result, err
}

func (s *InstrumentedStorage) Entries(ctx context.Context) ([]*models.Entry, error) {
	ctx, span := s.startSpan(ctx, "Entries")
	start := time.Now()
	result, err := s.inner.Entries(ctx)
	s.record(ctx, span, "Entries", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveProtein(ctx context.Context, protein *models.Protein) error {
	ctx, span := s.startSpan(ctx, "SaveProtein", attribute.String("accession", protein.Accession))
	start := time.Now()
	err := s.inner.SaveProtein(ctx, protein)
	s.record(ctx, span, "SaveProtein", start, err)
	return err
}

func (s *InstrumentedStorage) GetProtein(ctx context.Context, accession string) (*models.Protein, error) {
	ctx, span := s.startSpan(ctx, "GetProtein", attribute.String("accession", accession))
	start := time.Now()
	result, err := s.inner.GetProtein(ctx, accession)
	s.record(ctx, span, "GetProtein", start, err)
	return result, err
}

func (s *InstrumentedStorage) Proteins(ctx context.Context, entryAccession string) ([]*models.Protein, error) {
	ctx, span := s.startSpan(ctx, "Proteins", attribute.String("entry_accession", entryAccession))
	start := time.Now()
	result, err := s.inner.Proteins(ctx, entryAccession)
	s.record(ctx, span, "Proteins", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveIsoform(ctx context.Context, isoform *models.Isoform) error {
	ctx, span := s.startSpan(ctx, "SaveIsoform", attribute.String("isoform_id", isoform.IsoformID))
	start := time.Now()
	err := s.inner.SaveIsoform(ctx, isoform)
	s.record(ctx, span, "SaveIsoform", start, err)
	return err
}

func (s *InstrumentedStorage) Isoforms(ctx context.Context, parentAccession string) ([]*models.Isoform, error) {
	ctx, span := s.startSpan(ctx, "Isoforms", attribute.String("parent_accession", parentAccession))
	start := time.Now()
	result, err := s.inner.Isoforms(ctx, parentAccession)
	s.record(ctx, span, "Isoforms", start, err)
	return result, err
}

func (s *InstrumentedStorage) Counts(ctx context.Context) (storage.Counts, error) {
	ctx, span := s.startSpan(ctx, "Counts")
	start := time.Now()
	result, err := s.inner.Counts(ctx)
	s.record(ctx, span, "Counts", start, err)
	return result, err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
