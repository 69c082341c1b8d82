// Package store owns the in-memory report collection and keeps it in step
// with its persisted copy.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
)

// Persister loads and saves the full collection.
type Persister interface {
	Load(ctx context.Context) []domain.Report
	Save(ctx context.Context, reports []domain.Report) error
}

// Publisher receives change events after a mutation has been persisted.
type Publisher interface {
	Publish(ctx context.Context, event domain.ReportEvent) error
}

// PersistError reports that a mutation could not be written. The mutation
// has been rolled back, so memory and storage still agree.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s report: persist collection: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store is the single owner of the report collection. Every mutation is
// persisted before it returns. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	reports   []domain.Report
	persister Persister
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets the change-event sink. Without one, events are dropped.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// New loads the collection through p and returns a ready Store.
func New(ctx context.Context, p Persister, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Store {
	s := &Store{
		reports:   p.Load(ctx),
		persister: p,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observe()
	s.logger.Info("report store loaded", "reports", len(s.reports))
	return s
}

// Add stamps in with a fresh id and creation time, appends it and persists.
func (s *Store) Add(ctx context.Context, in domain.ReportInput) (domain.Report, error) {
	report := domain.NewReport(in)

	s.mu.Lock()
	prev := s.reports
	next := make([]domain.Report, len(prev), len(prev)+1)
	copy(next, prev)
	next = append(next, report)

	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return domain.Report{}, &PersistError{Op: "add", Err: err}
	}
	s.reports = next
	s.observe()
	s.mu.Unlock()

	s.metrics.ReportsAdded.Inc()
	s.logger.Info("report added",
		"report_id", report.ID,
		"place", report.Place,
		"type", report.Type,
		"level", report.Level,
	)
	s.publish(ctx, domain.ReportEvent{Kind: domain.EventCreated, ReportID: report.ID, Report: &report})
	return report, nil
}

// Remove deletes the first report with id and persists. The collection is
// written even when nothing matched. It reports whether a report was removed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.reports, func(r domain.Report) bool { return r.ID == id })

	next := s.reports
	if idx >= 0 {
		next = slices.Delete(slices.Clone(s.reports), idx, idx+1)
	}

	if err := s.save(ctx, next); err != nil {
		s.mu.Unlock()
		return false, &PersistError{Op: "remove", Err: err}
	}
	s.reports = next
	s.observe()
	s.mu.Unlock()

	if idx < 0 {
		s.logger.Debug("remove matched no report", "report_id", id)
		return false, nil
	}

	s.metrics.ReportsRemoved.Inc()
	s.logger.Info("report removed", "report_id", id)
	s.publish(ctx, domain.ReportEvent{Kind: domain.EventDeleted, ReportID: id})
	return true, nil
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reports)
}

// Filtered returns the reports matching f, in insertion order.
func (s *Store) Filtered(f domain.Filter) []domain.Report {
	return domain.FilterReports(s.List(), f)
}

// Summary aggregates the whole collection, regardless of any filter.
func (s *Store) Summary() domain.Aggregation {
	return domain.Aggregate(s.List())
}

func (s *Store) save(ctx context.Context, reports []domain.Report) error {
	start := time.Now()
	err := s.persister.Save(ctx, reports)
	s.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PersistFailures.Inc()
		s.logger.Error("persist reports failed", "error", err, "reports", len(reports))
	}
	return err
}

// observe refreshes the collection gauges. Callers hold s.mu.
func (s *Store) observe() {
	agg := domain.Aggregate(s.reports)
	s.metrics.ReportsStored.Set(float64(agg.Count))
	s.metrics.MeanLevel.Set(agg.MeanLevel)
}

func (s *Store) publish(ctx context.Context, event domain.ReportEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = domain.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Warn("publish report event failed",
			"error", err,
			"kind", event.Kind,
			"report_id", event.ReportID,
		)
		return
	}
	s.metrics.EventsPublished.Inc()
}
