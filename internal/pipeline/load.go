package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/pollution-reports/internal/domain"
)

// Adder is the store operation the loader needs.
type Adder interface {
	Add(ctx context.Context, in domain.ReportInput) (domain.Report, error)
}

// StoreLoader implements BatchLoader by adding each input to the store.
type StoreLoader struct {
	store  Adder
	logger *slog.Logger
}

// NewStoreLoader creates a StoreLoader over s.
func NewStoreLoader(s Adder, logger *slog.Logger) *StoreLoader {
	return &StoreLoader{store: s, logger: logger}
}

// LoadBatch adds inputs in order and stops at the first failure. Each add
// is persisted before the next one starts.
func (l *StoreLoader) LoadBatch(ctx context.Context, inputs []domain.ReportInput) (int, error) {
	for i, in := range inputs {
		r, err := l.store.Add(ctx, in)
		if err != nil {
			return i, err
		}
		l.logger.Debug("submission added", "id", r.ID, "place", r.Place, "type", r.Type, "level", r.Level)
	}
	return len(inputs), nil
}
