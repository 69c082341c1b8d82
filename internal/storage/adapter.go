package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
)

// DefaultKey is the entry the report collection is stored under.
const DefaultKey = "reports"

// record is the persisted layout of a report. CreatedAt is unix milliseconds.
type record struct {
	ID        string `json:"id"`
	Place     string `json:"place"`
	Type      string `json:"type"`
	Level     int    `json:"level"`
	Date      string `json:"date"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"createdAt"`
}

// Adapter reads and writes the whole report collection as a single JSON
// array under one key of a KV store.
type Adapter struct {
	kv     KV
	key    string
	logger *slog.Logger
}

// NewAdapter creates an Adapter for key. An empty key selects DefaultKey.
func NewAdapter(kv KV, key string, logger *slog.Logger) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	return &Adapter{kv: kv, key: key, logger: logger}
}

// Load returns the stored collection. A missing key, an unreadable store or
// a value that does not decode as an array of reports all yield an empty
// collection; the cause is logged and never returned.
func (a *Adapter) Load(ctx context.Context) []domain.Report {
	raw, ok, err := a.kv.Get(ctx, a.key)
	if err != nil {
		a.logger.Warn("read stored reports failed, starting empty", "key", a.key, "error", err)
		return []domain.Report{}
	}
	if !ok || raw == "" {
		return []domain.Report{}
	}

	reports, err := decode(raw)
	if err != nil {
		a.logger.Warn("stored reports are corrupt, starting empty", "key", a.key, "error", err)
		return []domain.Report{}
	}
	return reports
}

// Save overwrites the stored collection with reports.
func (a *Adapter) Save(ctx context.Context, reports []domain.Report) error {
	data, err := encode(reports)
	if err != nil {
		return err
	}
	if err := a.kv.Set(ctx, a.key, data); err != nil {
		return fmt.Errorf("save reports: %w", err)
	}
	return nil
}

func encode(reports []domain.Report) (string, error) {
	recs := make([]record, len(reports))
	for i, r := range reports {
		recs[i] = record{
			ID:        r.ID,
			Place:     r.Place,
			Type:      r.Type,
			Level:     r.Level,
			Date:      r.Date,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt.UnixMilli(),
		}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("encode reports: %w", err)
	}
	return string(data), nil
}

func decode(raw string) ([]domain.Report, error) {
	var recs []record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	// "null" decodes without error into a nil slice.
	reports := make([]domain.Report, len(recs))
	for i, rec := range recs {
		reports[i] = domain.Report{
			ID:        rec.ID,
			Place:     rec.Place,
			Type:      rec.Type,
			Level:     rec.Level,
			Date:      rec.Date,
			Comment:   rec.Comment,
			CreatedAt: time.UnixMilli(rec.CreatedAt).UTC(),
		}
	}
	return reports, nil
}
