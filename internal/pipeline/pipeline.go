// Package pipeline runs the report intake loop: submissions are extracted in
// batches, validated, and added to the store.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// fieldPayload labels submissions that could not be decoded at all.
	fieldPayload = "payload"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw submission into a validated report input.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.ReportInput, error)
}

// BatchLoader adds validated inputs in order. It returns how many leading
// inputs were added before any error.
type BatchLoader interface {
	LoadBatch(ctx context.Context, inputs []domain.ReportInput) (int, error)
}

// Pipeline orchestrates the extract-validate-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("intake has not loaded any submissions yet")
	}
	return nil
}

// Ready reports whether a batch has been loaded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the intake loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("intake started", "batch_size", p.batchSize)
	p.metrics.IntakeRunning.Set(1)
	defer p.metrics.IntakeRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("intake stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-validate-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}
	if loaded > 0 {
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad validates each message, commits the rejects, then loads
// the accepted inputs. A load failure backs off and retries the inputs that
// were not added yet. Returns the number loaded and false if the pipeline
// should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration) (int, bool) {
	inputs := make([]domain.ReportInput, 0, len(rawBatch))
	accepted := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		in, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("submission rejected, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ValidationErrors.WithLabelValues(rejectedField(err)).Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		inputs = append(inputs, in)
		accepted = append(accepted, raw)
	}

	total := 0
	for len(inputs) > 0 {
		n, err := p.loader.LoadBatch(ctx, inputs)
		for _, raw := range accepted[:n] {
			p.commitOffset(ctx, raw)
		}
		total += n
		inputs, accepted = inputs[n:], accepted[n:]

		if err == nil {
			break
		}
		p.logger.Error("load batch failed", "error", err, "pending", len(inputs))
		if !p.backoffOrStop(ctx, backoff) {
			return total, false
		}
	}
	*backoff = initialBackoff
	return total, true
}

func rejectedField(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Field
	}
	return fieldPayload
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
