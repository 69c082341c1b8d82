// Package view projects the report collection and the current filter
// selection into display rows and summary fields.
package view

import (
	"context"
	"strconv"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Summary is the rendered form of an Aggregation.
type Summary struct {
	Count          int     `json:"count"`
	Mean           float64 `json:"mean"`
	CountText      string  `json:"count_text"`
	MeanText       string  `json:"mean_text"`
	TierClass      string  `json:"tier_class"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// RenderSummary maps an aggregate to display fields. The mean is rounded to
// one decimal for display only; Mean keeps the exact value.
func RenderSummary(agg domain.Aggregation) Summary {
	return Summary{
		Count:          agg.Count,
		Mean:           agg.MeanLevel,
		CountText:      strconv.Itoa(agg.Count),
		MeanText:       FormatMean(agg.MeanLevel),
		TierClass:      agg.Tier.TierClass(),
		Recommendation: agg.Recommendation(),
	}
}

// FormatMean renders a mean level with one decimal.
func FormatMean(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Frames returns n evenly spaced values from from (exclusive) to to
// (inclusive). The last frame is always exactly to. n < 1 yields only to.
func Frames(from, to float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	diff := to - from
	for i := 1; i < n; i++ {
		out[i-1] = from + diff*float64(i)/float64(n)
	}
	out[n-1] = to
	return out
}

// Animator plays a numeric count-up on a clock.
type Animator struct {
	clock    clockwork.Clock
	duration time.Duration
	interval time.Duration
}

// NewAnimator creates an Animator that spreads a transition over duration in
// steps of interval. A nil clock uses real time.
func NewAnimator(clock clockwork.Clock, duration, interval time.Duration) *Animator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Animator{clock: clock, duration: duration, interval: interval}
}

// Run emits intermediate values from from to to, one per tick. Cancelling
// ctx skips the remaining frames, but the target value is always the last
// value emitted.
func (a *Animator) Run(ctx context.Context, from, to float64, emit func(float64)) {
	steps := int(a.duration / a.interval)
	frames := Frames(from, to, steps)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for _, v := range frames[:len(frames)-1] {
		select {
		case <-ctx.Done():
			emit(to)
			return
		case <-ticker.Chan():
			emit(v)
		}
	}
	emit(to)
}
