// Command genmock seeds a data directory with randomly generated pollution
// reports, for demos and manual testing of the CLI and API.
//
// Usage:
//
//	go run ./cmd/genmock -data-dir ./data -n 40 -seed 7
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/storage"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

var (
	places   = []string{"Center", "North", "South", "East", "West", "Harbour", "Old Town"}
	problems = []string{"Air", "Water", "Noise", "Soil", "Waste"}
	comments = []string{"", "", "smell near the park", "loud at night", "visible smoke", "dark water at the pier", "dumped tyres"}
)

// baseDate anchors generated observation dates.
var baseDate = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "directory to write the report collection into")
	storeKey := flag.String("store-key", storage.DefaultKey, "collection key (file name without .json)")
	n := flag.Int("n", 25, "number of reports to add")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	flag.Parse()

	if *dataDir == "" || *n < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -data-dir, -n >= 1")
	}

	// Fixed clock so createdAt values are reproducible.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kv, err := storage.NewFileKV(afero.NewOsFs(), *dataDir)
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	s := store.New(ctx, storage.NewAdapter(kv, *storeKey, logger), logger, observability.NewUnregisteredMetrics())

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	for _, raw := range generate(rng, *n) {
		in, err := domain.Validate(raw)
		if err != nil {
			return fmt.Errorf("generated invalid report: %w", err)
		}
		if _, err := s.Add(ctx, in); err != nil {
			return err
		}
		clock.Advance(time.Duration(1+rng.IntN(90)) * time.Minute)
	}

	agg := s.Summary()
	log.Printf("wrote %d reports to %s (total %d, mean level %.1f, tier %s)",
		*n, kv.Path(*storeKey), agg.Count, agg.MeanLevel, agg.Tier)
	return nil
}

// generate builds n submissions spread over the thirty days after baseDate.
// Levels are skewed so every severity bucket shows up.
func generate(rng *rand.Rand, n int) []domain.RawInput {
	out := make([]domain.RawInput, n)
	for i := range out {
		level := 1 + rng.IntN(domain.MaxLevel)
		if i%4 == 0 {
			level = 67 + rng.IntN(34)
		}
		out[i] = domain.RawInput{
			Place:   places[rng.IntN(len(places))],
			Type:    problems[rng.IntN(len(problems))],
			Level:   strconv.Itoa(level),
			Date:    baseDate.AddDate(0, 0, rng.IntN(30)).Format(time.DateOnly),
			Comment: comments[rng.IntN(len(comments))],
		}
	}
	return out
}
