// Command validate checks the integrity of a persisted report collection:
// the stored layout, per-field constraints, id uniqueness, and that the
// collection loads and aggregates the way the service will see it.
//
// Usage:
//
//	go run ./cmd/validate -data-dir ./data
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/storage"
	"github.com/couchcryptid/pollution-reports/internal/view"
	"github.com/spf13/afero"
)

// requiredKeys are the fields every stored record carries.
var requiredKeys = []string{"id", "place", "type", "level", "date", "comment", "createdAt"}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory holding the report collection")
	storeKey := flag.String("store-key", storage.DefaultKey, "collection key (file name without .json)")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(afero.NewOsFs(), *dataDir, *storeKey, os.Stdout))
}

func run(fs afero.Fs, dataDir, storeKey string, out io.Writer) int {
	fmt.Fprintln(out, "=== Report Collection Integrity Validation ===")
	fmt.Fprintln(out)

	path := filepath.Join(dataDir, storeKey+".json")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read %s: %v\n", path, err)
		return 1
	}

	records, layout := validateLayout(data)
	phases := []*phase{
		layout,
		validateFields(records),
		validateIdentity(records),
	}

	reports, load := validateLoad(fs, dataDir, storeKey, len(records))
	phases = append(phases, load)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	summary := view.RenderSummary(domain.Aggregate(reports))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d, mean level %s (%s)\n", len(records), summary.MeanText, summary.TierClass)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateLayout checks the file is a JSON array of objects carrying every
// required key with the right JSON type.
func validateLayout(data []byte) ([]map[string]json.RawMessage, *phase) {
	p := &phase{name: "Phase 1: Persisted layout"}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		p.errorf("not a JSON array of objects: %v", err)
		return nil, p
	}

	for i, rec := range records {
		for _, key := range requiredKeys {
			v, ok := rec[key]
			if !ok {
				p.errorf("record %d: missing %q", i, key)
				continue
			}
			isString := bytes.HasPrefix(bytes.TrimSpace(v), []byte(`"`))
			numeric := key == "level" || key == "createdAt"
			if numeric == isString {
				p.errorf("record %d: %q has the wrong JSON type: %s", i, key, v)
			}
		}
		for key := range rec {
			if !slices.Contains(requiredKeys, key) {
				p.errorf("record %d: unexpected key %q", i, key)
			}
		}
	}
	return records, p
}

func validateFields(records []map[string]json.RawMessage) *phase {
	p := &phase{name: "Phase 2: Field constraints"}

	for i, rec := range records {
		var level float64
		if err := json.Unmarshal(rec["level"], &level); err == nil {
			if level != float64(int(level)) || level < domain.MinLevel || level > domain.MaxLevel {
				p.errorf("record %d: level %v outside whole numbers %d..%d", i, level, domain.MinLevel, domain.MaxLevel)
			}
		}
		// Place, type and date are free-form; the service only requires presence.
		for _, key := range []string{"place", "type", "date"} {
			var s string
			if err := json.Unmarshal(rec[key], &s); err == nil && s == "" {
				p.errorf("record %d: %s is empty", i, key)
			}
		}
		var comment string
		if err := json.Unmarshal(rec["comment"], &comment); err == nil && comment != strings.TrimSpace(comment) {
			p.errorf("record %d: comment is not trimmed", i)
		}
		var createdAt int64
		if err := json.Unmarshal(rec["createdAt"], &createdAt); err == nil && createdAt <= 0 {
			p.errorf("record %d: createdAt %d is not a unix millisecond timestamp", i, createdAt)
		}
	}
	return p
}

func validateIdentity(records []map[string]json.RawMessage) *phase {
	p := &phase{name: "Phase 3: Identity"}

	seen := make(map[string]int, len(records))
	for i, rec := range records {
		var id string
		if err := json.Unmarshal(rec["id"], &id); err != nil || id == "" {
			p.errorf("record %d: empty id", i)
			continue
		}
		if first, dup := seen[id]; dup {
			p.errorf("record %d: id %q duplicates record %d", i, id, first)
			continue
		}
		seen[id] = i
	}
	return p
}

// validateLoad reads the collection through the storage adapter, which
// silently falls back to empty on corrupt data, and checks nothing was lost.
func validateLoad(fs afero.Fs, dataDir, storeKey string, want int) ([]domain.Report, *phase) {
	p := &phase{name: "Phase 4: Service load"}

	kv, err := storage.NewFileKV(fs, dataDir)
	if err != nil {
		p.errorf("open data dir: %v", err)
		return nil, p
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := storage.NewAdapter(kv, storeKey, logger).Load(context.Background())
	if len(reports) != want {
		p.errorf("service would load %d reports, file holds %d", len(reports), want)
	}
	return reports, p
}
