package domain

import (
	"errors"
	"fmt"
)

// FilterAll is the sentinel filter value that matches every value of a field.
const FilterAll = "all"

// ErrInvalidFilter is returned by ParseFilter for an unknown level bucket.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter selects reports by problem type and severity bucket.
// Empty fields behave like FilterAll.
type Filter struct {
	Type  string `json:"type"`
	Level string `json:"level"`
}

// AllReports is the filter that matches the whole collection.
var AllReports = Filter{Type: FilterAll, Level: FilterAll}

// ParseFilter normalizes user-supplied filter values. Blank values become
// FilterAll; a level that is neither FilterAll nor a bucket name is rejected.
func ParseFilter(typ, level string) (Filter, error) {
	f := Filter{Type: typ, Level: level}
	if f.Type == "" {
		f.Type = FilterAll
	}
	if f.Level == "" {
		f.Level = FilterAll
	}
	if f.Level != FilterAll {
		if _, ok := ParseBucket(f.Level); !ok {
			return Filter{}, fmt.Errorf("%w: unknown level %q", ErrInvalidFilter, level)
		}
	}
	return f, nil
}

// Matches reports whether r passes both the type and the level filter.
func (f Filter) Matches(r Report) bool {
	okType := f.Type == "" || f.Type == FilterAll || r.Type == f.Type
	okLevel := f.Level == "" || f.Level == FilterAll || string(r.Bucket()) == f.Level
	return okType && okLevel
}

// FilterReports returns the reports that match f, in source order.
func FilterReports(reports []Report, f Filter) []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Aggregation summarizes a whole collection.
type Aggregation struct {
	Count     int     `json:"count"`
	MeanLevel float64 `json:"mean_level"`
	Tier      Bucket  `json:"tier"`
}

// Aggregate computes count, mean level and tier over every report passed in.
// Callers must pass the unfiltered collection: the summary ignores filters.
// An empty collection yields a zero mean in the low tier.
func Aggregate(reports []Report) Aggregation {
	if len(reports) == 0 {
		return Aggregation{Tier: BucketLow}
	}

	sum := 0
	for _, r := range reports {
		sum += r.Level
	}
	mean := float64(sum) / float64(len(reports))

	return Aggregation{
		Count:     len(reports),
		MeanLevel: mean,
		Tier:      BucketOf(mean),
	}
}

// Recommendation is the guidance text for the aggregate tier, empty when
// there are no reports to judge.
func (a Aggregation) Recommendation() string {
	if a.Count == 0 {
		return ""
	}
	return a.Tier.Recommendation()
}
