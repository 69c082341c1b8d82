package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Severity level bounds, inclusive.
const (
	MinLevel = 1
	MaxLevel = 100
)

// Field names reported by ValidationError.
const (
	FieldLevel = "level"
	FieldPlace = "place"
	FieldType  = "type"
	FieldDate  = "date"
)

// ValidationError describes the first submission field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks a raw submission and returns the cleaned input. Checks run
// in order (level, place, type, date) and the first failure is returned.
// The comment is trimmed; every other field passes through unchanged.
func Validate(raw RawInput) (ReportInput, error) {
	level, ok := parseLevel(raw.Level)
	if !ok {
		return ReportInput{}, &ValidationError{
			Field:  FieldLevel,
			Reason: fmt.Sprintf("level must be a whole number from %d to %d", MinLevel, MaxLevel),
		}
	}
	if raw.Place == "" {
		return ReportInput{}, &ValidationError{Field: FieldPlace, Reason: "choose a district"}
	}
	if raw.Type == "" {
		return ReportInput{}, &ValidationError{Field: FieldType, Reason: "choose a problem type"}
	}
	if raw.Date == "" {
		return ReportInput{}, &ValidationError{Field: FieldDate, Reason: "choose a date"}
	}

	return ReportInput{
		Place:   raw.Place,
		Type:    raw.Type,
		Level:   level,
		Date:    raw.Date,
		Comment: strings.TrimSpace(raw.Comment),
	}, nil
}

// parseLevel accepts any finite numeric string that denotes a whole number
// in [MinLevel, MaxLevel], so "80" and "80.0" are both 80.
func parseLevel(s string) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < MinLevel || v > MaxLevel || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
