package domain

import "time"

// Report is a single persisted pollution observation.
type Report struct {
	ID        string    `json:"id"`
	Place     string    `json:"place"`
	Type      string    `json:"type"`
	Level     int       `json:"level"`
	Date      string    `json:"date"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Bucket returns the severity bucket of the report's level.
func (r Report) Bucket() Bucket {
	return BucketOf(float64(r.Level))
}

// RawInput holds submission fields exactly as a form posts them, before validation.
type RawInput struct {
	Place   string `json:"place"`
	Type    string `json:"type"`
	Level   string `json:"level"`
	Date    string `json:"date"`
	Comment string `json:"comment"`
}

// ReportInput is a validated submission that has not been assigned an identity yet.
type ReportInput struct {
	Place   string
	Type    string
	Level   int
	Date    string
	Comment string
}

// NewReport stamps a validated input with a fresh id and creation time.
func NewReport(in ReportInput) Report {
	return Report{
		ID:        NewID(),
		Place:     in.Place,
		Type:      in.Type,
		Level:     in.Level,
		Date:      in.Date,
		Comment:   in.Comment,
		CreatedAt: Now(),
	}
}

// EventKind names the mutation a ReportEvent describes.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
)

// ReportEvent is emitted after a store mutation has been persisted.
type ReportEvent struct {
	Kind       EventKind `json:"kind"`
	ReportID   string    `json:"report_id"`
	Report     *Report   `json:"report,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
