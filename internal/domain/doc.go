// Package domain models pollution reports and the analytics derived from them.
//
// # Reports
//
// A report is one observation submitted by a user: the district it was seen
// in, the problem category, a severity level from 1 to 100, the calendar date
// of the observation, and an optional free-text comment. Reports receive an
// opaque identifier and a creation timestamp when they enter the store.
//
// # Severity Buckets
//
// Levels are partitioned into three buckets:
//
//	low   1–33
//	mid   34–66
//	high  67–100
//
// The same thresholds drive three use sites that must never drift apart:
// the per-row display class, the level filter, and the recommendation tier
// derived from the mean level of the whole collection. All three go through
// [BucketOf].
//
// # Filters and Aggregates
//
// [FilterReports] narrows a collection by problem type and bucket and keeps
// the source order. [Aggregate] always runs over the unfiltered collection;
// filters only change which rows are listed, never the summary numbers.
//
// # Intake
//
// [Validate] turns raw form values into a [ReportInput]. Checks run in a
// fixed order (level, place, type, date) and stop at the first failure.
package domain
