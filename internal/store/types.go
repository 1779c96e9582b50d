package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AggregateStats sums scraper counters across all bars.
type AggregateStats struct {
	Bars                 int64   `json:"bars"`
	TotalChecks          int64   `json:"totalChecks"`
	SuccessfulChecks     int64   `json:"successfulChecks"`
	FailedChecks         int64   `json:"failedChecks"`
	TotalChangesDetected int64   `json:"totalChangesDetected"`
	AvgCheckDurationMs   float64 `json:"avgCheckDurationMs"`
}
