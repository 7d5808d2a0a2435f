// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"time"
)

// DefaultMaxTaskAge is the freshness window for queued tasks. The queue may
// redeliver a task after a worker has already completed it, or deliver it late
// after a backlog; tasks older than this window are acked without processing.
const DefaultMaxTaskAge = 10 * time.Second

// StalenessResult contains the result of a task staleness check.
type StalenessResult struct {
	// IsStale indicates whether the task is past its freshness window.
	IsStale bool
	// Age is how long ago the task was created.
	Age time.Duration
	// Reason provides a human-readable explanation for the staleness decision.
	Reason string
}

// IsStale reports whether a task created at the given epoch-millis timestamp
// is older than maxAge at time now. A non-positive maxAge falls back to
// DefaultMaxTaskAge.
//
// This is a coarse idempotency bound, not exact deduplication: two deliveries
// inside the window are both processed. It only caps wasted work on delayed
// redeliveries.
func IsStale(createdAtMillis int64, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxTaskAge
	}
	created := time.UnixMilli(createdAtMillis)
	return now.Sub(created) > maxAge
}

// CheckTaskStaleness evaluates a task's age against the freshness window and
// returns a result with the age and a log-friendly reason.
func CheckTaskStaleness(createdAtMillis int64, now time.Time, maxAge time.Duration) StalenessResult {
	if maxAge <= 0 {
		maxAge = DefaultMaxTaskAge
	}

	age := now.Sub(time.UnixMilli(createdAtMillis))

	if age > maxAge {
		return StalenessResult{
			IsStale: true,
			Age:     age,
			Reason:  fmt.Sprintf("task is %s old, freshness window is %s", age.Round(time.Millisecond), maxAge),
		}
	}

	return StalenessResult{
		IsStale: false,
		Age:     age,
		Reason:  fmt.Sprintf("task is %s old, within freshness window", age.Round(time.Millisecond)),
	}
}
