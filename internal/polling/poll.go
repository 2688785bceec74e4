// Package polling waits for a remote job to reach a terminal state.
package polling

import (
	"context"
	"fmt"
	"time"
)

// Default cadences, per job kind.
const (
	DefaultParseInterval   = 1500 * time.Millisecond
	DefaultParseTimeout    = 5 * time.Minute
	DefaultExtractInterval = 3 * time.Second
	DefaultExtractTimeout  = 10 * time.Minute
)

// State is the local reading of one status snapshot.
type State int

// State values.
const (
	Pending State = iota
	Succeeded
	Failed
)

// Options controls the polling cadence.
type Options struct {
	// Interval is the fixed pause between status checks.
	Interval time.Duration
	// Timeout bounds the total wall-clock time spent waiting, measured from the first check.
	Timeout time.Duration
	// OnPoll, if set, is called after every status check.
	OnPoll func(attempt int, status string)
}

// FetchFunc returns the current status snapshot of a job.
type FetchFunc[T any] func(ctx context.Context, jobID string) (T, error)

// ClassifyFunc interprets a snapshot. status is a printable form of the remote status
// and detail carries the failure explanation, if any.
type ClassifyFunc[T any] func(snapshot T) (state State, status, detail string)

// JobFailedError reports that a job reached a failure status.
type JobFailedError struct {
	JobID  string
	Status string
	Detail string
}

func (e *JobFailedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("job %s failed with status %s: %s", e.JobID, e.Status, e.Detail)
	}
	return fmt.Sprintf("job %s failed with status %s", e.JobID, e.Status)
}

// TimeoutError reports that a job did not finish within the allotted time.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within %s", e.JobID, e.Elapsed.Round(time.Millisecond))
}

// UntilTerminal checks the job immediately, then every opts.Interval, until classify
// reports a terminal state. It returns the succeeding snapshot, a *JobFailedError,
// a *TimeoutError once opts.Timeout has elapsed, ctx.Err() on cancellation, or the
// first error returned by fetch. Fetch errors are not retried.
func UntilTerminal[T any](ctx context.Context, jobID string, fetch FetchFunc[T], classify ClassifyFunc[T], opts Options) (T, error) {
	var zero T
	if opts.Interval <= 0 {
		opts.Interval = DefaultParseInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultParseTimeout
	}

	start := time.Now()
	deadline := start.Add(opts.Timeout)

	for attempt := 1; ; attempt++ {
		snapshot, err := fetch(ctx, jobID)
		if err != nil {
			return zero, err
		}

		state, status, detail := classify(snapshot)
		if opts.OnPoll != nil {
			opts.OnPoll(attempt, status)
		}

		switch state {
		case Succeeded:
			return snapshot, nil
		case Failed:
			return zero, &JobFailedError{JobID: jobID, Status: status, Detail: detail}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, &TimeoutError{JobID: jobID, Elapsed: time.Since(start)}
		}

		wait := opts.Interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		if !time.Now().Before(deadline) {
			return zero, &TimeoutError{JobID: jobID, Elapsed: time.Since(start)}
		}
	}
}
