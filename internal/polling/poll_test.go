package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns the statuses in order, repeating the last one.
func scripted(statuses ...string) (FetchFunc[string], *int) {
	calls := 0
	return func(_ context.Context, _ string) (string, error) {
		i := calls
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		calls++
		return statuses[i], nil
	}, &calls
}

func classifyString(s string) (State, string, string) {
	switch s {
	case "SUCCESS":
		return Succeeded, s, ""
	case "ERROR":
		return Failed, s, "bad input"
	default:
		return Pending, s, ""
	}
}

func TestUntilTerminal_SucceedsAfterPending(t *testing.T) {
	fetch, calls := scripted("PENDING", "PENDING", "SUCCESS")

	got, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", got)
	assert.Equal(t, 3, *calls)
}

func TestUntilTerminal_FailureStopsImmediately(t *testing.T) {
	fetch, calls := scripted("ERROR")

	start := time.Now()
	_, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: time.Second,
		Timeout:  time.Minute,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, *calls)

	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "job-1", failed.JobID)
	assert.Equal(t, "ERROR", failed.Status)
	assert.Equal(t, "bad input", failed.Detail)
	assert.Contains(t, err.Error(), "bad input")
}

func TestUntilTerminal_Timeout(t *testing.T) {
	fetch, calls := scripted("PENDING")

	start := time.Now()
	_, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: 20 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "job-1", timeout.JobID)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.GreaterOrEqual(t, timeout.Elapsed, 100*time.Millisecond)
	assert.GreaterOrEqual(t, *calls, 2)
}

func TestUntilTerminal_UnknownStatusKeepsPolling(t *testing.T) {
	fetch, calls := scripted("QUEUED", "RUNNING", "SUCCESS")

	_, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestUntilTerminal_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	fetch := func(_ context.Context, _ string) (string, error) {
		calls++
		return "", boom
	}

	_, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntilTerminal_ContextCancelled(t *testing.T) {
	fetch, _ := scripted("PENDING")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := UntilTerminal(ctx, "job-1", fetch, classifyString, Options{
		Interval: 10 * time.Second,
		Timeout:  time.Minute,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUntilTerminal_OnPoll(t *testing.T) {
	fetch, _ := scripted("PENDING", "SUCCESS")
	var seen []string

	_, err := UntilTerminal(context.Background(), "job-1", fetch, classifyString, Options{
		Interval: time.Millisecond,
		Timeout:  time.Second,
		OnPoll: func(attempt int, status string) {
			seen = append(seen, status)
			assert.Equal(t, len(seen), attempt)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING", "SUCCESS"}, seen)
}
