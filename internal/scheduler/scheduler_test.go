package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsTasks(t *testing.T) {
	s := New(testLogger())

	var runs atomic.Int32
	s.Register(Task{
		Name:     "count",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestSchedulerKeepsGoingAfterTaskError(t *testing.T) {
	s := New(testLogger())

	var runs atomic.Int32
	s.Register(Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("transient")
			}
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestTasksListsNames(t *testing.T) {
	s := New(testLogger())
	s.Register(Task{Name: "prune-history", Interval: time.Minute, Run: func(ctx context.Context) error { return nil }})
	s.Register(Task{Name: "prune-images", Interval: time.Minute, Run: func(ctx context.Context) error { return nil }})
	assert.Equal(t, []string{"prune-history", "prune-images"}, s.Tasks())
}

func TestSnapshotRecordsRunsAndErrors(t *testing.T) {
	s := New(testLogger())
	s.Register(Task{
		Name:     "failing",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})
	s.Register(Task{Name: "never-ran", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "failing", snapshot[0].Name)
	assert.False(t, snapshot[0].LastRun.IsZero())
	assert.Equal(t, "boom", snapshot[0].LastError)

	assert.Equal(t, "never-ran", snapshot[1].Name)
	assert.True(t, snapshot[1].LastRun.IsZero())
}
