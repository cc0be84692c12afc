package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rawst/internal/output"
)

func quietOutput(t *testing.T) {
	t.Helper()
	prev := output.Stdout
	output.Stdout = &bytes.Buffer{}
	t.Cleanup(func() { output.Stdout = prev })
}

func TestRunBoundsWorkers(t *testing.T) {
	quietOutput(t)
	var running, peak atomic.Int32
	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{
			Name: "job",
			Run: func(ctx context.Context, report func(int64, int64)) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				report(1, 2)
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			},
		}
	}
	require.NoError(t, Run(context.Background(), jobs, 2))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunCollectsErrors(t *testing.T) {
	quietOutput(t)
	boom := errors.New("boom")
	var ran atomic.Int32
	jobs := []Job{
		{Name: "ok", Run: func(context.Context, func(int64, int64)) error { ran.Add(1); return nil }},
		{Name: "bad", Run: func(context.Context, func(int64, int64)) error { ran.Add(1); return boom }},
		{Name: "ok2", Run: func(context.Context, func(int64, int64)) error { ran.Add(1); return nil }},
	}
	err := Run(context.Background(), jobs, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.EqualValues(t, 3, ran.Load())
}

func TestRunSkipsAfterCancel(t *testing.T) {
	quietOutput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Int32
	jobs := []Job{{Name: "never", Run: func(context.Context, func(int64, int64)) error { ran.Add(1); return nil }}}
	err := Run(ctx, jobs, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}
