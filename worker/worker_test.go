package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/stretchr/testify/require"
)

// nopEngine satisfies the engine interface; the worker only calls Name and GetConfigs
type nopEngine struct{}

func (nopEngine) Name() string                               { return "Nop" }
func (nopEngine) Open(context.Context) error                 { return nil }
func (nopEngine) EnsureSchema(context.Context) error         { return nil }
func (nopEngine) Teardown(context.Context) error             { return nil }
func (nopEngine) SchemaExists(context.Context) (bool, error) { return false, nil }
func (nopEngine) Count(context.Context) (int64, error)       { return 0, nil }
func (nopEngine) GetConfigs() map[string]string              { return map[string]string{"engine": "nop"} }
func (nopEngine) Close() error                               { return nil }
func (nopEngine) Insert(context.Context, []record.Record) (time.Duration, error) {
	return 0, nil
}
func (nopEngine) Update(context.Context, []record.Record) (time.Duration, error) {
	return 0, nil
}
func (nopEngine) ReadByAge(context.Context, int) ([]record.Record, time.Duration, error) {
	return nil, 0, nil
}

func TestDoRecordsMetrics(t *testing.T) {
	w := NewWorker(0, nopEngine{})
	w.Start()

	for _, d := range []time.Duration{time.Second, 3 * time.Second} {
		elapsed, err := w.Do(Read, 100, func() (time.Duration, int, error) { return d, 4, nil })
		require.NoError(t, err)
		require.Equal(t, d, elapsed)
	}
	_, err := w.Do(Insert, 100, func() (time.Duration, int, error) { return 2 * time.Second, 0, nil })
	require.NoError(t, err)
	w.Stop()

	results := w.Results()
	require.Len(t, results, 1)

	read := results[100][Read]
	require.Equal(t, 2, read.CompleteCount)
	require.Zero(t, read.AbortCount)
	require.Equal(t, []float64{1, 3}, read.Rts)
	require.Equal(t, 4.0, read.TotalRt)
	require.Equal(t, 8, read.Rows)

	require.Equal(t, 1, results[100][Insert].CompleteCount)
	require.Equal(t, map[string]string{"engine": "nop"}, w.GetConfigs())
}

func TestDoReturnsErrorAndCountsAbort(t *testing.T) {
	w := NewWorker(1, nopEngine{})
	w.Start()
	defer w.Stop()

	sentinel := errors.New("connection refused")
	_, err := w.Do(Update, 10, func() (time.Duration, int, error) { return time.Millisecond, 0, sentinel })
	require.ErrorIs(t, err, sentinel)

	metric := w.Results()[10][Update]
	require.Equal(t, 1, metric.AbortCount)
	require.Zero(t, metric.CompleteCount)
	require.Empty(t, metric.Rts)
}

func TestDoClampsNegativeDurations(t *testing.T) {
	w := NewWorker(2, nopEngine{})
	w.Start()
	defer w.Stop()

	elapsed, err := w.Do(Insert, 1, func() (time.Duration, int, error) { return -time.Second, 0, nil })
	require.NoError(t, err)
	require.Zero(t, elapsed)
	require.Equal(t, []float64{0}, w.Results()[1][Insert].Rts)
}

func TestResultsAreCopies(t *testing.T) {
	w := NewWorker(3, nopEngine{})
	w.Start()
	defer w.Stop()

	_, err := w.Do(Read, 5, func() (time.Duration, int, error) { return time.Second, 1, nil })
	require.NoError(t, err)

	results := w.Results()
	results[5][Read].Rts[0] = 42
	require.Equal(t, []float64{1}, w.Results()[5][Read].Rts)
}

func TestRestartKeepsMetrics(t *testing.T) {
	w := NewWorker(4, nopEngine{})

	// without a running logger the operation is still recorded
	_, err := w.Do(Insert, 1, func() (time.Duration, int, error) { return time.Second, 0, nil })
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w.Start()
		_, err := w.Do(Insert, 1, func() (time.Duration, int, error) { return time.Second, 0, nil })
		require.NoError(t, err)
		w.Stop()
	}
	w.Stop()

	require.Equal(t, 3, w.Results()[1][Insert].CompleteCount)
}
