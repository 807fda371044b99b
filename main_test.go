package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SuryaNelakanti/db-bench-fork/benchmark"
	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/worker"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildArgsDefaultConfig(t *testing.T) {
	args := buildArgs("", nil)
	require.Equal(t, engine.DefaultKinds, args.Kinds)
	require.Equal(t, []int{1000, 5000, 10000, 100000}, args.RecordCounts)
	require.Equal(t, 1, args.Runs)
	require.Equal(t, defaultConfig, args.FileData)

	// every configured backend can be built from the embedded file
	for _, kind := range engine.AllKinds {
		_, err := benchmark.NewEngine(kind, args.FileData)
		require.NoError(t, err, kind)
	}
}

func TestBuildArgsOverrides(t *testing.T) {
	path := writeConfig(t, "backends: [mongodb]\nrecordCounts: [5]\nruns: 3\n")

	args := buildArgs(path, nil)
	require.Equal(t, []engine.Kind{engine.MongoDB}, args.Kinds)
	require.Equal(t, 3, args.Runs)

	args = buildArgs(path, []string{"SQLite", "riak"})
	require.Equal(t, []engine.Kind{engine.SQLite, engine.Riak}, args.Kinds)

	require.Panics(t, func() { buildArgs(path, []string{"oracle"}) })
	require.Panics(t, func() { buildArgs(filepath.Join(t.TempDir(), "missing.yaml"), nil) })
}

func TestAggregateResults(t *testing.T) {
	e, err := benchmark.NewEngine(engine.SQLite, []byte("sqlite:\n  dsn: unused.sqlite\n"))
	require.NoError(t, err)
	w := worker.NewWorker(0, e)

	for _, d := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		_, err := w.Do(worker.Read, 10, func() (time.Duration, int, error) { return d, 4, nil })
		require.NoError(t, err)
	}
	_, err = w.Do(worker.Read, 10, func() (time.Duration, int, error) { return 0, 0, fmt.Errorf("down") })
	require.Error(t, err)
	_, err = w.Do(worker.Insert, 10, func() (time.Duration, int, error) { return time.Second, 10, nil })
	require.NoError(t, err)
	_, err = w.Do(worker.Insert, 2, func() (time.Duration, int, error) { return time.Second, 2, nil })
	require.NoError(t, err)

	// engines without metrics report nothing
	results := aggregateResults([]string{"SQLite", "MySQL"},
		map[string]map[int]map[worker.Operation]worker.Metric{"SQLite": w.Results()})
	require.Len(t, results, 3)

	// ordered by record count, then insert, read, update
	require.Equal(t, 2, results[0].records)
	require.Equal(t, worker.Insert, results[1].op)
	require.Equal(t, worker.Read, results[2].op)

	read := results[2]
	require.Equal(t, "SQLite", read.backend)
	require.InDelta(t, 2.0, read.rt, 1e-9)
	require.Equal(t, 3, read.ct)
	require.InDelta(t, 0.25, read.ar, 1e-9)
	require.InDelta(t, 4.0, read.rows, 1e-9)
	require.False(t, math.IsNaN(read.rtP95))

	// a single run has no percentile
	require.True(t, math.IsNaN(results[1].rtP95))
}

func TestRunPrintsSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
backends: [sqlite]
recordCounts: [30, 60]
runs: 2
verify: true
sqlite:
  dsn: %s
`, filepath.Join(dir, "bench.sqlite")))

	args := buildArgs(path, nil)
	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), args, "test-run", out))

	output := out.String()
	require.Contains(t, output, "[Database Deletion] ---")
	require.Contains(t, output, "Csv:backend,records,operation,maxAge,minAge,runs,verify,rt,rtP95,ct,ar,rows\n")

	csvLines := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Csv:SQLite,") {
			csvLines++
			require.Contains(t, line, ",28,18,2,true,")
		}
	}
	require.Equal(t, 6, csvLines)
	require.Contains(t, output, "Csv:SQLite,60,update,28,18,2,true,")
	require.Contains(t, output, "run: test-run")
	require.Contains(t, output, "SQLite.engine: sqlite")
}

func TestRunFailsOnUnreachableBackend(t *testing.T) {
	path := writeConfig(t, `
backends: [sqlite]
recordCounts: [1]
sqlite:
  dsn: /nonexistent-dir/bench.sqlite
`)
	err := run(context.Background(), buildArgs(path, nil), "test-run", &bytes.Buffer{})
	require.Error(t, err)
}

func TestRunLogsResolvedBackends(t *testing.T) {
	logs := &bytes.Buffer{}
	previous := zlog.Logger
	zlog.Logger = zerolog.New(logs).Level(zerolog.InfoLevel)
	defer func() { zlog.Logger = previous }()

	path := writeConfig(t, fmt.Sprintf("recordCounts: [5]\nsqlite:\n  dsn: %s\n",
		filepath.Join(t.TempDir(), "bench.sqlite")))
	args := buildArgs(path, nil)
	require.Empty(t, args.Backends)
	require.Equal(t, engine.DefaultKinds, args.Kinds)

	// the default backends need live servers
	args.Kinds = []engine.Kind{engine.SQLite}
	require.NoError(t, run(context.Background(), args, "test-run", &bytes.Buffer{}))

	require.Contains(t, logs.String(), `"backends":["sqlite"]`)
	require.Contains(t, logs.String(), `"message":"Run started"`)
}
