package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/SuryaNelakanti/db-bench-fork/benchmark"
	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/util"
	"github.com/SuryaNelakanti/db-bench-fork/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

//go:embed configs/crud.yaml
var defaultConfig []byte

type BenchmarkArgs struct {
	Backends     []string
	RecordCounts []int `yaml:"recordCounts"`
	Runs         int
	Kinds        []engine.Kind `yaml:"-"`
	FileData     []byte        `yaml:"-"` // config file contents
}

type ProcessedResult struct {
	backend string
	records int
	op      worker.Operation
	rt      float64
	rtP95   float64
	ct      int
	ar      float64
	rows    float64
}

// Prepare zerolog
func setupLogging(disableLog bool, level string, pretty bool) string {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var zlevel zerolog.Level
	if disableLog {
		zlevel = zerolog.Disabled
	} else if level == "info" {
		zlevel = zerolog.InfoLevel
	} else {
		zlevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(zlevel)

	if pretty {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano})
	}

	runID := uuid.NewString()
	zlog.Logger = zlog.With().Str("run", runID).Logger()
	return runID
}

// Returns a BenchmarkArgs struct with the information in the configFile, or in the embedded
// default configuration when configFile is empty. backends overrides the configured list.
func buildArgs(configFile string, backends []string) *BenchmarkArgs {
	data := defaultConfig
	if configFile != "" {
		data = util.Try(os.ReadFile(configFile))
	}

	args := BenchmarkArgs{Runs: 1}
	util.CheckErr(yaml.Unmarshal(data, &args))
	args.FileData = data

	if len(backends) > 0 {
		args.Backends = backends
	}
	if len(args.Backends) == 0 {
		args.Kinds = engine.DefaultKinds
	} else {
		for _, b := range args.Backends {
			args.Kinds = append(args.Kinds, util.Try(engine.ParseKind(b)))
		}
	}

	return &args
}

// Opens every engine, runs the benchmark and prints the summary. Engines are closed on return.
func run(ctx context.Context, args *BenchmarkArgs, runID string, out io.Writer) error {
	engines, err := benchmark.NewEngines(args.Kinds, args.FileData)
	if err != nil {
		return err
	}

	for _, e := range engines {
		if err := e.Open(ctx); err != nil {
			return fmt.Errorf("%s: open: %w", e.Name(), err)
		}
		defer func(e engine.Engine) {
			if err := e.Close(); err != nil {
				zlog.Error().Err(err).Str("engine", e.Name()).Msg("Close failed")
			}
		}(e)
	}

	b, err := benchmark.New(args.FileData, engines, out)
	if err != nil {
		return err
	}

	zlog.Info().Strs("backends", kindNames(args.Kinds)).Ints("recordCounts", args.RecordCounts).Int("runs", args.Runs).
		Msg("Run started")
	if err := b.Run(ctx); err != nil {
		return err
	}
	zlog.Info().Msg("Run ended")

	names := []string{}
	for _, e := range engines {
		names = append(names, e.Name())
	}
	printSummary(out, aggregateResults(names, b.Results()), runID, b.GetConfigs(), b.Workers())
	return nil
}

func kindNames(kinds []engine.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// Combines the runs of every engine, record count and operation, reporting engines in the order
// of names. The response time (rt) and p95 consider only the completed runs.
func aggregateResults(names []string, all map[string]map[int]map[worker.Operation]worker.Metric) []ProcessedResult {
	results := []ProcessedResult{}

	for _, name := range names {
		metrics := all[name]
		counts := []int{}
		for count := range metrics {
			counts = append(counts, count)
		}
		sort.Ints(counts)

		for _, count := range counts {
			for _, op := range worker.Operations {
				metric, ok := metrics[count][op]
				if !ok {
					continue
				}
				total := metric.CompleteCount + metric.AbortCount
				result := ProcessedResult{
					backend: name,
					records: count,
					op:      op,
					rt:      util.Mean(metric.Rts),
					rtP95:   util.Percentile(metric.Rts, 95),
					ct:      metric.CompleteCount,
					ar:      float64(metric.AbortCount) / float64(total),
					rows:    math.NaN(),
				}
				if metric.CompleteCount > 0 {
					result.rows = float64(metric.Rows) / float64(metric.CompleteCount)
				}
				results = append(results, result)
			}
		}
	}

	return results
}

func printSummary(out io.Writer, results []ProcessedResult, runID string, benchmarkConfigs map[string]string,
	workers []*worker.Worker,
) {
	sortedConfigs := []string{}
	for k := range benchmarkConfigs {
		sortedConfigs = append(sortedConfigs, k)
	}
	sort.Strings(sortedConfigs)

	configValues := []string{}
	for _, config := range sortedConfigs {
		configValues = append(configValues, benchmarkConfigs[config])
	}

	// CSV header
	header := "Csv:backend,records,operation"
	if len(sortedConfigs) > 0 {
		header += "," + strings.Join(sortedConfigs, ",")
	}
	fmt.Fprintln(out, header+",rt,rtP95,ct,ar,rows")

	for _, r := range results {
		csv := fmt.Sprintf("Csv:%s,%d,%s", r.backend, r.records, r.op)
		if len(configValues) > 0 {
			csv += "," + strings.Join(configValues, ",")
		}
		csv += fmt.Sprintf(",%.6f,%.6f,%d,%.6f,%.1f", r.rt, r.rtP95, r.ct, r.ar, r.rows)
		fmt.Fprintln(out, csv)
	}

	// metrics in a key-value format to ease reading
	kv := fmt.Sprintf("run: %s", runID)
	for _, config := range sortedConfigs {
		kv += fmt.Sprintf("\n%s: %s", config, benchmarkConfigs[config])
	}
	for _, w := range workers {
		engineConfigs := w.GetConfigs()
		keys := []string{}
		for k := range engineConfigs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kv += fmt.Sprintf("\n%s.%s: %s", w.Engine().Name(), k, engineConfigs[k])
		}
	}
	for _, r := range results {
		kv += fmt.Sprintf("\n%s.%d.%s: rt=%.6f rtP95=%.6f ct=%d ar=%.6f", r.backend, r.records, r.op,
			r.rt, r.rtP95, r.ct, r.ar)
	}
	fmt.Fprintln(out, kv)
}

func main() {
	disableLog := pflag.Bool("no-log", false, "Disables the log")
	configFile := pflag.String("conf", "", "Benchmark config file (defaults to the embedded configs/crud.yaml)")
	logLevel := pflag.String("level", "debug", "Log level (info|debug)")
	pretty := pflag.Bool("pretty", false, "Human-readable log output")
	backends := pflag.StringSlice("backends", nil, "Backends to benchmark, in report order")
	pflag.Parse()

	runID := setupLogging(*disableLog, *logLevel, *pretty)
	args := buildArgs(*configFile, *backends)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, args, runID, os.Stdout)
	stop()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Benchmark failed")
	}
}
