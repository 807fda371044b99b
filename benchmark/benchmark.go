package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/SuryaNelakanti/db-bench-fork/worker"

	"github.com/brianvoe/gofakeit/v7"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Benchmark runs insert, read and update rounds over every engine, one engine and one operation
// at a time, for each configured record count.
type Benchmark struct {
	RecordCounts []int  `yaml:"recordCounts"`
	Runs         int    `yaml:"runs"`
	Seed         uint64 `yaml:"seed"`
	MinAge       int    `yaml:"minAge"`
	MaxAge       int    `yaml:"maxAge"`
	Verify       bool   `yaml:"verify"`
	workers      []*worker.Worker
	faker        *gofakeit.Faker
	out          io.Writer
}

// PhaseError identifies the engine and step that aborted the run.
type PhaseError struct {
	Engine string
	Phase  string
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// ErrVerification is wrapped by every failed verification check
var ErrVerification = errors.New("verification failed")

func New(configData []byte, engines []engine.Engine, out io.Writer) (*Benchmark, error) {
	b := Benchmark{
		Runs:   1,
		MinAge: record.DefaultMinAge,
		MaxAge: record.DefaultMaxAge,
		out:    out,
	}
	if err := yaml.Unmarshal(configData, &b); err != nil {
		return nil, err
	}

	if len(b.RecordCounts) == 0 {
		return nil, errors.New("no record counts configured")
	}
	for _, count := range b.RecordCounts {
		if count <= 0 {
			return nil, fmt.Errorf("invalid record count %d", count)
		}
	}
	if b.Runs <= 0 {
		return nil, fmt.Errorf("invalid number of runs %d", b.Runs)
	}
	if b.MinAge > b.MaxAge {
		return nil, fmt.Errorf("minAge %d is greater than maxAge %d", b.MinAge, b.MaxAge)
	}
	if len(engines) == 0 {
		return nil, errors.New("no backends to benchmark")
	}

	for i, e := range engines {
		b.workers = append(b.workers, worker.NewWorker(i, e))
	}
	b.faker = record.NewFaker(b.Seed)

	return &b, nil
}

func (b *Benchmark) log(msg string) {
	zlog.Info().Str("benchmark", "crud").Msg(msg)
}

// Runs every round. The first error aborts the run and is returned as a *PhaseError; nothing
// is torn down after a failure.
func (b *Benchmark) Run(ctx context.Context) error {
	for _, w := range b.workers {
		w.Start()
	}
	defer func() {
		for _, w := range b.workers {
			w.Stop()
		}
	}()

	if err := b.cleanse(ctx); err != nil {
		return err
	}

	for _, count := range b.RecordCounts {
		for run := 0; run < b.Runs; run++ {
			if err := b.round(ctx, count, run); err != nil {
				return err
			}
		}
	}

	b.log("Benchmark done")
	return nil
}

func (b *Benchmark) printTiming(name string, elapsed time.Duration) {
	fmt.Fprintf(b.out, "%s: %.6f seconds\n", name, elapsed.Seconds())
}

// Drops the schema of every engine
func (b *Benchmark) cleanse(ctx context.Context) error {
	fmt.Fprintln(b.out, "[Database Deletion] ---")
	for _, w := range b.workers {
		e := w.Engine()
		if err := e.Teardown(ctx); err != nil {
			return &PhaseError{e.Name(), "teardown", err}
		}
		if b.Verify {
			exists, err := e.SchemaExists(ctx)
			if err != nil {
				return &PhaseError{e.Name(), "teardown", err}
			}
			if exists {
				return &PhaseError{e.Name(), "teardown", fmt.Errorf("%w: schema still exists", ErrVerification)}
			}
		}
	}
	return nil
}

func (b *Benchmark) createSchemas(ctx context.Context) error {
	fmt.Fprintln(b.out, "[Database Creation] --- ")
	for _, w := range b.workers {
		e := w.Engine()
		if err := e.EnsureSchema(ctx); err != nil {
			return &PhaseError{e.Name(), "create", err}
		}
	}
	return nil
}

func (b *Benchmark) round(ctx context.Context, count int, run int) error {
	zlog.Info().Str("benchmark", "crud").Int("records", count).Int("run", run).Msg("Round started")

	if err := b.createSchemas(ctx); err != nil {
		return err
	}

	records := record.Generate(count, b.faker, b.MinAge, b.MaxAge)
	fmt.Fprintf(b.out, "\nTesting with %d records ----------------------\n", count)

	fmt.Fprintln(b.out, "\nInsert speeds")
	for _, w := range b.workers {
		e := w.Engine()
		elapsed, err := w.Do(worker.Insert, count, func() (time.Duration, int, error) {
			d, err := e.Insert(ctx, records)
			return d, len(records), err
		})
		if err != nil {
			return &PhaseError{e.Name(), "insert", err}
		}
		b.printTiming(e.Name(), elapsed)

		if b.Verify {
			if err := verifyCount(ctx, e, count); err != nil {
				return &PhaseError{e.Name(), "insert", err}
			}
		}
	}

	age := record.RandomAge(b.faker, b.MinAge, b.MaxAge)

	fmt.Fprintln(b.out, "\nRead speeds")
	for _, w := range b.workers {
		e := w.Engine()
		var read []record.Record
		elapsed, err := w.Do(worker.Read, count, func() (time.Duration, int, error) {
			result, d, err := e.ReadByAge(ctx, age)
			read = result
			return d, len(result), err
		})
		if err != nil {
			return &PhaseError{e.Name(), "read", err}
		}
		b.printTiming(e.Name(), elapsed)

		if b.Verify {
			if err := verifyRead(read, age); err != nil {
				return &PhaseError{e.Name(), "read", err}
			}
		}
	}

	updated := record.Regenerate(records, b.faker, b.MinAge, b.MaxAge)

	fmt.Fprintln(b.out, "\nUpdate speeds")
	for _, w := range b.workers {
		e := w.Engine()
		elapsed, err := w.Do(worker.Update, count, func() (time.Duration, int, error) {
			d, err := e.Update(ctx, updated)
			return d, len(updated), err
		})
		if err != nil {
			return &PhaseError{e.Name(), "update", err}
		}
		b.printTiming(e.Name(), elapsed)
	}

	fmt.Fprintln(b.out, "-----------------------------")

	if err := b.cleanse(ctx); err != nil {
		return err
	}

	zlog.Info().Str("benchmark", "crud").Int("records", count).Int("run", run).Int("age", age).Msg("Round ended")
	return nil
}

func verifyCount(ctx context.Context, e engine.Engine, expected int) error {
	n, err := e.Count(ctx)
	if err != nil {
		return err
	}
	if n != int64(expected) {
		return fmt.Errorf("%w: stored %d records, expected %d", ErrVerification, n, expected)
	}
	return nil
}

func verifyRead(read []record.Record, age int) error {
	seen := map[int]bool{}
	for _, r := range read {
		if r.Age != age {
			return fmt.Errorf("%w: record %d has age %d, expected %d", ErrVerification, r.Field1, r.Age, age)
		}
		if seen[r.Field1] {
			return fmt.Errorf("%w: record %d returned twice", ErrVerification, r.Field1)
		}
		seen[r.Field1] = true
	}
	return nil
}

// Workers in report order, one per engine
func (b *Benchmark) Workers() []*worker.Worker {
	return b.workers
}

// Metrics of every engine, keyed by engine name
func (b *Benchmark) Results() map[string]map[int]map[worker.Operation]worker.Metric {
	results := map[string]map[int]map[worker.Operation]worker.Metric{}
	for _, w := range b.workers {
		results[w.Engine().Name()] = w.Results()
	}
	return results
}

// Returns the benchmark-specific configurations
func (b *Benchmark) GetConfigs() map[string]string {
	return map[string]string{
		"runs":   strconv.Itoa(b.Runs),
		"minAge": strconv.Itoa(b.MinAge),
		"maxAge": strconv.Itoa(b.MaxAge),
		"verify": strconv.FormatBool(b.Verify),
	}
}
