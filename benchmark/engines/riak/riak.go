package riak_engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/SuryaNelakanti/db-bench-fork/util"

	"github.com/basho/riak-go-client"
	zlog "github.com/rs/zerolog/log"
)

// Riak stores each record as a JSON object keyed by field1, with an integer secondary index on
// age. Secondary indexes need the leveldb or memory backend.
type Riak struct {
	Connection       []string      `yaml:"connection"`
	BucketType       string        `yaml:"bucketType"`
	Bucket           string        `yaml:"bucket"`
	AgeIndex         string        `yaml:"ageIndex"`
	WriteConcurrency int           `yaml:"writeConcurrency"`
	FetchConcurrency int           `yaml:"fetchConcurrency"`
	TeardownTimeout  time.Duration `yaml:"teardownTimeout"`
	client           *riak.Client
}

// Interval between key listings while a teardown waits for tombstones
const teardownPoll = time.Second

func New(configData []byte) (*Riak, error) {
	r := Riak{
		Connection:       []string{"127.0.0.1:8087"},
		BucketType:       "default",
		Bucket:           "your_table",
		AgeIndex:         "age_int",
		WriteConcurrency: 32,
		FetchConcurrency: 4,
		TeardownTimeout:  30 * time.Second,
	}
	if err := util.DecodeSection(configData, string(engine.Riak), &r); err != nil {
		return nil, err
	}
	if r.WriteConcurrency <= 0 || r.FetchConcurrency <= 0 {
		return nil, fmt.Errorf("riak: writeConcurrency and fetchConcurrency must be positive")
	}
	return &r, nil
}

func (r *Riak) log(msg string) {
	zlog.Info().Str("engine", string(engine.Riak)).Str("bucket", r.Bucket).Msg(msg)
}

func (r *Riak) Name() string {
	return engine.Riak.DisplayName()
}

func (r *Riak) Open(ctx context.Context) error {
	client, err := riak.NewClient(&riak.NewClientOptions{RemoteAddresses: r.Connection})
	if err != nil {
		return fmt.Errorf("connect riak: %w", err)
	}
	r.client = client
	return nil
}

func (r *Riak) ping() error {
	ok, err := r.client.Ping()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no successful response")
	}
	return nil
}

// Buckets need no DDL; only check the cluster answers
func (r *Riak) EnsureSchema(ctx context.Context) error {
	if err := r.ping(); err != nil {
		return fmt.Errorf("ping riak: %w", err)
	}
	r.log("Bucket ready")
	return nil
}

func key(field1 int) string {
	return strconv.Itoa(field1)
}

// Builds the stored object for a record, indexed by age
func encode(rec record.Record) (*riak.Object, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	obj := &riak.Object{
		ContentType:     "application/json",
		Charset:         "utf-8",
		ContentEncoding: "utf-8",
		Value:           value,
	}
	return obj, nil
}

func decode(obj *riak.Object) (record.Record, error) {
	var rec record.Record
	err := json.Unmarshal(obj.Value, &rec)
	return rec, err
}

func (r *Riak) storeCommands(records []record.Record) ([]riak.Command, error) {
	cmds := make([]riak.Command, len(records))
	for i, rec := range records {
		obj, err := encode(rec)
		if err != nil {
			return nil, err
		}
		obj.AddToIntIndex(r.AgeIndex, rec.Age)
		cmds[i], err = riak.NewStoreValueCommandBuilder().
			WithBucketType(r.BucketType).
			WithBucket(r.Bucket).
			WithKey(key(rec.Field1)).
			WithContent(obj).
			Build()
		if err != nil {
			return nil, err
		}
	}
	return cmds, nil
}

// Executes the commands with at most concurrency in flight, returning the first error
func (r *Riak) executeAll(ctx context.Context, cmds []riak.Command, concurrency int) error {
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for _, cmd := range cmds {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(cmd riak.Command) {
			defer wg.Done()
			if err := r.client.Execute(cmd); err != nil {
				once.Do(func() { firstErr = err })
			}
			<-semaphore
		}(cmd)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (r *Riak) Insert(ctx context.Context, records []record.Record) (time.Duration, error) {
	cmds, err := r.storeCommands(records)
	if err != nil {
		return 0, err
	}
	return util.Timed(func() error { return r.executeAll(ctx, cmds, r.WriteConcurrency) })
}

// Overwrites the stored objects; the default bucket type keeps no siblings
func (r *Riak) Update(ctx context.Context, records []record.Record) (time.Duration, error) {
	return r.Insert(ctx, records)
}

func (r *Riak) ReadByAge(ctx context.Context, age int) ([]record.Record, time.Duration, error) {
	query, err := riak.NewSecondaryIndexQueryCommandBuilder().
		WithBucketType(r.BucketType).
		WithBucket(r.Bucket).
		WithIndexName(r.AgeIndex).
		WithIntIndexKey(age).
		Build()
	if err != nil {
		return nil, 0, err
	}

	result := []record.Record{}
	elapsed, err := util.Timed(func() error {
		if err := r.client.Execute(query); err != nil {
			return err
		}

		// get the values of each key. this is parallelized to reduce latency.
		fetches := []*riak.FetchValueCommand{}
		for _, res := range query.(*riak.SecondaryIndexQueryCommand).Response.Results {
			cmd, err := riak.NewFetchValueCommandBuilder().
				WithBucketType(r.BucketType).
				WithBucket(r.Bucket).
				WithKey(string(res.ObjectKey)).
				Build()
			if err != nil {
				return err
			}
			fetches = append(fetches, cmd.(*riak.FetchValueCommand))
		}

		cmds := make([]riak.Command, len(fetches))
		for i, f := range fetches {
			cmds[i] = f
		}
		if err := r.executeAll(ctx, cmds, r.FetchConcurrency); err != nil {
			return err
		}

		for _, f := range fetches {
			if f.Response == nil || f.Response.IsNotFound || len(f.Response.Values) == 0 {
				continue
			}
			rec, err := decode(f.Response.Values[0])
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})

	return result, elapsed, err
}

func (r *Riak) listKeysCommand() (riak.Command, error) {
	return riak.NewListKeysCommandBuilder().
		WithBucketType(r.BucketType).
		WithBucket(r.Bucket).
		Build()
}

func (r *Riak) listKeys() ([]string, error) {
	cmd, err := r.listKeysCommand()
	if err != nil {
		return nil, err
	}
	if err := r.client.Execute(cmd); err != nil {
		return nil, err
	}
	return cmd.(*riak.ListKeysCommand).Response.Keys, nil
}

func (r *Riak) SchemaExists(ctx context.Context) (bool, error) {
	keys, err := r.listKeys()
	if err != nil {
		return false, fmt.Errorf("list keys: %w", err)
	}
	return len(keys) > 0, nil
}

func (r *Riak) Count(ctx context.Context) (int64, error) {
	keys, err := r.listKeys()
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	return int64(len(keys)), nil
}

func (r *Riak) deleteCommands(keys []string) ([]riak.Command, error) {
	cmds := make([]riak.Command, len(keys))
	for i, k := range keys {
		cmd, err := riak.NewDeleteValueCommandBuilder().
			WithBucketType(r.BucketType).
			WithBucket(r.Bucket).
			WithKey(k).
			Build()
		if err != nil {
			return nil, err
		}
		cmds[i] = cmd
	}
	return cmds, nil
}

// Deletes every key of the bucket, there is no bucket drop. Deleted keys stay listed until their
// tombstones are reaped, so the listing is repeated until it comes back empty.
func (r *Riak) Teardown(ctx context.Context) error {
	deadline := time.Now().Add(r.TeardownTimeout)
	for {
		keys, err := r.listKeys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d keys still listed after %s", len(keys), r.TeardownTimeout)
		}

		cmds, err := r.deleteCommands(keys)
		if err != nil {
			return err
		}
		if err := r.executeAll(ctx, cmds, r.WriteConcurrency); err != nil {
			return fmt.Errorf("delete keys: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(teardownPoll):
		}
	}
}

func (r *Riak) GetConfigs() map[string]string {
	return map[string]string{
		"engine":           string(engine.Riak),
		"writeConcurrency": strconv.Itoa(r.WriteConcurrency),
		"fetchConcurrency": strconv.Itoa(r.FetchConcurrency),
	}
}

func (r *Riak) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Stop()
	r.client = nil
	return err
}
