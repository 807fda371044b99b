package cql

import (
	"context"
	"fmt"
	"strconv"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/SuryaNelakanti/db-bench-fork/util"

	"github.com/gocql/gocql"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Write modes
const (
	Concurrent = "concurrent"
	Batched    = "batched"
	Sequential = "sequential"
)

// Cql benchmarks a wide-column backend speaking CQL (Cassandra or ScyllaDB).
type Cql struct {
	kind              engine.Kind
	Hosts             []string      `yaml:"hosts"`
	Port              int           `yaml:"port"`
	Keyspace          string        `yaml:"keyspace"`
	Table             string        `yaml:"table"`
	ReplicationFactor int           `yaml:"replicationFactor"`
	Consistency       string        `yaml:"consistency"`
	WriteMode         string        `yaml:"writeMode"`
	BatchSize         int           `yaml:"batchSize"`
	Concurrency       int           `yaml:"concurrency"`
	Timeout           time.Duration `yaml:"timeout"`
	ConnectTimeout    time.Duration `yaml:"connectTimeout"`
	consistency       gocql.Consistency
	session           *gocql.Session
}

var defaultPorts = map[engine.Kind]int{
	engine.Cassandra: 9042,
	engine.ScyllaDB:  9043,
}

func New(kind engine.Kind, configData []byte) (*Cql, error) {
	port, ok := defaultPorts[kind]
	if !ok {
		return nil, fmt.Errorf("cql: unsupported backend %q", kind)
	}

	c := Cql{
		kind:              kind,
		Hosts:             []string{"localhost"},
		Port:              port,
		Keyspace:          "test_keyspace",
		Table:             "your_table",
		ReplicationFactor: 1,
		Consistency:       "ONE",
		WriteMode:         Concurrent,
		BatchSize:         500,
		Concurrency:       50,
		Timeout:           30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
	if err := util.DecodeSection(configData, string(kind), &c); err != nil {
		return nil, err
	}

	consistency, err := gocql.ParseConsistencyWrapper(c.Consistency)
	if err != nil {
		return nil, fmt.Errorf("cql: %s: %w", kind, err)
	}
	c.consistency = consistency

	switch c.WriteMode {
	case Concurrent, Batched, Sequential:
	default:
		return nil, fmt.Errorf("cql: %s: unknown write mode %q", kind, c.WriteMode)
	}
	if c.BatchSize <= 0 || c.Concurrency <= 0 {
		return nil, fmt.Errorf("cql: %s: batchSize and concurrency must be positive", kind)
	}

	return &c, nil
}

func (c *Cql) log(msg string) {
	zlog.Info().Str("engine", string(c.kind)).Str("keyspace", c.Keyspace).Msg(msg)
}

func (c *Cql) Name() string {
	return c.kind.DisplayName()
}

func (c *Cql) Open(ctx context.Context) error {
	cluster := gocql.NewCluster(c.Hosts...)
	cluster.Port = c.Port
	cluster.Consistency = c.consistency
	cluster.Timeout = c.Timeout
	cluster.ConnectTimeout = c.ConnectTimeout
	// DDL waits for schema agreement, which can take longer than a regular query
	cluster.MaxWaitSchemaAgreement = 2 * time.Minute

	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.kind, err)
	}
	c.session = session
	return nil
}

func (c *Cql) table() string {
	return c.Keyspace + "." + c.Table
}

func (c *Cql) exec(ctx context.Context, stmt string, args ...any) error {
	if err := c.session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("exec %q: %w", stmt, err)
	}
	return nil
}

func (c *Cql) EnsureSchema(ctx context.Context) error {
	err := c.exec(ctx, fmt.Sprintf(`
		CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': '%d'}
	`, c.Keyspace, c.ReplicationFactor))
	if err != nil {
		return err
	}

	err = c.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			field1 INT PRIMARY KEY,
			name TEXT,
			age INT
		)
	`, c.table()))
	if err != nil {
		return err
	}

	if err := c.exec(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_age ON %s (age)", c.table())); err != nil {
		return err
	}

	c.log("Keyspace and table created")
	return nil
}

func (c *Cql) SchemaExists(ctx context.Context) (bool, error) {
	var name string
	iter := c.session.Query("SELECT keyspace_name FROM system_schema.keyspaces WHERE keyspace_name = ?", c.Keyspace).
		WithContext(ctx).Iter()
	found := iter.Scan(&name)
	if err := iter.Close(); err != nil {
		return false, fmt.Errorf("list keyspaces: %w", err)
	}
	return found, nil
}

func (c *Cql) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.session.Query("SELECT COUNT(*) FROM " + c.table()).WithContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table(), err)
	}
	return n, nil
}

// Runs stmt once per argument list using the configured write mode
func (c *Cql) write(ctx context.Context, stmt string, rows [][]any) error {
	switch c.WriteMode {
	case Batched:
		for _, chunk := range util.Chunks(len(rows), c.BatchSize) {
			batch := c.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
			for _, args := range rows[chunk[0]:chunk[1]] {
				batch.Query(stmt, args...)
			}
			if err := c.session.ExecuteBatch(batch); err != nil {
				return err
			}
		}
		return nil

	case Sequential:
		for _, args := range rows {
			if err := c.session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
				return err
			}
		}
		return nil

	default:
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.Concurrency)
		for _, args := range rows {
			g.Go(func() error {
				return c.session.Query(stmt, args...).WithContext(gctx).Exec()
			})
		}
		return g.Wait()
	}
}

func (c *Cql) Insert(ctx context.Context, records []record.Record) (time.Duration, error) {
	stmt := fmt.Sprintf("INSERT INTO %s (field1, name, age) VALUES (?, ?, ?)", c.table())
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Field1, r.Name, r.Age}
	}
	return util.Timed(func() error { return c.write(ctx, stmt, rows) })
}

func (c *Cql) ReadByAge(ctx context.Context, age int) ([]record.Record, time.Duration, error) {
	query := fmt.Sprintf("SELECT field1, name, age FROM %s WHERE age = ?", c.table())
	result := []record.Record{}

	elapsed, err := util.Timed(func() error {
		scanner := c.session.Query(query, age).WithContext(ctx).Iter().Scanner()
		for scanner.Next() {
			var r record.Record
			if err := scanner.Scan(&r.Field1, &r.Name, &r.Age); err != nil {
				return err
			}
			result = append(result, r)
		}
		return scanner.Err()
	})

	return result, elapsed, err
}

func (c *Cql) Update(ctx context.Context, records []record.Record) (time.Duration, error) {
	stmt := fmt.Sprintf("UPDATE %s SET name = ?, age = ? WHERE field1 = ?", c.table())
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Name, r.Age, r.Field1}
	}
	return util.Timed(func() error { return c.write(ctx, stmt, rows) })
}

func (c *Cql) Teardown(ctx context.Context) error {
	return c.exec(ctx, "DROP KEYSPACE IF EXISTS "+c.Keyspace)
}

func (c *Cql) GetConfigs() map[string]string {
	configs := map[string]string{
		"engine":      string(c.kind),
		"writeMode":   c.WriteMode,
		"consistency": c.consistency.String(),
	}
	switch c.WriteMode {
	case Batched:
		configs["batchSize"] = strconv.Itoa(c.BatchSize)
	case Concurrent:
		configs["concurrency"] = strconv.Itoa(c.Concurrency)
	}
	return configs
}

func (c *Cql) Close() error {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	return nil
}
