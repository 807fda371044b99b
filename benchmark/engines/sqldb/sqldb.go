package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	dbutils "github.com/SuryaNelakanti/db-bench-fork/dbUtils"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/SuryaNelakanti/db-bench-fork/util"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"
)

// SqlDb benchmarks a relational backend through database/sql.
type SqlDb struct {
	kind     engine.Kind
	dialect  Dialect
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	Pool     bool   `yaml:"pool"`
	PoolSize int    `yaml:"poolSize"`
	db       *sql.DB
	conn     *sql.Conn
	q        dbutils.Querier
}

var dialects = map[engine.Kind]Dialect{
	engine.MySQL:    mysqlDialect,
	engine.Postgres: postgresDialect,
	engine.SQLite:   sqliteDialect,
}

// Builds the engine for kind from its section of the configuration
func New(kind engine.Kind, configData []byte) (*SqlDb, error) {
	dialect, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("sqldb: unsupported backend %q", kind)
	}

	s := SqlDb{
		kind:     kind,
		dialect:  dialect,
		Driver:   dialect.DefaultDriver(),
		Table:    "your_table",
		Pool:     true,
		PoolSize: 10,
	}
	if err := util.DecodeSection(configData, string(kind), &s); err != nil {
		return nil, err
	}
	if s.DSN == "" {
		return nil, fmt.Errorf("sqldb: %s: missing dsn", kind)
	}

	return &s, nil
}

func (s *SqlDb) log(msg string) {
	zlog.Info().Str("engine", string(s.kind)).Str("table", s.Table).Msg(msg)
}

func (s *SqlDb) Name() string {
	return s.kind.DisplayName()
}

func (s *SqlDb) Open(ctx context.Context) error {
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.kind, err)
	}
	dbutils.ConfigurePool(db, s.Pool, s.PoolSize)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", s.kind, err)
	}
	s.db = db
	s.q = db

	if !s.Pool {
		conn, err := db.Conn(ctx)
		if err != nil {
			db.Close()
			return fmt.Errorf("acquire %s connection: %w", s.kind, err)
		}
		s.conn = conn
		s.q = conn
	}

	return nil
}

func (s *SqlDb) quotedTable() string {
	return s.dialect.QuoteIdent(s.Table)
}

func (s *SqlDb) EnsureSchema(ctx context.Context) error {
	exists, err := s.SchemaExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.log("Table already exists")
		return nil
	}

	if err := dbutils.ExecAll(ctx, s.q, s.dialect.CreateTable(s.Table)...); err != nil {
		return err
	}
	s.log("Table created")
	return nil
}

func (s *SqlDb) SchemaExists(ctx context.Context) (bool, error) {
	return dbutils.TableExists(ctx, s.q, s.dialect.TableExistsQuery(), s.Table)
}

func (s *SqlDb) Count(ctx context.Context) (int64, error) {
	return dbutils.CountRows(ctx, s.q, s.quotedTable())
}

func (s *SqlDb) Insert(ctx context.Context, records []record.Record) (time.Duration, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Field1, r.Name, r.Age}
	}

	if s.dialect.UseCopy() {
		return util.Timed(func() error { return s.copyIn(ctx, rows) })
	}

	stmt := fmt.Sprintf("INSERT INTO %s (field1, name, age) VALUES (%s, %s, %s)", s.quotedTable(),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	return util.Timed(func() error { return dbutils.ExecBatchTx(ctx, s.q, stmt, rows) })
}

// Bulk loads rows with COPY FROM STDIN
func (s *SqlDb) copyIn(ctx context.Context, rows [][]any) error {
	txn, err := s.q.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(s.Table, "field1", "name", "age"))
	if err != nil {
		return err
	}
	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return err
		}
	}
	// flush the buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return txn.Commit()
}

func (s *SqlDb) ReadByAge(ctx context.Context, age int) ([]record.Record, time.Duration, error) {
	query := fmt.Sprintf("SELECT field1, name, age FROM %s WHERE age = %s", s.quotedTable(), s.dialect.Placeholder(1))
	result := []record.Record{}

	elapsed, err := util.Timed(func() error {
		rs, err := s.q.QueryContext(ctx, query, age)
		if err != nil {
			return err
		}
		defer rs.Close()

		for rs.Next() {
			var r record.Record
			if err := rs.Scan(&r.Field1, &r.Name, &r.Age); err != nil {
				return err
			}
			result = append(result, r)
		}
		return rs.Err()
	})

	return result, elapsed, err
}

func (s *SqlDb) Update(ctx context.Context, records []record.Record) (time.Duration, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Name, r.Age, r.Field1}
	}

	stmt := fmt.Sprintf("UPDATE %s SET name = %s, age = %s WHERE field1 = %s", s.quotedTable(),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	return util.Timed(func() error { return dbutils.ExecBatchTx(ctx, s.q, stmt, rows) })
}

func (s *SqlDb) Teardown(ctx context.Context) error {
	return dbutils.ExecAll(ctx, s.q, "DROP TABLE IF EXISTS "+s.quotedTable())
}

func (s *SqlDb) GetConfigs() map[string]string {
	return map[string]string{
		"engine":   string(s.kind),
		"driver":   s.Driver,
		"pool":     strconv.FormatBool(s.Pool),
		"poolSize": strconv.Itoa(s.PoolSize),
	}
}

func (s *SqlDb) Close() error {
	var connErr error
	if s.conn != nil {
		connErr = s.conn.Close()
		s.conn = nil
	}
	if s.db == nil {
		return connErr
	}
	err := s.db.Close()
	s.db = nil
	s.q = nil
	return errors.Join(connErr, err)
}
