package engine

import (
	"context"
	"time"

	"github.com/SuryaNelakanti/db-bench-fork/record"
)

type Engine interface {
	// Display name used in reports (e.g. "MySQL")
	Name() string
	// Acquires the client, pool or session
	Open(ctx context.Context) error
	// Creates the table/collection/keyspace and the age index, if missing
	EnsureSchema(ctx context.Context) error
	// Writes all records, returning the time spent in the client call
	Insert(ctx context.Context, records []record.Record) (time.Duration, error)
	// Reads every record with the given age
	ReadByAge(ctx context.Context, age int) ([]record.Record, time.Duration, error)
	// Rewrites name and age of every record, keyed by Field1
	Update(ctx context.Context, records []record.Record) (time.Duration, error)
	// Drops everything EnsureSchema created; a missing schema is not an error
	Teardown(ctx context.Context) error
	// Reports whether the schema object exists
	SchemaExists(ctx context.Context) (bool, error)
	// Number of stored records
	Count(ctx context.Context) (int64, error)
	// Returns the engine-specific configurations
	GetConfigs() map[string]string
	// Releases the client
	Close() error
}
