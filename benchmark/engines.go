package benchmark

import (
	"fmt"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/cql"
	"github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/mongodb"
	riak_engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/riak"
	"github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/sqldb"
)

// Returns the engine for kind, configured from its section of configData
func NewEngine(kind engine.Kind, configData []byte) (engine.Engine, error) {
	var e engine.Engine
	var err error

	switch kind {
	case engine.MySQL, engine.Postgres, engine.SQLite:
		e, err = sqldb.New(kind, configData)
	case engine.MongoDB:
		e, err = mongodb.New(configData)
	case engine.Cassandra, engine.ScyllaDB:
		e, err = cql.New(kind, configData)
	case engine.Riak:
		e, err = riak_engine.New(configData)
	default:
		return nil, fmt.Errorf("backend '%s' not found", kind)
	}

	if err != nil {
		return nil, err
	}
	return e, nil
}

// Builds one engine per kind, in order
func NewEngines(kinds []engine.Kind, configData []byte) ([]engine.Engine, error) {
	engines := []engine.Engine{}
	for _, kind := range kinds {
		e, err := NewEngine(kind, configData)
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}
