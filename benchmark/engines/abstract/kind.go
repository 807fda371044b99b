package engine

import (
	"fmt"
	"strings"
)

type Kind string

const (
	MySQL     Kind = "mysql"
	MongoDB   Kind = "mongodb"
	Cassandra Kind = "cassandra"
	ScyllaDB  Kind = "scylladb"
	Postgres  Kind = "postgres"
	SQLite    Kind = "sqlite"
	Riak      Kind = "riak"
)

// Backends benchmarked when the configuration does not list any
var DefaultKinds = []Kind{MySQL, MongoDB, Cassandra, ScyllaDB}

var AllKinds = []Kind{MySQL, MongoDB, Cassandra, ScyllaDB, Postgres, SQLite, Riak}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q", s)
}

func (k Kind) DisplayName() string {
	switch k {
	case MySQL:
		return "MySQL"
	case MongoDB:
		return "MongoDB"
	case Cassandra:
		return "Cassandra"
	case ScyllaDB:
		return "ScyllaDB"
	case Postgres:
		return "PostgreSQL"
	case SQLite:
		return "SQLite"
	case Riak:
		return "Riak"
	}
	return string(k)
}
