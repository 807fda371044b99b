//go:build integration

package sqldb

import (
	"context"
	"fmt"
	"testing"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/enginetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func openFromConfig(t *testing.T, kind engine.Kind, config string) *SqlDb {
	s, err := New(kind, []byte(config))
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestMysqlConformance(t *testing.T) {
	container := enginetest.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "testdb",
			"MYSQL_USER":          "testuser",
			"MYSQL_PASSWORD":      "testpassword",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(3 * time.Minute),
	})
	endpoint, err := container.PortEndpoint(context.Background(), "3306/tcp", "")
	require.NoError(t, err)

	for _, pool := range []bool{true, false} {
		t.Run(fmt.Sprintf("pool=%t", pool), func(t *testing.T) {
			s := openFromConfig(t, engine.MySQL, fmt.Sprintf(`
mysql:
  dsn: testuser:testpassword@tcp(%s)/testdb
  pool: %t
`, endpoint, pool))
			enginetest.Run(t, s)
		})
	}
}

func TestPostgresConformance(t *testing.T) {
	container := enginetest.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute),
	})
	endpoint, err := container.PortEndpoint(context.Background(), "5432/tcp", "")
	require.NoError(t, err)

	s := openFromConfig(t, engine.Postgres, fmt.Sprintf(`
postgres:
  dsn: postgres://testuser:testpassword@%s/testdb?sslmode=disable
`, endpoint))
	enginetest.Run(t, s)
}
