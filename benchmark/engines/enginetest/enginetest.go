// Package enginetest checks that an engine honours the benchmark contract: contiguous keys,
// reads filtered by age, updates keyed by field1 and teardown that leaves nothing behind.
package enginetest

import (
	"context"
	"testing"
	"time"

	engine "github.com/SuryaNelakanti/db-bench-fork/benchmark/engines/abstract"
	"github.com/SuryaNelakanti/db-bench-fork/record"
	"github.com/stretchr/testify/require"
)

// Number of records written by the suite
const Records = 200

// Runs the whole suite against an opened engine. The engine's schema is dropped first.
func Run(t *testing.T, e engine.Engine) {
	t.Run("lifecycle", func(t *testing.T) { testLifecycle(t, e) })
	t.Run("repeated rounds", func(t *testing.T) { testRepeatedRounds(t, e) })
}

func testLifecycle(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	faker := record.NewFaker(11)

	require.NoError(t, e.Teardown(ctx))
	exists, err := e.SchemaExists(ctx)
	require.NoError(t, err)
	require.False(t, exists, "schema should not exist after teardown")

	require.NoError(t, e.EnsureSchema(ctx))
	require.NoError(t, e.EnsureSchema(ctx), "schema creation should be idempotent")
	exists, err = e.SchemaExists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	records := record.Generate(Records, faker, record.DefaultMinAge, record.DefaultMaxAge)
	elapsed, err := e.Insert(ctx, records)
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, time.Duration(0))

	count, err := e.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(Records), count)

	age := records[0].Age
	expected := map[int]bool{}
	for _, r := range records {
		if r.Age == age {
			expected[r.Field1] = true
		}
	}

	read, elapsed, err := e.ReadByAge(ctx, age)
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.Len(t, read, len(expected))
	for _, r := range read {
		require.Equal(t, age, r.Age)
		require.True(t, expected[r.Field1], "unexpected field1 %d", r.Field1)
		delete(expected, r.Field1)
	}

	// move every record outside the generated age range
	const updatedAge = record.DefaultMaxAge + 10
	updated := record.Regenerate(records, faker, updatedAge, updatedAge)
	elapsed, err = e.Update(ctx, updated)
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, time.Duration(0))

	read, _, err = e.ReadByAge(ctx, updatedAge)
	require.NoError(t, err)
	require.Len(t, read, Records)

	read, _, err = e.ReadByAge(ctx, age)
	require.NoError(t, err)
	require.Empty(t, read)

	count, err = e.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(Records), count, "update must not add records")

	require.NoError(t, e.Teardown(ctx))
	require.NoError(t, e.Teardown(ctx), "teardown should be idempotent")
	exists, err = e.SchemaExists(ctx)
	require.NoError(t, err)
	require.False(t, exists)
}

func testRepeatedRounds(t *testing.T, e engine.Engine) {
	ctx := context.Background()
	faker := record.NewFaker(12)

	require.NoError(t, e.Teardown(ctx))
	for round := 0; round < 2; round++ {
		require.NoError(t, e.EnsureSchema(ctx))
		records := record.Generate(Records/2, faker, record.DefaultMinAge, record.DefaultMaxAge)
		_, err := e.Insert(ctx, records)
		require.NoError(t, err, "round %d", round)

		count, err := e.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(len(records)), count, "round %d", round)

		require.NoError(t, e.Teardown(ctx))
		exists, err := e.SchemaExists(ctx)
		require.NoError(t, err)
		require.False(t, exists, "round %d left schema behind", round)
	}
}
