package record

import (
	"github.com/brianvoe/gofakeit/v7"
)

const (
	DefaultMinAge = 18
	DefaultMaxAge = 28
)

// Record is the single synthetic row written to every backend.
type Record struct {
	Field1 int    `json:"field1" bson:"field1"` // primary key, sequential within a round
	Name   string `json:"name" bson:"name"`
	Age    int    `json:"age" bson:"age"`
}

// Returns a fake-data generator; seed 0 picks a random seed
func NewFaker(seed uint64) *gofakeit.Faker {
	return gofakeit.New(seed)
}

// Generates n records whose Field1 values are 0..n-1, in order
func Generate(n int, faker *gofakeit.Faker, minAge int, maxAge int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Field1: i, Name: faker.Name(), Age: faker.IntRange(minAge, maxAge)}
	}
	return records
}

// Returns a copy of records with the same keys and freshly generated names and ages
func Regenerate(records []Record, faker *gofakeit.Faker, minAge int, maxAge int) []Record {
	updated := make([]Record, len(records))
	for i, r := range records {
		updated[i] = Record{Field1: r.Field1, Name: faker.Name(), Age: faker.IntRange(minAge, maxAge)}
	}
	return updated
}

func RandomAge(faker *gofakeit.Faker, minAge int, maxAge int) int {
	return faker.IntRange(minAge, maxAge)
}
