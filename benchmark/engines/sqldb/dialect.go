package sqldb

import (
	"fmt"

	"github.com/lib/pq"
)

// Dialect abstracts the SQL differences between the relational backends.
type Dialect interface {
	// database/sql driver name used when the configuration does not set one
	DefaultDriver() string

	// Bind parameter placeholder for the given 1-based index
	Placeholder(index int) string

	QuoteIdent(name string) string

	// Count query over the catalog, taking the table name as its only argument
	TableExistsQuery() string

	// DDL for the table and its indexes, in execution order
	CreateTable(table string) []string

	// Whether inserts go through COPY instead of prepared INSERTs
	UseCopy() bool
}

var mysqlDialect Dialect = mysqlD{}
var postgresDialect Dialect = postgresD{}
var sqliteDialect Dialect = sqliteD{}

type mysqlD struct{}

func (mysqlD) DefaultDriver() string         { return "mysql" }
func (mysqlD) Placeholder(_ int) string      { return "?" }
func (mysqlD) QuoteIdent(name string) string { return "`" + name + "`" }
func (mysqlD) UseCopy() bool                 { return false }

func (mysqlD) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (d mysqlD) CreateTable(table string) []string {
	t := d.QuoteIdent(table)
	return []string{
		fmt.Sprintf("CREATE TABLE %s (field1 INT PRIMARY KEY, name VARCHAR(100), age INT)", t),
		fmt.Sprintf("CREATE INDEX idx_age ON %s(age)", t),
		fmt.Sprintf("CREATE INDEX idx_field ON %s(field1)", t),
	}
}

type postgresD struct{}

func (postgresD) DefaultDriver() string         { return "postgres" }
func (postgresD) Placeholder(index int) string  { return fmt.Sprintf("$%d", index) }
func (postgresD) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }
func (postgresD) UseCopy() bool                 { return true }

func (postgresD) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (d postgresD) CreateTable(table string) []string {
	t := d.QuoteIdent(table)
	return []string{
		fmt.Sprintf("CREATE TABLE %s (field1 INT PRIMARY KEY, name VARCHAR(100), age INT)", t),
		fmt.Sprintf("CREATE INDEX %s ON %s (age)", d.QuoteIdent(table+"_idx_age"), t),
	}
}

type sqliteD struct{}

func (sqliteD) DefaultDriver() string         { return "sqlite" }
func (sqliteD) Placeholder(_ int) string      { return "?" }
func (sqliteD) QuoteIdent(name string) string { return `"` + name + `"` }
func (sqliteD) UseCopy() bool                 { return false }

func (sqliteD) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (d sqliteD) CreateTable(table string) []string {
	t := d.QuoteIdent(table)
	return []string{
		fmt.Sprintf("CREATE TABLE %s (field1 INTEGER PRIMARY KEY, name VARCHAR(100), age INTEGER)", t),
		fmt.Sprintf("CREATE INDEX %s ON %s (age)", d.QuoteIdent(table+"_idx_age"), t),
	}
}
