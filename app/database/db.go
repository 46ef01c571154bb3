package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps the connection pool with a statement builder that emits the
// placeholder style of the configured dialect.
type DB struct {
	*sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

func NewConnection(driver, dsn string) (*DB, error) {
	dialect := Dialect(driver)

	var placeholder sq.PlaceholderFormat
	switch dialect {
	case DialectSQLite:
		placeholder = sq.Question
	case DialectPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	if dialect == DialectSQLite {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:      conn,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}
