package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRecords persists listing records to PostgreSQL.
type PostgresRecords struct {
	*sqlRecords
}

// NewPostgresRecords opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgresRecords(dsn string) (*PostgresRecords, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return &PostgresRecords{&sqlRecords{
		db:          db,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}}, nil
}
