// Package testdb provides a shared test database helper for fast,
// realistic testing against an in-memory SQLite database.
package testdb

import (
	"context"
	"testing"

	"github.com/AntanasZilinskas/fd2p/infrastructure/persistence"
	"github.com/AntanasZilinskas/fd2p/internal/config"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// New creates an in-memory SQLite database holding an empty titles table
// named config.DefaultTitlesTable. The database is closed when the test ends.
func New(t *testing.T) database.Database {
	t.Helper()
	db := NewPlain(t)
	if err := persistence.PrepareSchema(context.Background(), db, config.DefaultTitlesTable, 0); err != nil {
		t.Fatalf("testdb.New: prepare schema: %v", err)
	}
	return db
}

// NewPlain creates an in-memory SQLite database without any tables.
func NewPlain(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb.NewPlain: open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// WithSchema creates an in-memory SQLite database and executes the given
// SQL statements to set up a custom schema.
func WithSchema(t *testing.T, statements ...string) database.Database {
	t.Helper()
	ctx := context.Background()
	db := NewPlain(t)
	for _, stmt := range statements {
		if err := db.Session(ctx).Exec(stmt).Error; err != nil {
			t.Fatalf("testdb.WithSchema: %v\nSQL: %s", err, stmt)
		}
	}
	return db
}

// Insert adds titles to the default table, keyed by id.
func Insert(t *testing.T, db database.Database, titles map[int64]string) {
	t.Helper()
	for id, name := range titles {
		err := db.Session(context.Background()).
			Exec("INSERT INTO "+config.DefaultTitlesTable+" (id, title) VALUES (?, ?)", id, name).Error
		if err != nil {
			t.Fatalf("testdb.Insert: %v", err)
		}
	}
}
