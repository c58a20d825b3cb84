// Package persistence stores title embeddings and answers similarity and
// text queries against PostgreSQL or SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AntanasZilinskas/fd2p/domain/title"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// ErrDimensionMismatch indicates the vector column holds vectors of another length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const (
	sqliteCreateTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    title_embedding TEXT
)`

	sqliteCreateIndexTemplate = `CREATE INDEX IF NOT EXISTS %s_missing_embedding_idx ON %s (id) WHERE title_embedding IS NULL`

	pgCheckDimension = `
SELECT a.atttypmod AS dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = ?
AND a.attname = ?
AND NOT a.attisdropped`
)

// PrepareSchema makes table usable as a title store.
//
// On SQLite the table is created when missing. PostgreSQL schemas are owned
// elsewhere, so only the vector column's declared dimension is checked
// against dimension (0 skips the check).
func PrepareSchema(ctx context.Context, db database.Database, table string, dimension int) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}

	session := db.Session(ctx)
	if db.IsSQLite() {
		if err := session.Exec(fmt.Sprintf(sqliteCreateTableTemplate, table)).Error; err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		if err := session.Exec(fmt.Sprintf(sqliteCreateIndexTemplate, unqualified(table), unqualified(table))).Error; err != nil {
			return fmt.Errorf("create index on %s: %w", table, err)
		}
		return nil
	}

	if dimension <= 0 {
		return nil
	}

	var declared []int
	if err := session.Raw(pgCheckDimension, unqualified(table), title.ColumnEmbedding).Scan(&declared).Error; err != nil {
		return fmt.Errorf("check dimension of %s: %w", table, err)
	}
	// atttypmod is -1 for an unconstrained vector column.
	if len(declared) > 0 && declared[0] > 0 && declared[0] != dimension {
		return fmt.Errorf("%w: %s.%s is vector(%d), provider produces %d",
			ErrDimensionMismatch, table, title.ColumnEmbedding, declared[0], dimension)
	}
	return nil
}

func unqualified(name string) string {
	return name[strings.LastIndex(name, ".")+1:]
}
