package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/internal/database"
)

// ErrInvalidIdentifier indicates a table or function name that is not a
// plain, optionally schema-qualified, SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid sql identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Names are interpolated into SQL, so they are checked up front.
func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// MatchFunction calls a Postgres set-returning function
// fn(input_vector vector, top_n int) and returns its rows unchanged.
type MatchFunction struct {
	db   database.Database
	name string
}

// NewMatchFunction creates a similarity index backed by the named function.
func NewMatchFunction(db database.Database, name string) (*MatchFunction, error) {
	if err := validateIdentifier(name); err != nil {
		return nil, err
	}
	return &MatchFunction{db: db, name: name}, nil
}

// MatchSimilar implements search.SimilarityIndex.
func (f *MatchFunction) MatchSimilar(ctx context.Context, vector []float64, topN int) ([]search.Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s(input_vector => ?::vector, top_n => ?)`, f.name)
	return callFunction(ctx, f.db, f.name, query, database.NewPgVector(vector), topN)
}

// TextSearchFunction calls a Postgres set-returning function
// fn(search_query text, max_results int) and returns its rows unchanged.
type TextSearchFunction struct {
	db   database.Database
	name string
}

// NewTextSearchFunction creates a lexical index backed by the named function.
func NewTextSearchFunction(db database.Database, name string) (*TextSearchFunction, error) {
	if err := validateIdentifier(name); err != nil {
		return nil, err
	}
	return &TextSearchFunction{db: db, name: name}, nil
}

// SearchTitles implements search.LexicalIndex.
func (f *TextSearchFunction) SearchTitles(ctx context.Context, query string, maxResults int) ([]search.Row, error) {
	sql := fmt.Sprintf(`SELECT * FROM %s(search_query => ?, max_results => ?)`, f.name)
	return callFunction(ctx, f.db, f.name, sql, query, maxResults)
}

func callFunction(ctx context.Context, db database.Database, name, sql string, args ...any) ([]search.Row, error) {
	var raw []map[string]any
	if err := db.Session(ctx).Raw(sql, args...).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return toRows(raw), nil
}

func toRows(raw []map[string]any) []search.Row {
	rows := make([]search.Row, len(raw))
	for i, r := range raw {
		rows[i] = search.Row(r)
	}
	return rows
}

var (
	_ search.SimilarityIndex = (*MatchFunction)(nil)
	_ search.LexicalIndex    = (*TextSearchFunction)(nil)
)
