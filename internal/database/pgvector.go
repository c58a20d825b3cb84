package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// PgVector is a nullable embedding column value. It implements sql.Scanner
// and driver.Valuer using the pgvector text format "[1,2,3]", which also
// round-trips through a SQLite TEXT column.
type PgVector struct {
	floats []float64
}

// NewPgVector creates a PgVector holding a copy of floats. A nil slice
// produces a NULL column value.
func NewPgVector(floats []float64) PgVector {
	if floats == nil {
		return PgVector{}
	}
	cp := make([]float64, len(floats))
	copy(cp, floats)
	return PgVector{floats: cp}
}

// Floats returns a copy of the vector, or nil when the column was NULL.
func (v PgVector) Floats() []float64 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// GormDataType implements schema.GormDataTypeInterface.
func (PgVector) GormDataType() string {
	return "vector"
}

// Valid reports whether the vector holds a value.
func (v PgVector) Valid() bool {
	return v.floats != nil
}

// Dimension returns the number of elements in the vector.
func (v PgVector) Dimension() int {
	return len(v.floats)
}

// Scan implements sql.Scanner.
func (v *PgVector) Scan(value any) error {
	var raw string
	switch val := value.(type) {
	case nil:
		v.floats = nil
		return nil
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("cannot scan %T into PgVector", value)
	}

	floats, err := ParseVector(raw)
	if err != nil {
		return err
	}
	v.floats = floats
	return nil
}

// Value implements driver.Valuer. An unset vector is written as NULL.
func (v PgVector) Value() (driver.Value, error) {
	if v.floats == nil {
		return nil, nil
	}
	return v.String(), nil
}

// String returns the vector literal "[1,2,3]".
func (v PgVector) String() string {
	var b strings.Builder
	b.Grow(len(v.floats)*12 + 2)
	b.WriteByte('[')
	for i, f := range v.floats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the literal "[1,2,3]". "[]" yields an empty, non-nil slice.
func ParseVector(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return []float64{}, nil
	}
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("parse vector: missing brackets in %q", truncateSQL(raw))
	}
	parts := strings.Split(raw[1:len(raw)-1], ",")
	floats := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		floats[i] = f
	}
	return floats, nil
}
