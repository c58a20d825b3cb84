// Package title holds the song-title record and the store that persists its embedding.
package title

// Record is a row of the title table. The embedding is nil until the
// record has been processed.
type Record struct {
	id        int64
	title     string
	embedding []float64
}

// NewRecord creates a record without an embedding.
func NewRecord(id int64, title string) Record {
	return Record{id: id, title: title}
}

// ReconstructRecord rebuilds a record loaded from storage.
func ReconstructRecord(id int64, title string, embedding []float64) Record {
	return Record{id: id, title: title, embedding: copyVector(embedding)}
}

// ID returns the record identifier.
func (r Record) ID() int64 { return r.id }

// Title returns the song title.
func (r Record) Title() string { return r.title }

// Embedding returns a copy of the stored vector, or nil when absent.
func (r Record) Embedding() []float64 { return copyVector(r.embedding) }

// HasEmbedding reports whether the record has been embedded.
func (r Record) HasEmbedding() bool { return r.embedding != nil }

// Embedding is a freshly computed vector for a record, ready to be written.
type Embedding struct {
	id     int64
	title  string
	vector []float64
}

// NewEmbedding pairs a record with its vector.
func NewEmbedding(id int64, title string, vector []float64) Embedding {
	return Embedding{id: id, title: title, vector: copyVector(vector)}
}

// ID returns the record identifier.
func (e Embedding) ID() int64 { return e.id }

// Title returns the embedded title.
func (e Embedding) Title() string { return e.title }

// Vector returns a copy of the vector.
func (e Embedding) Vector() []float64 { return copyVector(e.vector) }

// Dimension returns the vector length.
func (e Embedding) Dimension() int { return len(e.vector) }

func copyVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp
}
