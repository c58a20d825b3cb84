package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/AntanasZilinskas/fd2p/domain/repository"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/AntanasZilinskas/fd2p/domain/title"
)

// fakeEmbedder returns a fixed vector per text and fails for texts in failOn.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float64
	failOn map[string]bool
	err    error
	calls  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, texts...)
	if f.err != nil {
		return nil, f.err
	}
	result := make([][]float64, len(texts))
	for i, text := range texts {
		if f.failOn[text] {
			return nil, errors.New("provider unavailable")
		}
		result[i] = slices.Clone(f.vector)
	}
	return result, nil
}

// blockingEmbedder signals started on its first call and then waits for release.
type blockingEmbedder struct {
	fakeEmbedder
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingEmbedder(vector []float64) *blockingEmbedder {
	return &blockingEmbedder{
		fakeEmbedder: fakeEmbedder{vector: vector},
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (b *blockingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeEmbedder.Embed(ctx, texts)
}

func (f *fakeEmbedder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// fakeTitleStore is an in-memory title.Store that understands the query
// options the services use.
type fakeTitleStore struct {
	mu       sync.Mutex
	rows     map[int64]title.Record
	fetches  []int
	queries  []repository.Query
	upserts  [][]title.Embedding
	updates  []int64
	findErr  error
	saveErr  error
	writeErr error
}

func newFakeTitleStore(records ...title.Record) *fakeTitleStore {
	s := &fakeTitleStore{rows: make(map[int64]title.Record)}
	for _, r := range records {
		s.rows[r.ID()] = r
	}
	return s
}

func (s *fakeTitleStore) Find(_ context.Context, options ...repository.Option) ([]title.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}

	q := repository.Build(options...)
	s.queries = append(s.queries, q)
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []title.Record
	for _, id := range ids {
		rec := s.rows[id]
		if matches(rec, q.Conditions()) {
			out = append(out, rec)
		}
		if q.LimitValue() > 0 && len(out) == q.LimitValue() {
			break
		}
	}
	s.fetches = append(s.fetches, len(out))
	return out, nil
}

func matches(rec title.Record, conds []repository.Condition) bool {
	for _, c := range conds {
		switch {
		case c.Field() == title.ColumnEmbedding && c.Operator() == repository.OpIsNull:
			if rec.HasEmbedding() {
				return false
			}
		case c.Field() == title.ColumnEmbedding && c.Operator() == repository.OpIsNotNull:
			if !rec.HasEmbedding() {
				return false
			}
		case c.Field() == title.ColumnID && c.Operator() == repository.OpGreater:
			if rec.ID() <= c.Value().(int64) {
				return false
			}
		case c.Field() == title.ColumnID && c.Operator() == repository.OpNotIn:
			if slices.Contains(c.Value().([]int64), rec.ID()) {
				return false
			}
		}
	}
	return true
}

func (s *fakeTitleStore) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	records, err := s.Find(ctx, options...)
	return int64(len(records)), err
}

func (s *fakeTitleStore) SaveEmbeddings(_ context.Context, embeddings []title.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.upserts = append(s.upserts, slices.Clone(embeddings))
	for _, e := range embeddings {
		s.rows[e.ID()] = title.ReconstructRecord(e.ID(), e.Title(), e.Vector())
	}
	return nil
}

func (s *fakeTitleStore) UpdateEmbedding(_ context.Context, id int64, vector []float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.updates = append(s.updates, id)
	rec, ok := s.rows[id]
	if !ok {
		return 0, nil
	}
	s.rows[id] = title.ReconstructRecord(id, rec.Title(), vector)
	return 1, nil
}

// fakeIndex records its arguments and returns canned rows.
type fakeIndex struct {
	rows       []search.Row
	err        error
	lastVector []float64
	lastLimit  int
	lastQuery  string
}

func (f *fakeIndex) MatchSimilar(_ context.Context, vector []float64, topN int) ([]search.Row, error) {
	f.lastVector = vector
	f.lastLimit = topN
	return f.rows, f.err
}

func (f *fakeIndex) SearchTitles(_ context.Context, query string, maxResults int) ([]search.Row, error) {
	f.lastQuery = query
	f.lastLimit = maxResults
	return f.rows, f.err
}
