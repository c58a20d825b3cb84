package persistence

import (
	"cmp"
	"math"
	"slices"
)

// cosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// scoredTitle is a stored title with its similarity to a query.
type scoredTitle struct {
	id         int64
	title      string
	similarity float64
}

// topK scores every candidate against query and keeps the k best, highest
// first. Ties keep the lower id first.
func topK(query []float64, candidates []TitleModel, k int) []scoredTitle {
	if len(candidates) == 0 || k <= 0 {
		return []scoredTitle{}
	}

	scored := make([]scoredTitle, 0, len(candidates))
	for _, c := range candidates {
		if !c.TitleEmbedding.Valid() {
			continue
		}
		scored = append(scored, scoredTitle{
			id:         c.ID,
			title:      c.Title,
			similarity: cosineSimilarity(query, c.TitleEmbedding.Floats()),
		})
	}

	slices.SortStableFunc(scored, func(a, b scoredTitle) int {
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	return scored[:min(k, len(scored))]
}
