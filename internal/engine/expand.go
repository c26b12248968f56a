package engine

import (
	"context"
	"math"
	"sort"
)

// ExpandDecider filters candidate terms during expansion.
type ExpandDecider func(term string) bool

// Expand proposes the terms that best characterize the seed documents,
// scored by seed frequency times inverse document frequency. accept may be
// nil; limit < 0 returns every candidate.
func (e *Engine) Expand(ctx context.Context, seed []uint32, limit int, accept ExpandDecider) ([]string, error) {
	total, err := e.Store.DocCount(ctx)
	if err != nil {
		return nil, err
	}

	seedFreq := make(map[string]int)
	for _, docid := range seed {
		terms, err := e.Store.DocTerms(ctx, docid)
		if err != nil {
			return nil, err
		}
		for _, term := range terms {
			seedFreq[term]++
		}
	}

	type candidate struct {
		term  string
		score float64
	}
	candidates := make([]candidate, 0, len(seedFreq))
	for term, rf := range seedFreq {
		if accept != nil && !accept(term) {
			continue
		}
		bm, err := e.Store.Postings(ctx, term)
		if err != nil {
			return nil, err
		}
		df := bm.GetCardinality()
		if df == 0 {
			continue
		}
		score := float64(rf) * math.Log(1+float64(total)/float64(df))
		candidates = append(candidates, candidate{term: term, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].term < candidates[j].term
	})

	if limit >= 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	terms := make([]string, len(candidates))
	for i, c := range candidates {
		terms[i] = c.term
	}
	return terms, nil
}
