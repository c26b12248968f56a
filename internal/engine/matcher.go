package engine

import (
	"context"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuajonah/xapian-haystack/internal/db"
)

// SortKey orders matches by a value slot. Slot values compare bytewise,
// which is meaningful because marshalled values are order-preserving.
type SortKey struct {
	Slot int
	Desc bool
}

// MatchOptions control ordering and paging of a match run.
type MatchOptions struct {
	Sort   []SortKey
	Offset int
	// Limit < 0 returns everything after Offset.
	Limit int
}

// Entry is one matched document.
type Entry struct {
	DocID  uint32
	Weight float64
}

// MatchSet is the paged result of a match run. Estimated is the total
// number of matching documents before paging.
type MatchSet struct {
	Entries   []Entry
	Estimated int
}

// Engine evaluates query trees against a store.
type Engine struct {
	Store db.Store
}

type evalResult struct {
	bm      *roaring.Bitmap
	weights map[uint32]float64
}

func emptyResult() evalResult {
	return evalResult{bm: roaring.New(), weights: map[uint32]float64{}}
}

// Match evaluates q, orders matches by opts.Sort then weight descending
// then docid ascending, and returns the page [Offset, Offset+Limit).
func (e *Engine) Match(ctx context.Context, q *Query, opts MatchOptions) (MatchSet, error) {
	total, err := e.Store.DocCount(ctx)
	if err != nil {
		return MatchSet{}, err
	}

	res, err := e.eval(ctx, q, total)
	if err != nil {
		return MatchSet{}, err
	}

	entries := make([]Entry, 0, res.bm.GetCardinality())
	it := res.bm.Iterator()
	for it.HasNext() {
		docid := it.Next()
		entries = append(entries, Entry{DocID: docid, Weight: res.weights[docid]})
	}

	if len(opts.Sort) > 0 {
		if err := e.sortByValues(ctx, entries, opts.Sort); err != nil {
			return MatchSet{}, err
		}
	} else {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Weight != entries[j].Weight {
				return entries[i].Weight > entries[j].Weight
			}
			return entries[i].DocID < entries[j].DocID
		})
	}

	estimated := len(entries)
	if opts.Offset > len(entries) {
		entries = nil
	} else {
		entries = entries[opts.Offset:]
	}
	if opts.Limit >= 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return MatchSet{Entries: entries, Estimated: estimated}, nil
}

func (e *Engine) sortByValues(ctx context.Context, entries []Entry, keys []SortKey) error {
	values := make(map[uint32]map[int]string, len(entries))
	for _, en := range entries {
		vals, err := e.Store.DocValues(ctx, en.DocID)
		if err != nil {
			return err
		}
		values[en.DocID] = vals
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		for _, key := range keys {
			va, vb := values[a.DocID][key.Slot], values[b.DocID][key.Slot]
			if va == vb {
				continue
			}
			if key.Desc {
				return va > vb
			}
			return va < vb
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.DocID < b.DocID
	})
	return nil
}

func (e *Engine) eval(ctx context.Context, q *Query, total int) (evalResult, error) {
	if q == nil {
		return emptyResult(), nil
	}
	switch q.kind {
	case kindMatchNone:
		return emptyResult(), nil

	case kindMatchAll:
		bm, err := e.Store.AllDocIDs(ctx)
		if err != nil {
			return evalResult{}, err
		}
		return evalResult{bm: bm, weights: map[uint32]float64{}}, nil

	case kindTerm:
		return e.evalTerm(ctx, q.term, total)

	case kindWildcard:
		terms, err := e.Store.TermsWithPrefix(ctx, q.term)
		if err != nil {
			return evalResult{}, err
		}
		res := emptyResult()
		for _, term := range terms {
			sub, err := e.evalTerm(ctx, term, total)
			if err != nil {
				return evalResult{}, err
			}
			mergeOr(&res, sub)
		}
		return res, nil

	case kindValueRange:
		bm, err := e.Store.DocsInValueRange(ctx, q.slot, q.lo, q.hi)
		if err != nil {
			return evalResult{}, err
		}
		return evalResult{bm: bm, weights: map[uint32]float64{}}, nil

	case kindOr:
		res := emptyResult()
		for _, sub := range q.subs {
			sr, err := e.eval(ctx, sub, total)
			if err != nil {
				return evalResult{}, err
			}
			mergeOr(&res, sr)
		}
		return res, nil

	case kindAnd:
		var res evalResult
		for i, sub := range q.subs {
			sr, err := e.eval(ctx, sub, total)
			if err != nil {
				return evalResult{}, err
			}
			if i == 0 {
				res = sr
				continue
			}
			res.bm.And(sr.bm)
			for docid, w := range sr.weights {
				res.weights[docid] += w
			}
		}
		trimWeights(&res)
		return res, nil

	case kindAndNot:
		left, err := e.eval(ctx, q.subs[0], total)
		if err != nil {
			return evalResult{}, err
		}
		right, err := e.eval(ctx, q.subs[1], total)
		if err != nil {
			return evalResult{}, err
		}
		left.bm.AndNot(right.bm)
		trimWeights(&left)
		return left, nil

	case kindAndMaybe:
		left, err := e.eval(ctx, q.subs[0], total)
		if err != nil {
			return evalResult{}, err
		}
		right, err := e.eval(ctx, q.subs[1], total)
		if err != nil {
			return evalResult{}, err
		}
		for docid, w := range right.weights {
			if left.bm.Contains(docid) {
				left.weights[docid] += w
			}
		}
		return left, nil

	case kindScale:
		res, err := e.eval(ctx, q.subs[0], total)
		if err != nil {
			return evalResult{}, err
		}
		for docid, w := range res.weights {
			res.weights[docid] = w * q.factor
		}
		return res, nil

	case kindFilter:
		left, err := e.eval(ctx, q.subs[0], total)
		if err != nil {
			return evalResult{}, err
		}
		right, err := e.eval(ctx, q.subs[1], total)
		if err != nil {
			return evalResult{}, err
		}
		left.bm.And(right.bm)
		trimWeights(&left)
		return left, nil
	}
	return emptyResult(), nil
}

// evalTerm weights every posting of a term by its inverse document
// frequency: ln(1 + N/df).
func (e *Engine) evalTerm(ctx context.Context, term string, total int) (evalResult, error) {
	bm, err := e.Store.Postings(ctx, term)
	if err != nil {
		return evalResult{}, err
	}
	weights := make(map[uint32]float64, bm.GetCardinality())
	if df := bm.GetCardinality(); df > 0 {
		w := math.Log(1 + float64(total)/float64(df))
		it := bm.Iterator()
		for it.HasNext() {
			weights[it.Next()] = w
		}
	}
	return evalResult{bm: bm, weights: weights}, nil
}

func mergeOr(dst *evalResult, src evalResult) {
	dst.bm.Or(src.bm)
	for docid, w := range src.weights {
		dst.weights[docid] += w
	}
}

// trimWeights drops weight entries for documents no longer in the bitmap.
func trimWeights(res *evalResult) {
	for docid := range res.weights {
		if !res.bm.Contains(docid) {
			delete(res.weights, docid)
		}
	}
}
