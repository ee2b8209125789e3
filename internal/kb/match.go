package kb

import (
	"fmt"
	"math"
	"sort"
)

// MatchResult is either Found(EntryID, Score) or NotFound.
type MatchResult struct {
	Found   bool
	EntryID int
	Score   float64
}

// Found builds a positive result.
func Found(id int, score float64) MatchResult {
	return MatchResult{Found: true, EntryID: id, Score: score}
}

// NotFound builds the negative result.
func NotFound() MatchResult {
	return MatchResult{}
}

func (r MatchResult) String() string {
	if !r.Found {
		return "NotFound"
	}
	return fmt.Sprintf("Found(%d, %.4f)", r.EntryID, r.Score)
}

// Candidate is one scored entry.
type Candidate struct {
	EntryID int
	Score   float64
	// Overlap counts query token occurrences that appear in the entry.
	Overlap int
}

// Match returns the best entry for query, or NotFound when the query has no
// tokens, the knowledge base is empty, or the best score is below threshold.
// Ties go to the larger overlap, then to the smaller id.
func (k *KnowledgeBase) Match(query string, threshold float64) MatchResult {
	cands := k.score(query)
	if len(cands) == 0 {
		return NotFound()
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if ranksBefore(c, best) {
			best = c
		}
	}
	if best.Score < threshold {
		return NotFound()
	}
	return Found(best.EntryID, best.Score)
}

// Rank returns up to limit candidates ordered as Match would prefer them.
// Entries with no token in common with the query are left out. A limit of
// zero or less returns every overlapping entry.
func (k *KnowledgeBase) Rank(query string, limit int) []Candidate {
	cands := k.score(query)
	out := cands[:0]
	for _, c := range cands {
		if c.Overlap > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return ranksBefore(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func ranksBefore(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Overlap != b.Overlap {
		return a.Overlap > b.Overlap
	}
	return a.EntryID < b.EntryID
}

// score computes a candidate for every entry, in document order. It returns
// nil for an empty query or an empty knowledge base.
func (k *KnowledgeBase) score(query string) []Candidate {
	if len(k.entries) == 0 {
		return nil
	}
	tokens := k.opts.Normalizer.Normalize(query)
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[int]int, len(tokens))
	for _, tok := range tokens {
		// Unknown tokens have no index weight and cannot overlap any entry.
		if id, ok := k.vocab[tok]; ok {
			counts[id]++
		}
	}
	type queryTerm struct {
		term  int
		count int
	}
	q := make([]queryTerm, 0, len(counts))
	for id, c := range counts {
		q = append(q, queryTerm{term: id, count: c})
	}
	sort.Slice(q, func(i, j int) bool { return q[i].term < q[j].term })

	var qnorm float64
	for _, qt := range q {
		w := float64(qt.count) * k.idf[qt.term]
		qnorm += w * w
	}
	qnorm = math.Sqrt(qnorm)

	cands := make([]Candidate, len(k.entries))
	for i := range k.entries {
		e := &k.entries[i]
		var dot float64
		overlap := 0
		// Both vectors are sorted by term id.
		a, b := 0, 0
		for a < len(q) && b < len(e.vec) {
			switch {
			case q[a].term < e.vec[b].term:
				a++
			case q[a].term > e.vec[b].term:
				b++
			default:
				dot += float64(q[a].count) * k.idf[q[a].term] * e.vec[b].weight
				overlap += q[a].count
				a++
				b++
			}
		}
		var s float64
		if qnorm > 0 && e.norm > 0 {
			s = math.Min(1, dot/(qnorm*e.norm))
		}
		cands[i] = Candidate{EntryID: e.ID, Score: s, Overlap: overlap}
	}
	return cands
}
