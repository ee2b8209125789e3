package kb

import (
	"math"
	"sort"
	"time"

	"github.com/starford/askwiki/internal/docparse"
)

// FromSections indexes already parsed sections. Entry ids are 1-based
// positions in sections; sections without tokens are dropped and their ids
// are not reused.
//
// weight(t, e) = tf(t, e) * ln(N / df(t)), N counting only kept entries.
func FromSections(sections []docparse.Section, opts BuildOptions) *KnowledgeBase {
	opts = opts.withDefaults()
	nz := opts.Normalizer

	k := &KnowledgeBase{
		opts:    opts,
		builtAt: time.Now(),
		byID:    make(map[int]int, len(sections)),
		vocab:   make(map[string]int),
	}

	tfs := make([]map[string]int, 0, len(sections))
	df := make(map[string]int)
	for i, s := range sections {
		tokens := append(nz.Normalize(s.Title), nz.Normalize(s.Body)...)
		if len(tokens) == 0 {
			k.dropped++
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		tfs = append(tfs, tf)
		k.byID[i+1] = len(k.entries)
		k.entries = append(k.entries, Entry{
			ID:     i + 1,
			Title:  s.Title,
			Body:   s.Body,
			Tokens: tokens,
		})
	}

	terms := make([]string, 0, len(df))
	for tok := range df {
		terms = append(terms, tok)
	}
	sort.Strings(terms)

	n := float64(len(k.entries))
	k.idf = make([]float64, len(terms))
	k.df = make([]int, len(terms))
	for i, tok := range terms {
		k.vocab[tok] = i
		k.df[i] = df[tok]
		k.idf[i] = math.Log(n / float64(df[tok]))
	}

	for i := range k.entries {
		e := &k.entries[i]
		e.vec = make([]termWeight, 0, len(tfs[i]))
		e.TermWeights = make(map[string]float64, len(tfs[i]))
		for tok, c := range tfs[i] {
			id := k.vocab[tok]
			w := float64(c) * k.idf[id]
			e.vec = append(e.vec, termWeight{term: id, weight: w})
			e.TermWeights[tok] = w
		}
		sort.Slice(e.vec, func(a, b int) bool { return e.vec[a].term < e.vec[b].term })
		e.norm = vectorNorm(e.vec)
	}

	return k
}

// vectorNorm sums in term order so results do not depend on map iteration.
func vectorNorm(vec []termWeight) float64 {
	var sum float64
	for _, tw := range vec {
		sum += tw.weight * tw.weight
	}
	return math.Sqrt(sum)
}
