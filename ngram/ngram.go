package ngram

import (
	"fmt"
	"sort"

	"github.com/teatak/pinyin/lexicon"
)

// Bigram is one row of the bigram table.
type Bigram struct {
	Left, Right int
	Count       int
}

// Trigram is one row of the trigram table.
type Trigram struct {
	Left, Mid, Right int
	Count            int
}

// Options controls pruning at load time.
type Options struct {
	// OccurrenceBound drops every trigram whose count is at or below it.
	OccurrenceBound int
	// TopK keeps only the TopK most frequent continuations of each context.
	// Zero keeps everything.
	TopK int
}

// Stats summarizes a loaded store.
type Stats struct {
	Bigrams        int
	Trigrams       int
	PrunedBigrams  int
	PrunedTrigrams int
}

// Store holds bigram and trigram counts keyed by character ids.
type Store struct {
	bigrams  map[[2]int]int
	pairs    map[[2]int]int // bigrams before TopK capping
	trigrams map[[3]int]int
	context  []int // indexed by id
	stats    Stats
}

// New validates and prunes the raw tables. Rows repeating a key are summed.
func New(lex *lexicon.Lexicon, bigrams []Bigram, trigrams []Trigram, opts Options) (*Store, error) {
	if opts.OccurrenceBound < 0 || opts.TopK < 0 {
		return nil, fmt.Errorf("ngram: negative pruning option %+v", opts)
	}

	bi := make(map[[2]int]int, len(bigrams))
	for _, b := range bigrams {
		if !lex.Contains(b.Left) || !lex.Contains(b.Right) {
			return nil, fmt.Errorf("ngram: bigram (%d, %d) references unknown id", b.Left, b.Right)
		}
		if b.Count < 0 {
			return nil, fmt.Errorf("ngram: negative count %d for bigram (%d, %d)", b.Count, b.Left, b.Right)
		}
		bi[[2]int{b.Left, b.Right}] += b.Count
	}

	tri := make(map[[3]int]int, len(trigrams))
	for _, t := range trigrams {
		if !lex.Contains(t.Left) || !lex.Contains(t.Mid) || !lex.Contains(t.Right) {
			return nil, fmt.Errorf("ngram: trigram (%d, %d, %d) references unknown id", t.Left, t.Mid, t.Right)
		}
		if t.Count < 0 {
			return nil, fmt.Errorf("ngram: negative count %d for trigram (%d, %d, %d)", t.Count, t.Left, t.Mid, t.Right)
		}
		tri[[3]int{t.Left, t.Mid, t.Right}] += t.Count
	}

	s := &Store{
		bigrams:  make(map[[2]int]int, len(bi)),
		trigrams: make(map[[3]int]int, len(tri)),
		context:  make([]int, lex.Len()+1),
	}

	// Context totals see the full outgoing mass, before any capping.
	hasOut := make([]bool, lex.Len()+1)
	for k, c := range bi {
		if c == 0 {
			continue
		}
		s.context[k[0]] += c
		hasOut[k[0]] = true
	}
	for id := 1; id <= lex.Len(); id++ {
		if !hasOut[id] {
			s.context[id] = lex.Count(id)
		}
	}

	s.pairs = make(map[[2]int]int, len(bi))
	biGroups := make(map[int][]row)
	for k, c := range bi {
		if c == 0 {
			continue
		}
		s.pairs[k] = c
		if opts.TopK > 0 {
			biGroups[k[0]] = append(biGroups[k[0]], row{key: [3]int{k[0], 0, k[1]}, count: c})
		}
	}
	if opts.TopK == 0 {
		// nothing is capped; both lookups share one map
		s.bigrams = s.pairs
	}
	for _, group := range biGroups {
		kept := capGroup(group, opts.TopK)
		s.stats.PrunedBigrams += len(group) - len(kept)
		for _, r := range kept {
			s.bigrams[[2]int{r.key[0], r.key[2]}] = r.count
		}
	}

	triGroups := make(map[[2]int][]row)
	for k, c := range tri {
		if c <= opts.OccurrenceBound {
			s.stats.PrunedTrigrams++
			continue
		}
		ctx := [2]int{k[0], k[1]}
		triGroups[ctx] = append(triGroups[ctx], row{key: k, count: c})
	}
	for _, group := range triGroups {
		kept := capGroup(group, opts.TopK)
		s.stats.PrunedTrigrams += len(group) - len(kept)
		for _, r := range kept {
			s.trigrams[r.key] = r.count
		}
	}

	s.stats.Bigrams = len(s.bigrams)
	s.stats.Trigrams = len(s.trigrams)
	return s, nil
}

type row struct {
	key   [3]int
	count int
}

// capGroup keeps the k most frequent rows of one context, lower right id
// first on ties.
func capGroup(group []row, k int) []row {
	if k <= 0 || len(group) <= k {
		return group
	}
	sort.Slice(group, func(i, j int) bool {
		if group[i].count != group[j].count {
			return group[i].count > group[j].count
		}
		return group[i].key[2] < group[j].key[2]
	})
	return group[:k]
}

// BigramCount returns count(left, right), 0 if absent.
func (s *Store) BigramCount(left, right int) int {
	return s.bigrams[[2]int{left, right}]
}

// PairCount returns count(left, right) before TopK capping. It normalizes
// trigram probabilities, so a kept trigram stays reachable even when its
// leading bigram was capped.
func (s *Store) PairCount(left, right int) int {
	return s.pairs[[2]int{left, right}]
}

// TrigramCount returns count(left, mid, right), 0 if absent or pruned.
func (s *Store) TrigramCount(left, mid, right int) int {
	return s.trigrams[[3]int{left, mid, right}]
}

// ContextTotal is the denominator of bigram probabilities conditioned on id:
// the sum of its outgoing bigram counts, or its raw count when it has none.
func (s *Store) ContextTotal(id int) int {
	if id < 0 || id >= len(s.context) {
		return 0
	}
	return s.context[id]
}

// Stats returns the table sizes after pruning.
func (s *Store) Stats() Stats {
	return s.stats
}

// Bigrams returns the non-zero bigram rows before TopK capping, ordered by
// key. Loading them again with the same options rebuilds the same store.
func (s *Store) Bigrams() []Bigram {
	rows := make([]Bigram, 0, len(s.pairs))
	for k, c := range s.pairs {
		rows = append(rows, Bigram{Left: k[0], Right: k[1], Count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Left != rows[j].Left {
			return rows[i].Left < rows[j].Left
		}
		return rows[i].Right < rows[j].Right
	})
	return rows
}

// Trigrams returns the retained trigram rows ordered by key.
func (s *Store) Trigrams() []Trigram {
	rows := make([]Trigram, 0, len(s.trigrams))
	for k, c := range s.trigrams {
		rows = append(rows, Trigram{Left: k[0], Mid: k[1], Right: k[2], Count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		if a.Mid != b.Mid {
			return a.Mid < b.Mid
		}
		return a.Right < b.Right
	})
	return rows
}
