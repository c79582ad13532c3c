package decoder

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/ngram"
)

// ErrNoViablePath is returned when every transition into some layer of the
// lattice scores zero.
var ErrNoViablePath = errors.New("no viable path")

// Weights are the interpolation weights of the unigram and bigram terms.
// The trigram term receives the remaining 1 - Unigram - Bigram.
type Weights struct {
	Unigram float64
	Bigram  float64
}

// Trigram returns the weight of the trigram term.
func (w Weights) Trigram() float64 {
	t := 1 - w.Unigram - w.Bigram
	if t < 0 {
		return 0
	}
	return t
}

// Validate checks that both weights are non-negative and sum to at most 1.
func (w Weights) Validate() error {
	if w.Unigram < 0 || w.Bigram < 0 {
		return fmt.Errorf("decoder: negative smoothing weight %+v", w)
	}
	if w.Unigram+w.Bigram > 1+1e-9 {
		return fmt.Errorf("decoder: smoothing weights %+v sum above 1", w)
	}
	return nil
}

// Decoder finds the most probable character sequence through a lattice of
// candidates under an interpolated trigram model. It holds no per-call state
// and is safe for concurrent use.
type Decoder struct {
	lex       *lexicon.Lexicon
	grams     *ngram.Store
	weights   Weights
	beamWidth int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithBeamWidth keeps at most k states per layer. Zero means exact search.
func WithBeamWidth(k int) Option {
	return func(d *Decoder) {
		d.beamWidth = k
	}
}

// New creates a decoder over a loaded lexicon and n-gram store.
func New(lex *lexicon.Lexicon, grams *ngram.Store, w Weights, opts ...Option) (*Decoder, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{lex: lex, grams: grams, weights: w}
	for _, opt := range opts {
		opt(d)
	}
	if d.beamWidth < 0 {
		return nil, fmt.Errorf("decoder: negative beam width %d", d.beamWidth)
	}
	return d, nil
}

// Weights returns the interpolation weights of d.
func (d *Decoder) Weights() Weights {
	return d.weights
}

// Score returns the smoothed probability of right following mid, which
// itself follows left.
func (d *Decoder) Score(right, left, mid int) float64 {
	p1 := d.lex.Likelihood(right)

	p2 := 0.0
	if total := d.grams.ContextTotal(mid); total > 0 {
		p2 = float64(d.grams.BigramCount(mid, right)) / float64(total)
	}

	p3 := 0.0
	if lm := d.grams.PairCount(left, mid); lm > 0 {
		p3 = float64(d.grams.TrigramCount(left, mid, right)) / float64(lm)
	}

	return d.weights.Unigram*p1 + d.weights.Bigram*p2 + d.weights.Trigram()*p3
}

// state is the pair of the two most recently committed characters.
type state struct {
	mid, left int
}

func (s state) less(o state) bool {
	if s.mid != o.mid {
		return s.mid < o.mid
	}
	return s.left < o.left
}

// cell is the best log score reaching a state and the left id of the
// predecessor state that achieved it.
type cell struct {
	score float64
	back  int
}

type layer struct {
	order []state // ascending, for deterministic expansion
	cells map[state]cell
}

func newLayer(n int) *layer {
	return &layer{cells: make(map[state]cell, n)}
}

// relax records score for ns unless a better predecessor is already
// known. Equal scores keep the lower predecessor left id.
func (l *layer) relax(ns state, score float64, back int) {
	best, ok := l.cells[ns]
	if !ok || score > best.score || (score == best.score && back < best.back) {
		l.cells[ns] = cell{score: score, back: back}
	}
}

func (l *layer) seal() {
	l.order = l.order[:0]
	for s := range l.cells {
		l.order = append(l.order, s)
	}
	sort.Slice(l.order, func(i, j int) bool { return l.order[i].less(l.order[j]) })
}

// Decode returns the best id sequence for the candidate sets, one set per
// input position. Sentinels are excluded from the result.
func (d *Decoder) Decode(candidates [][]int) ([]int, error) {
	if len(candidates) == 0 {
		return []int{}, nil
	}
	for i, set := range candidates {
		if len(set) == 0 {
			return nil, fmt.Errorf("decoder: empty candidate set at position %d", i)
		}
		for _, id := range set {
			if !d.lex.Contains(id) || d.lex.IsSentinel(id) {
				return nil, fmt.Errorf("decoder: invalid candidate %d at position %d", id, i)
			}
		}
	}

	start, stop := d.lex.Start(), d.lex.Stop()
	closing := []int{stop}

	first := newLayer(1)
	first.cells[state{mid: start, left: start}] = cell{score: 0, back: start}
	first.seal()

	lattice := make([]*layer, 0, len(candidates)+3)
	lattice = append(lattice, first)
	for i := 0; i < len(candidates)+2; i++ {
		set := closing
		if i < len(candidates) {
			set = candidates[i]
		}
		prev := lattice[len(lattice)-1]
		next := d.step(prev, set)
		if len(next.cells) == 0 {
			if i < len(candidates) {
				return nil, fmt.Errorf("%w: position %d", ErrNoViablePath, i)
			}
			// The model has no evidence for ending here. Every live path
			// closes with factor 1 so the ranking of the last layer stands.
			next = d.carry(prev, stop)
		}
		lattice = append(lattice, next)
	}

	return d.backtrace(lattice), nil
}

// step expands every live state of prev with every candidate.
func (d *Decoder) step(prev *layer, set []int) *layer {
	next := newLayer(len(set) * 4)
	for _, right := range set {
		for _, st := range prev.order {
			p := d.Score(right, st.left, st.mid)
			if p <= 0 {
				continue
			}
			next.relax(state{mid: right, left: st.mid}, prev.cells[st].score+math.Log(p), st.left)
		}
	}
	next.seal()
	d.prune(next)
	return next
}

// carry moves every live state of prev onto right without changing scores.
func (d *Decoder) carry(prev *layer, right int) *layer {
	next := newLayer(len(prev.order))
	for _, st := range prev.order {
		next.relax(state{mid: right, left: st.mid}, prev.cells[st].score, st.left)
	}
	next.seal()
	d.prune(next)
	return next
}

// prune keeps the beamWidth best states of l.
func (d *Decoder) prune(l *layer) {
	if d.beamWidth <= 0 || len(l.order) <= d.beamWidth {
		return
	}
	ranked := append([]state(nil), l.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return l.cells[ranked[i]].score > l.cells[ranked[j]].score
	})
	for _, s := range ranked[d.beamWidth:] {
		delete(l.cells, s)
	}
	l.seal()
}

// backtrace walks the back-pointers from the terminal (stop, stop) state.
func (d *Decoder) backtrace(lattice []*layer) []int {
	stop := d.lex.Stop()
	cur := state{mid: stop, left: stop}
	ids := make([]int, 0, len(lattice))
	for i := len(lattice) - 1; i > 0; i-- {
		ids = append(ids, cur.mid)
		c := lattice[i].cells[cur]
		cur = state{mid: cur.left, left: c.back}
	}

	// ids holds stop, stop, c_n, ..., c_1
	out := make([]int, 0, len(ids)-2)
	for i := len(ids) - 1; i >= 2; i-- {
		out = append(out, ids[i])
	}
	return out
}

// PathScore returns the log score of a fixed id sequence bracketed by the
// sentinels, or -Inf when any transition along it scores zero. Unlike
// Decode it never relaxes the closing transitions.
func (d *Decoder) PathScore(ids []int) float64 {
	start, stop := d.lex.Start(), d.lex.Stop()
	seq := make([]int, 0, len(ids)+4)
	seq = append(seq, start, start)
	seq = append(seq, ids...)
	seq = append(seq, stop, stop)

	total := 0.0
	for i := 2; i < len(seq); i++ {
		p := d.Score(seq[i], seq[i-2], seq[i-1])
		if p <= 0 {
			return math.Inf(-1)
		}
		total += math.Log(p)
	}
	return total
}
