package decoder

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/ngram"
)

func newDecoder(t *testing.T, chars []lexicon.Character, bigrams []ngram.Bigram, trigrams []ngram.Trigram, w Weights, opts ...Option) *Decoder {
	t.Helper()
	lex, err := lexicon.New(chars)
	if err != nil {
		t.Fatal(err)
	}
	grams, err := ngram.New(lex, bigrams, trigrams, ngram.Options{OccurrenceBound: 5})
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(lex, grams, w, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// toy: A=1, B=2, ^=3, $=4; only A->B is observed besides the sentence end.
func toyDecoder(t *testing.T, opts ...Option) *Decoder {
	return newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "A", Count: 10},
			{ID: 2, Glyph: "B", Count: 10},
			{ID: 3, Glyph: lexicon.StartGlyph},
			{ID: 4, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{{Left: 1, Right: 2, Count: 10}, {Left: 2, Right: 4, Count: 10}, {Left: 4, Right: 4, Count: 10}},
		nil,
		Weights{Unigram: 0.1, Bigram: 0.2},
		opts...)
}

func TestDecode_Toy(t *testing.T) {
	d := toyDecoder(t)
	got, err := d.Decode([][]int{{1}, {2}})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Decode() = %v, want [1 2]", got)
	}
}

func TestDecode_Empty(t *testing.T) {
	d := toyDecoder(t)
	got, err := d.Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Decode(nil) = %#v, want empty slice", got)
	}
}

func TestDecode_Ambiguous(t *testing.T) {
	// 你=1 泥=2 好=3 ^=4 $=5; 泥 is more frequent but 你好 is the observed pair.
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "你", Count: 10},
			{ID: 2, Glyph: "泥", Count: 30},
			{ID: 3, Glyph: "好", Count: 40},
			{ID: 4, Glyph: lexicon.StartGlyph},
			{ID: 5, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{
			{Left: 4, Right: 1, Count: 8},
			{Left: 4, Right: 2, Count: 1},
			{Left: 1, Right: 3, Count: 9},
			{Left: 3, Right: 5, Count: 20},
			{Left: 5, Right: 5, Count: 20},
		},
		nil,
		Weights{Unigram: 0.1, Bigram: 0.6})

	got, err := d.Decode([][]int{{1, 2}, {3}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Decode() = %v, want [1 3]", got)
	}
}

// trigramModel: a=1 b=2 c1=3 c2=4 ^=5 $=6. c1 is frequent, c2 follows "a b"
// in the trigram table.
func trigramModel(t *testing.T, w Weights) *Decoder {
	return newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "a", Count: 10},
			{ID: 2, Glyph: "b", Count: 10},
			{ID: 3, Glyph: "c", Count: 100},
			{ID: 4, Glyph: "C", Count: 1},
			{ID: 5, Glyph: lexicon.StartGlyph},
			{ID: 6, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{
			{Left: 5, Right: 1, Count: 10},
			{Left: 1, Right: 2, Count: 10},
			{Left: 2, Right: 3, Count: 5},
			{Left: 2, Right: 4, Count: 5},
			{Left: 3, Right: 6, Count: 10},
			{Left: 4, Right: 6, Count: 10},
			{Left: 6, Right: 6, Count: 20},
		},
		[]ngram.Trigram{{Left: 1, Mid: 2, Right: 4, Count: 8}},
		w)
}

func TestDecode_TrigramEvidence(t *testing.T) {
	input := [][]int{{1}, {2}, {3, 4}}
	tests := []struct {
		w    Weights
		want []int
	}{
		{Weights{Unigram: 0.8, Bigram: 0.2}, []int{1, 2, 3}},
		{Weights{Unigram: 0.1, Bigram: 0.2}, []int{1, 2, 4}},
	}
	for _, tt := range tests {
		got, err := trigramModel(t, tt.w).Decode(input)
		if err != nil {
			t.Errorf("Decode(%+v) error = %v", tt.w, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Decode(%+v) = %v, want %v", tt.w, got, tt.want)
		}
	}
}

func TestPathScore_MonotonicInTrigramWeight(t *testing.T) {
	favored := []int{1, 2, 4}  // trigram evidence
	frequent := []int{1, 2, 3} // unigram evidence

	last := math.Inf(-1)
	for _, unigram := range []float64{0.8, 0.6, 0.4, 0.2, 0.1, 0} {
		d := trigramModel(t, Weights{Unigram: unigram, Bigram: 0.2})
		margin := d.PathScore(favored) - d.PathScore(frequent)
		if margin < last {
			t.Errorf("trigram weight %.1f: margin %v dropped below %v", d.Weights().Trigram(), margin, last)
		}
		last = margin
	}
}

func TestPathScore(t *testing.T) {
	d := toyDecoder(t)
	want := math.Log(0.05) + math.Log(0.25) + math.Log(0.2) + math.Log(0.2)
	if got := d.PathScore([]int{1, 2}); math.Abs(got-want) > 1e-12 {
		t.Errorf("PathScore([1 2]) = %v, want %v", got, want)
	}
	// B never reaches A and A never reaches the end
	if got := d.PathScore([]int{2, 1}); !math.IsInf(got, -1) {
		t.Errorf("PathScore([2 1]) = %v, want -Inf", got)
	}
}

func TestScore(t *testing.T) {
	d := toyDecoder(t)
	tests := []struct {
		right, left, mid int
		want             float64
	}{
		{1, 3, 3, 0.05},
		{2, 3, 1, 0.25},
		{4, 1, 2, 0.2},
		{1, 1, 2, 0.05},
	}
	for _, tt := range tests {
		if got := d.Score(tt.right, tt.left, tt.mid); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Score(%d | %d, %d) = %v, want %v", tt.right, tt.left, tt.mid, got, tt.want)
		}
	}
}

func TestDecode_NoViablePath(t *testing.T) {
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "x", Count: 0},
			{ID: 2, Glyph: "y", Count: 5},
			{ID: 3, Glyph: lexicon.StartGlyph},
			{ID: 4, Glyph: lexicon.StopGlyph},
		},
		nil, nil,
		Weights{Unigram: 0.3, Bigram: 0.3})

	// x is never observed, so no layer holding only x survives
	for _, in := range [][][]int{{{1}}, {{2}, {1}}, {{2}, {2}, {1}, {2}}} {
		if _, err := d.Decode(in); !errors.Is(err, ErrNoViablePath) {
			t.Errorf("Decode(%v) error = %v, want ErrNoViablePath", in, err)
		}
	}
}

func TestDecode_ClosingWithoutEvidence(t *testing.T) {
	// nothing ever ends a sentence: A=1, B=2, ^=3, $=4 and only A->B
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "A", Count: 10},
			{ID: 2, Glyph: "B", Count: 10},
			{ID: 3, Glyph: lexicon.StartGlyph, Count: 1},
			{ID: 4, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{{Left: 1, Right: 2, Count: 10}},
		nil,
		Weights{Unigram: 0.1, Bigram: 0.2})

	tests := []struct {
		in   [][]int
		want []int
	}{
		{[][]int{{1}, {2}}, []int{1, 2}},
		{[][]int{{2}}, []int{2}},
		{[][]int{{1, 2}, {1, 2}}, []int{1, 2}},
	}
	for _, tt := range tests {
		got, err := d.Decode(tt.in)
		if err != nil {
			t.Errorf("Decode(%v) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Decode(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := d.PathScore([]int{1, 2}); !math.IsInf(got, -1) {
		t.Errorf("PathScore([1 2]) = %v, want -Inf", got)
	}
}

func TestDecode_ClosingPrefersEvidence(t *testing.T) {
	// A is more frequent but only B is ever seen ending a sentence
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "A", Count: 90},
			{ID: 2, Glyph: "B", Count: 10},
			{ID: 3, Glyph: lexicon.StartGlyph},
			{ID: 4, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{{Left: 2, Right: 4, Count: 10}, {Left: 4, Right: 4, Count: 10}},
		nil,
		Weights{Unigram: 0.5, Bigram: 0.5})

	got, err := d.Decode([][]int{{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("Decode([[1 2]]) = %v, want [2]", got)
	}
}

func TestScore_CappedPair(t *testing.T) {
	lex, err := lexicon.New([]lexicon.Character{
		{ID: 1, Glyph: "a", Count: 10},
		{ID: 2, Glyph: "b", Count: 10},
		{ID: 3, Glyph: "c", Count: 10},
		{ID: 4, Glyph: lexicon.StartGlyph},
		{ID: 5, Glyph: lexicon.StopGlyph},
	})
	if err != nil {
		t.Fatal(err)
	}
	// TopK 1 caps (1, 3) but keeps the trigram (1, 3, 2)
	grams, err := ngram.New(lex,
		[]ngram.Bigram{{Left: 1, Right: 2, Count: 10}, {Left: 1, Right: 3, Count: 8}},
		[]ngram.Trigram{{Left: 1, Mid: 3, Right: 2, Count: 8}},
		ngram.Options{OccurrenceBound: 5, TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(lex, grams, Weights{})
	if err != nil {
		t.Fatal(err)
	}
	if grams.BigramCount(1, 3) != 0 {
		t.Fatalf("BigramCount(1, 3) = %d, want it capped", grams.BigramCount(1, 3))
	}
	if got := d.Score(2, 1, 3); math.Abs(got-1) > 1e-12 {
		t.Errorf("Score(2 | 1, 3) = %v, want 1", got)
	}
}

func TestDecode_InvalidCandidates(t *testing.T) {
	d := toyDecoder(t)
	for _, in := range [][][]int{{{}}, {{1}, {3}}, {{9}}} {
		_, err := d.Decode(in)
		if err == nil || errors.Is(err, ErrNoViablePath) {
			t.Errorf("Decode(%v) error = %v, want validation error", in, err)
		}
	}
}

func TestDecode_TieBreak(t *testing.T) {
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "x", Count: 10},
			{ID: 2, Glyph: "y", Count: 10},
			{ID: 3, Glyph: lexicon.StartGlyph},
			{ID: 4, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{
			{Left: 3, Right: 1, Count: 5},
			{Left: 3, Right: 2, Count: 5},
			{Left: 1, Right: 4, Count: 5},
			{Left: 2, Right: 4, Count: 5},
			{Left: 4, Right: 4, Count: 10},
		},
		nil,
		Weights{Unigram: 0.2, Bigram: 0.5})

	first, err := d.Decode([][]int{{2, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, []int{1}) {
		t.Errorf("Decode() = %v, want lowest id [1]", first)
	}
	for i := 0; i < 10; i++ {
		again, _ := d.Decode([][]int{{2, 1}})
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("Decode() run %d = %v, want %v", i, again, first)
		}
	}
}

func TestDecode_LongInput(t *testing.T) {
	d := newDecoder(t,
		[]lexicon.Character{
			{ID: 1, Glyph: "a", Count: 10},
			{ID: 2, Glyph: lexicon.StartGlyph},
			{ID: 3, Glyph: lexicon.StopGlyph},
		},
		[]ngram.Bigram{
			{Left: 2, Right: 1, Count: 1},
			{Left: 1, Right: 1, Count: 9},
			{Left: 1, Right: 3, Count: 1},
			{Left: 3, Right: 3, Count: 1},
		},
		nil,
		Weights{Unigram: 0, Bigram: 0.05})

	input := make([][]int, 500)
	for i := range input {
		input[i] = []int{1}
	}
	got, err := d.Decode(input)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != len(input) {
		t.Errorf("len(Decode()) = %d, want %d", len(got), len(input))
	}
}

func TestDecode_BeamWidth(t *testing.T) {
	d := trigramModel(t, Weights{Unigram: 0.1, Bigram: 0.2})
	narrow, err := New(d.lex, d.grams, d.weights, WithBeamWidth(1))
	if err != nil {
		t.Fatal(err)
	}
	got, err := narrow.Decode([][]int{{1}, {2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{1, 2, 4}) {
		t.Errorf("Decode() = %v, want [1 2 4]", got)
	}

	if _, err := New(d.lex, d.grams, d.weights, WithBeamWidth(-1)); err == nil {
		t.Errorf("New(beam -1) error = nil, want error")
	}
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		w   Weights
		ok  bool
		tri float64
	}{
		{Weights{0.1, 0.2}, true, 0.7},
		{Weights{0.5, 0.5}, true, 0},
		{Weights{0, 0}, true, 1},
		{Weights{-0.1, 0.2}, false, 0},
		{Weights{0.7, 0.4}, false, 0},
	}
	for _, tt := range tests {
		err := tt.w.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%+v) error = %v, want ok=%v", tt.w, err, tt.ok)
		}
		if tt.ok && math.Abs(tt.w.Trigram()-tt.tri) > 1e-12 {
			t.Errorf("Trigram(%+v) = %v, want %v", tt.w, tt.w.Trigram(), tt.tri)
		}
	}
}

func TestDecode_Concurrent(t *testing.T) {
	d := trigramModel(t, Weights{Unigram: 0.1, Bigram: 0.2})
	want, _ := d.Decode([][]int{{1}, {2}, {3, 4}})

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Decode([][]int{{1}, {2}, {3, 4}})
			if err != nil || !reflect.DeepEqual(got, want) {
				errs <- "mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
