package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/ngram"
	"github.com/teatak/pinyin/syllable"
)

// ErrModelLoad is matched by every LoadError.
var ErrModelLoad = errors.New("model load failed")

// LoadError reports malformed or inconsistent model tables.
type LoadError struct {
	Table string
	Line  int // 0 when the error is not tied to a line
	Err   error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s line %d: %v", e.Table, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrModelLoad
}

// Table names used in LoadError.
const (
	TableCharacters = "characters"
	TableSyllables  = "syllables"
	TableBigrams    = "bigrams"
	TableTrigrams   = "trigrams"
)

// Source provides the four logical tables of a model.
type Source interface {
	Characters(ctx context.Context) ([]lexicon.Character, error)
	Syllables(ctx context.Context) ([]syllable.Entry, error)
	Bigrams(ctx context.Context) ([]ngram.Bigram, error)
	// Trigrams may drop the rows of keys whose summed count is <= bound;
	// Load prunes them anyway.
	Trigrams(ctx context.Context, bound int) ([]ngram.Trigram, error)
}

// Model is the read-only aggregate the decoder runs against.
type Model struct {
	Lexicon   *lexicon.Lexicon
	Syllables *syllable.Index
	NGrams    *ngram.Store
}

// Stats summarizes a loaded model for logging.
type Stats struct {
	Characters  int
	Readings    int
	Occurrences int // non-sentinel character count
	ngram.Stats
}

func (s Stats) String() string {
	return fmt.Sprintf("%d characters (%d occurrences), %d readings, %d bigrams, %d trigrams (%d pruned)",
		s.Characters, s.Occurrences, s.Readings, s.Bigrams, s.Trigrams, s.PrunedTrigrams)
}

// Load reads every table from src and builds a validated Model. Any failure
// is returned as a *LoadError and no partial model is produced.
func Load(ctx context.Context, src Source, opts ngram.Options) (*Model, error) {
	chars, err := src.Characters(ctx)
	if err != nil {
		return nil, wrap(TableCharacters, err)
	}
	lex, err := lexicon.New(chars)
	if err != nil {
		return nil, wrap(TableCharacters, err)
	}

	entries, err := src.Syllables(ctx)
	if err != nil {
		return nil, wrap(TableSyllables, err)
	}
	idx, err := syllable.New(lex, entries)
	if err != nil {
		return nil, wrap(TableSyllables, err)
	}

	bigrams, err := src.Bigrams(ctx)
	if err != nil {
		return nil, wrap(TableBigrams, err)
	}
	trigrams, err := src.Trigrams(ctx, opts.OccurrenceBound)
	if err != nil {
		return nil, wrap(TableTrigrams, err)
	}
	grams, err := ngram.New(lex, bigrams, trigrams, opts)
	if err != nil {
		return nil, wrap(TableBigrams+"/"+TableTrigrams, err)
	}

	return &Model{Lexicon: lex, Syllables: idx, NGrams: grams}, nil
}

func wrap(table string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Table: table, Err: err}
}

// Stats returns table sizes of m.
func (m *Model) Stats() Stats {
	return Stats{
		Characters:  m.Lexicon.Len(),
		Readings:    m.Syllables.Len(),
		Occurrences: m.Lexicon.Total(),
		Stats:       m.NGrams.Stats(),
	}
}

// Tables dumps the loaded model. Trigrams pruned at load time are gone;
// bigrams are returned before TopK capping.
func (m *Model) Tables() *Tables {
	return &Tables{
		CharRows:     m.Lexicon.Characters(),
		SyllableRows: m.Syllables.Entries(),
		BigramRows:   m.NGrams.Bigrams(),
		TrigramRows:  m.NGrams.Trigrams(),
	}
}

// Tables is an in-memory Source. It is what the builder produces and what a
// snapshot holds.
type Tables struct {
	CharRows     []lexicon.Character
	SyllableRows []syllable.Entry
	BigramRows   []ngram.Bigram
	TrigramRows  []ngram.Trigram
}

func (t *Tables) Characters(context.Context) ([]lexicon.Character, error) {
	return t.CharRows, nil
}

func (t *Tables) Syllables(context.Context) ([]syllable.Entry, error) {
	return t.SyllableRows, nil
}

func (t *Tables) Bigrams(context.Context) ([]ngram.Bigram, error) {
	return t.BigramRows, nil
}

func (t *Tables) Trigrams(_ context.Context, bound int) ([]ngram.Trigram, error) {
	return pruneTrigrams(t.TrigramRows, bound), nil
}

// pruneTrigrams drops the rows of every key whose summed count is at or
// below bound. Keys with a negative row are kept so validation can reject
// them.
func pruneTrigrams(rows []ngram.Trigram, bound int) []ngram.Trigram {
	type total struct {
		sum      int
		negative bool
	}
	totals := make(map[[3]int]total, len(rows))
	for _, r := range rows {
		k := [3]int{r.Left, r.Mid, r.Right}
		t := totals[k]
		t.sum += r.Count
		t.negative = t.negative || r.Count < 0
		totals[k] = t
	}
	kept := make([]ngram.Trigram, 0, len(rows))
	for _, r := range rows {
		if t := totals[[3]int{r.Left, r.Mid, r.Right}]; t.negative || t.sum > bound {
			kept = append(kept, r)
		}
	}
	return kept
}

// ReadAll copies every table of src into memory without pruning.
func ReadAll(ctx context.Context, src Source) (*Tables, error) {
	var (
		t   Tables
		err error
	)
	if t.CharRows, err = src.Characters(ctx); err != nil {
		return nil, wrap(TableCharacters, err)
	}
	if t.SyllableRows, err = src.Syllables(ctx); err != nil {
		return nil, wrap(TableSyllables, err)
	}
	if t.BigramRows, err = src.Bigrams(ctx); err != nil {
		return nil, wrap(TableBigrams, err)
	}
	if t.TrigramRows, err = src.Trigrams(ctx, -1); err != nil {
		return nil, wrap(TableTrigrams, err)
	}
	return &t, nil
}
