package predictor

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/teatak/pinyin/config"
	"github.com/teatak/pinyin/decoder"
	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/pgstore"
)

// Predictor converts lines of pinyin into characters. It is stateless and
// safe for concurrent use.
type Predictor struct {
	Model   *model.Model
	decoder *decoder.Decoder
}

// New creates a predictor over a loaded model.
func New(m *model.Model, w decoder.Weights, cfg config.Decoder) (*Predictor, error) {
	dec, err := decoder.New(m.Lexicon, m.NGrams, w, decoder.WithBeamWidth(cfg.BeamWidth))
	if err != nil {
		return nil, err
	}
	return &Predictor{Model: m, decoder: dec}, nil
}

// Open loads the model named by cfg and creates a predictor over it.
func Open(ctx context.Context, cfg *config.Config) (*Predictor, error) {
	m, err := LoadModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(m, cfg.Weights(), cfg.Decoder)
}

// LoadModel reads the model from Postgres, a snapshot or a text directory,
// in that order of preference.
func LoadModel(ctx context.Context, cfg *config.Config) (*model.Model, error) {
	var src model.Source
	switch {
	case cfg.Model.Postgres != "":
		store, err := pgstore.Open(ctx, cfg.Model.Postgres)
		if err != nil {
			return nil, &model.LoadError{Table: "postgres", Err: err}
		}
		defer store.Close()
		src = store
	case cfg.Model.Snapshot != "":
		tables, err := model.OpenSnapshot(cfg.Model.Snapshot)
		if err != nil {
			return nil, err
		}
		src = tables
	default:
		src = model.Dir(cfg.Model.Dir)
	}
	return model.Load(ctx, src, cfg.NGram())
}

// Tokenize splits a line into syllable tokens.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// PredictIDs returns the character ids of the best path for line, one per
// token.
func (p *Predictor) PredictIDs(line string) ([]int, error) {
	tokens := Tokenize(line)
	candidates := make([][]int, len(tokens))
	for i, tok := range tokens {
		ids, err := p.Model.Syllables.Candidates(tok)
		if err != nil {
			return nil, err
		}
		candidates[i] = ids
	}
	return p.decoder.Decode(candidates)
}

// Predict returns the most probable character string for line.
func (p *Predictor) Predict(line string) (string, error) {
	ids, err := p.PredictIDs(line)
	if err != nil {
		return "", err
	}
	return p.Model.Lexicon.Text(ids), nil
}

// Glyphs returns the glyph of each id.
func (p *Predictor) Glyphs(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = p.Model.Lexicon.Glyph(id)
	}
	return out
}

// Result is the outcome of one line in PredictAll.
type Result struct {
	Line string
	Text string
	Err  error
}

// PredictAll predicts every line on all CPUs. Results keep the input order;
// a failing line does not stop the others.
func (p *Predictor) PredictAll(lines []string) []Result {
	results := make([]Result, len(lines))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				text, err := p.Predict(lines[i])
				if err != nil {
					err = fmt.Errorf("line %d: %w", i+1, err)
				}
				results[i] = Result{Line: lines[i], Text: text, Err: err}
			}
		}()
	}
	for i := range lines {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
