// Package builder aggregates character, bigram and trigram counts from an
// annotated corpus into model tables.
package builder

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/ngram"
	"github.com/teatak/pinyin/syllable"
	"github.com/teatak/pinyin/util"
)

// DefaultLimit is the number of continuations kept per trigram context.
const DefaultLimit = 100

// Readings spelled both ways in common sources.
var aliases = map[string]string{
	"lve": "lue",
	"nve": "nue",
}

func normalizeReading(r string) string {
	r = syllable.Normalize(r)
	if a, ok := aliases[r]; ok {
		return a
	}
	return r
}

type pair struct {
	reading string
	glyph   string
}

// Table assigns ids to every (reading, glyph) pair of a pronunciation table.
// A glyph with several readings gets one id per reading.
type Table struct {
	chars   []lexicon.Character
	ids     map[pair]int
	entries []syllable.Entry
}

// ReadTable reads lines of the form "reading glyph glyph ...". Ids are
// assigned in file order; the start and stop sentinels take the last two.
func ReadTable(r io.Reader) (*Table, error) {
	t := &Table{ids: make(map[pair]int)}
	byReading := make(map[string]int)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("table line %d: reading without characters", line)
		}
		reading := normalizeReading(fields[0])
		ei, ok := byReading[reading]
		if !ok {
			ei = len(t.entries)
			byReading[reading] = ei
			t.entries = append(t.entries, syllable.Entry{Reading: reading})
		}
		for _, glyph := range fields[1:] {
			if glyph == lexicon.StartGlyph || glyph == lexicon.StopGlyph {
				return nil, fmt.Errorf("table line %d: reserved glyph %q", line, glyph)
			}
			key := pair{reading, glyph}
			if _, dup := t.ids[key]; dup {
				continue
			}
			id := len(t.chars) + 1
			t.ids[key] = id
			t.chars = append(t.chars, lexicon.Character{ID: id, Glyph: glyph})
			t.entries[ei].IDs = append(t.entries[ei].IDs, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(t.chars) == 0 {
		return nil, fmt.Errorf("table: no characters")
	}

	n := len(t.chars)
	t.chars = append(t.chars,
		lexicon.Character{ID: n + 1, Glyph: lexicon.StartGlyph},
		lexicon.Character{ID: n + 2, Glyph: lexicon.StopGlyph})
	return t, nil
}

// Len returns the number of ids including the two sentinels.
func (t *Table) Len() int {
	return len(t.chars)
}

// ID returns the id of glyph read as reading.
func (t *Table) ID(reading, glyph string) (int, bool) {
	id, ok := t.ids[pair{normalizeReading(reading), glyph}]
	return id, ok
}

func (t *Table) start() int { return len(t.chars) - 1 }
func (t *Table) stop() int { return len(t.chars) }

// Counter accumulates counts over sentences. Not safe for concurrent use.
type Counter struct {
	table     *Table
	unigrams  []int
	bigrams   map[[2]int]int
	trigrams  map[[3]int]int
	sentences int
	skipped   int
}

func NewCounter(t *Table) *Counter {
	return &Counter{
		table:    t,
		unigrams: make([]int, t.Len()+1),
		bigrams:  make(map[[2]int]int),
		trigrams: make(map[[3]int]int),
	}
}

// AddLine counts one corpus line of "glyph/reading" tokens. A token that is
// punctuation, unannotated or absent from the table ends the current
// sentence.
func (c *Counter) AddLine(line string) {
	var sentence []int
	for _, tok := range strings.Fields(line) {
		id, ok := c.resolve(tok)
		if !ok {
			c.addSentence(sentence)
			sentence = sentence[:0]
			continue
		}
		sentence = append(sentence, id)
	}
	c.addSentence(sentence)
}

func (c *Counter) resolve(tok string) (int, bool) {
	if util.IsPunctuation(tok) {
		return 0, false
	}
	i := strings.LastIndex(tok, "/")
	if i <= 0 || i == len(tok)-1 {
		c.skipped++
		return 0, false
	}
	id, ok := c.table.ID(tok[i+1:], tok[:i])
	if !ok {
		c.skipped++
	}
	return id, ok
}

// addSentence counts ids bracketed by two start and two stop sentinels.
func (c *Counter) addSentence(ids []int) {
	if len(ids) == 0 {
		return
	}
	start, stop := c.table.start(), c.table.stop()
	seq := make([]int, 0, len(ids)+4)
	seq = append(seq, start, start)
	seq = append(seq, ids...)
	seq = append(seq, stop, stop)

	for _, id := range ids {
		c.unigrams[id]++
	}
	c.unigrams[start]++
	c.unigrams[stop]++
	for i := 1; i < len(seq); i++ {
		c.bigrams[[2]int{seq[i-1], seq[i]}]++
	}
	for i := 2; i < len(seq); i++ {
		c.trigrams[[3]int{seq[i-2], seq[i-1], seq[i]}]++
	}
	c.sentences++
}

// AddReader counts every line of r.
func (c *Counter) AddReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		c.AddLine(scanner.Text())
	}
	return scanner.Err()
}

// Sentences returns the number of counted sentences.
func (c *Counter) Sentences() int {
	return c.sentences
}

// Skipped returns the number of tokens that could not be resolved. Plain
// punctuation is not counted.
func (c *Counter) Skipped() int {
	return c.skipped
}

// Tables returns the counted model. Each trigram context (left, mid) keeps
// its limit most frequent continuations; limit <= 0 keeps all.
func (c *Counter) Tables(limit int) *model.Tables {
	t := &model.Tables{
		CharRows:     make([]lexicon.Character, len(c.table.chars)),
		SyllableRows: make([]syllable.Entry, len(c.table.entries)),
	}
	for i, ch := range c.table.chars {
		ch.Count = c.unigrams[ch.ID]
		t.CharRows[i] = ch
	}
	for i, e := range c.table.entries {
		t.SyllableRows[i] = syllable.Entry{Reading: e.Reading, IDs: append([]int(nil), e.IDs...)}
	}

	for k, n := range c.bigrams {
		t.BigramRows = append(t.BigramRows, ngram.Bigram{Left: k[0], Right: k[1], Count: n})
	}
	sort.Slice(t.BigramRows, func(i, j int) bool {
		a, b := t.BigramRows[i], t.BigramRows[j]
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return a.Right < b.Right
	})

	for k, n := range c.trigrams {
		t.TrigramRows = append(t.TrigramRows, ngram.Trigram{Left: k[0], Mid: k[1], Right: k[2], Count: n})
	}
	// by context, then most frequent first
	sort.Slice(t.TrigramRows, func(i, j int) bool {
		a, b := t.TrigramRows[i], t.TrigramRows[j]
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		if a.Mid != b.Mid {
			return a.Mid < b.Mid
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Right < b.Right
	})
	if limit > 0 {
		kept := t.TrigramRows[:0]
		run := 0
		var prev [2]int
		for _, r := range t.TrigramRows {
			if ctx := [2]int{r.Left, r.Mid}; ctx != prev {
				prev, run = ctx, 0
			}
			if run < limit {
				kept = append(kept, r)
			}
			run++
		}
		t.TrigramRows = kept
	}
	return t
}
