package lexicon

import (
	"fmt"
	"strings"
)

// Sentinel glyphs. They occupy the two highest ids of every lexicon.
const (
	StartGlyph = "^"
	StopGlyph  = "$"
)

// Character is one output character. The same glyph may appear under
// several ids, one per reading.
type Character struct {
	ID    int
	Glyph string
	Count int
}

// Lexicon holds the universe of output characters and their raw counts.
type Lexicon struct {
	glyphs []string // indexed by id, slot 0 unused
	counts []int
	total  int // sum of non-sentinel counts
}

// New builds a lexicon from the character table. Ids must be dense in 1..N
// and the two highest ids must be the start and stop sentinels.
func New(chars []Character) (*Lexicon, error) {
	n := len(chars)
	if n < 2 {
		return nil, fmt.Errorf("lexicon: need at least the two sentinels, got %d characters", n)
	}

	l := &Lexicon{
		glyphs: make([]string, n+1),
		counts: make([]int, n+1),
	}
	seen := make([]bool, n+1)
	for _, c := range chars {
		if c.ID < 1 || c.ID > n {
			return nil, fmt.Errorf("lexicon: id %d out of range 1..%d", c.ID, n)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("lexicon: duplicate id %d", c.ID)
		}
		if c.Count < 0 {
			return nil, fmt.Errorf("lexicon: negative count %d for id %d", c.Count, c.ID)
		}
		if c.Glyph == "" {
			return nil, fmt.Errorf("lexicon: empty glyph for id %d", c.ID)
		}
		seen[c.ID] = true
		l.glyphs[c.ID] = c.Glyph
		l.counts[c.ID] = c.Count
	}

	if l.glyphs[n-1] != StartGlyph || l.glyphs[n] != StopGlyph {
		return nil, fmt.Errorf("lexicon: ids %d and %d must be %q and %q, got %q and %q",
			n-1, n, StartGlyph, StopGlyph, l.glyphs[n-1], l.glyphs[n])
	}
	for id := 1; id <= n-2; id++ {
		l.total += l.counts[id]
	}
	return l, nil
}

// Len returns the number of characters including the sentinels.
func (l *Lexicon) Len() int {
	return len(l.glyphs) - 1
}

// Start returns the id of the start sentinel.
func (l *Lexicon) Start() int {
	return l.Len() - 1
}

// Stop returns the id of the stop sentinel.
func (l *Lexicon) Stop() int {
	return l.Len()
}

// Contains reports whether id names a character of this lexicon.
func (l *Lexicon) Contains(id int) bool {
	return id >= 1 && id <= l.Len()
}

// IsSentinel reports whether id is the start or stop sentinel.
func (l *Lexicon) IsSentinel(id int) bool {
	return id == l.Start() || id == l.Stop()
}

// Glyph returns the glyph of id, or "" for an unknown id.
func (l *Lexicon) Glyph(id int) string {
	if !l.Contains(id) {
		return ""
	}
	return l.glyphs[id]
}

// Count returns the raw corpus count of id.
func (l *Lexicon) Count(id int) int {
	if !l.Contains(id) {
		return 0
	}
	return l.counts[id]
}

// Total returns the sum of all non-sentinel counts.
func (l *Lexicon) Total() int {
	return l.total
}

// Likelihood returns count(id) divided by the total count of all
// non-sentinel characters.
func (l *Lexicon) Likelihood(id int) float64 {
	if l.total <= 0 {
		return 0
	}
	p := float64(l.Count(id)) / float64(l.total)
	if p > 1 {
		// sentinels may carry more mass than the characters they bracket
		return 1
	}
	return p
}

// Text joins the glyphs of ids, skipping the sentinels.
func (l *Lexicon) Text(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if l.IsSentinel(id) {
			continue
		}
		sb.WriteString(l.Glyph(id))
	}
	return sb.String()
}

// Characters returns the character table ordered by id.
func (l *Lexicon) Characters() []Character {
	chars := make([]Character, 0, l.Len())
	for id := 1; id <= l.Len(); id++ {
		chars = append(chars, Character{ID: id, Glyph: l.glyphs[id], Count: l.counts[id]})
	}
	return chars
}
