package syllable

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/teatak/pinyin/lexicon"
)

// ErrUnknownSyllable is matched by every UnknownSyllableError.
var ErrUnknownSyllable = errors.New("unknown syllable")

// UnknownSyllableError reports an input token with no registered reading.
type UnknownSyllableError struct {
	Token string
}

func (e *UnknownSyllableError) Error() string {
	return fmt.Sprintf("unknown syllable %q", e.Token)
}

func (e *UnknownSyllableError) Is(target error) bool {
	return target == ErrUnknownSyllable
}

// Entry maps one reading to the characters pronounced that way.
type Entry struct {
	Reading string
	IDs     []int
}

// Index resolves syllable tokens to candidate character ids.
type Index struct {
	table map[string][]int
}

// Normalize maps a token to its lookup key: NFKC (full-width latin becomes
// ASCII) followed by case folding.
func Normalize(token string) string {
	// a Caser is stateful and cannot be shared between goroutines
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(token)))
}

// New builds the index. Entries sharing a reading are merged in order and
// repeated ids are dropped.
func New(lex *lexicon.Lexicon, entries []Entry) (*Index, error) {
	idx := &Index{table: make(map[string][]int, len(entries))}
	seen := make(map[string]map[int]bool, len(entries))
	for _, e := range entries {
		key := Normalize(e.Reading)
		if key == "" {
			return nil, fmt.Errorf("syllable: empty reading")
		}
		if seen[key] == nil {
			seen[key] = make(map[int]bool)
		}
		for _, id := range e.IDs {
			if !lex.Contains(id) {
				return nil, fmt.Errorf("syllable: reading %q references unknown id %d", e.Reading, id)
			}
			if lex.IsSentinel(id) {
				return nil, fmt.Errorf("syllable: reading %q references sentinel id %d", e.Reading, id)
			}
			if seen[key][id] {
				continue
			}
			seen[key][id] = true
			idx.table[key] = append(idx.table[key], id)
		}
	}
	return idx, nil
}

// Candidates returns the ids readable as token. The returned slice is
// shared and must not be modified.
func (idx *Index) Candidates(token string) ([]int, error) {
	ids := idx.table[Normalize(token)]
	if len(ids) == 0 {
		return nil, &UnknownSyllableError{Token: token}
	}
	return ids, nil
}

// Len returns the number of readings.
func (idx *Index) Len() int {
	return len(idx.table)
}

// Readings returns the registered readings in sorted order.
func (idx *Index) Readings() []string {
	readings := make([]string, 0, len(idx.table))
	for r := range idx.table {
		readings = append(readings, r)
	}
	sort.Strings(readings)
	return readings
}

// Entries returns the index content ordered by reading.
func (idx *Index) Entries() []Entry {
	entries := make([]Entry, 0, len(idx.table))
	for _, r := range idx.Readings() {
		entries = append(entries, Entry{Reading: r, IDs: append([]int(nil), idx.table[r]...)})
	}
	return entries
}
