package model

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/ngram"
	"github.com/teatak/pinyin/syllable"
)

// File names of a model directory.
const (
	CharsFile     = "chars.txt"
	SyllablesFile = "syllables.txt"
	BigramsFile   = "bigrams.txt"
	TrigramsFile  = "trigrams.txt"
)

// Dir is a Source reading whitespace separated text tables from a directory:
//
//	chars.txt      id glyph count
//	syllables.txt  reading id id ...
//	bigrams.txt    left right count
//	trigrams.txt   left mid right count
//
// Blank lines and lines starting with # are ignored.
type Dir string

func (d Dir) Characters(context.Context) ([]lexicon.Character, error) {
	var chars []lexicon.Character
	err := d.scan(CharsFile, TableCharacters, 3, func(f []string) error {
		id, err := strconv.Atoi(f[0])
		if err != nil {
			return err
		}
		count, err := parseCount(f[2])
		if err != nil {
			return err
		}
		chars = append(chars, lexicon.Character{ID: id, Glyph: f[1], Count: count})
		return nil
	})
	return chars, err
}

func (d Dir) Syllables(context.Context) ([]syllable.Entry, error) {
	var entries []syllable.Entry
	err := d.scan(SyllablesFile, TableSyllables, 2, func(f []string) error {
		ids, err := atois(f[1:])
		if err != nil {
			return err
		}
		entries = append(entries, syllable.Entry{Reading: f[0], IDs: ids})
		return nil
	})
	return entries, err
}

func (d Dir) Bigrams(context.Context) ([]ngram.Bigram, error) {
	var rows []ngram.Bigram
	err := d.scan(BigramsFile, TableBigrams, 3, func(f []string) error {
		v, err := atois(f[:2])
		if err != nil {
			return err
		}
		count, err := parseCount(f[2])
		if err != nil {
			return err
		}
		rows = append(rows, ngram.Bigram{Left: v[0], Right: v[1], Count: count})
		return nil
	})
	return rows, err
}

func (d Dir) Trigrams(_ context.Context, bound int) ([]ngram.Trigram, error) {
	var rows []ngram.Trigram
	err := d.scan(TrigramsFile, TableTrigrams, 4, func(f []string) error {
		v, err := atois(f[:3])
		if err != nil {
			return err
		}
		count, err := parseCount(f[3])
		if err != nil {
			return err
		}
		rows = append(rows, ngram.Trigram{Left: v[0], Mid: v[1], Right: v[2], Count: count})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pruneTrigrams(rows, bound), nil
}

// scan feeds every content line of one table file to fn. Lines with fewer
// than minFields fields are malformed.
func (d Dir) scan(name, table string, minFields int, fn func([]string) error) error {
	file, err := os.Open(filepath.Join(string(d), name))
	if err != nil {
		return &LoadError{Table: table, Err: err}
	}
	defer file.Close()
	return scanTable(file, table, minFields, fn)
}

func scanTable(r io.Reader, table string, minFields int, fn func([]string) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < minFields {
			return &LoadError{Table: table, Line: line, Err: fmt.Errorf("want at least %d fields, got %d", minFields, len(fields))}
		}
		if err := fn(fields); err != nil {
			return &LoadError{Table: table, Line: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return &LoadError{Table: table, Err: err}
	}
	return nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func atois(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// WriteDir writes t as a text model directory readable by Dir.
func WriteDir(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(w *bufio.Writer)
	}{
		{CharsFile, func(w *bufio.Writer) {
			for _, c := range t.CharRows {
				fmt.Fprintf(w, "%d %s %d\n", c.ID, c.Glyph, c.Count)
			}
		}},
		{SyllablesFile, func(w *bufio.Writer) {
			for _, e := range t.SyllableRows {
				w.WriteString(e.Reading)
				for _, id := range e.IDs {
					fmt.Fprintf(w, " %d", id)
				}
				w.WriteByte('\n')
			}
		}},
		{BigramsFile, func(w *bufio.Writer) {
			for _, b := range t.BigramRows {
				fmt.Fprintf(w, "%d %d %d\n", b.Left, b.Right, b.Count)
			}
		}},
		{TrigramsFile, func(w *bufio.Writer) {
			for _, r := range t.TrigramRows {
				fmt.Fprintf(w, "%d %d %d %d\n", r.Left, r.Mid, r.Right, r.Count)
			}
		}},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(w *bufio.Writer)) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	fn(writer)
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}
