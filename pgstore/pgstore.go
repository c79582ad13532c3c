// Package pgstore reads and writes the model tables in PostgreSQL.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teatak/pinyin/lexicon"
	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/ngram"
	"github.com/teatak/pinyin/syllable"
)

const schema = `
CREATE TABLE IF NOT EXISTS char_set (
	id    integer PRIMARY KEY,
	glyph text    NOT NULL,
	count bigint  NOT NULL
);
CREATE TABLE IF NOT EXISTS syllable (
	reading text    NOT NULL,
	char_id integer NOT NULL,
	ord     integer NOT NULL,
	PRIMARY KEY (reading, char_id)
);
CREATE TABLE IF NOT EXISTS relation2 (
	left_id  integer NOT NULL,
	right_id integer NOT NULL,
	count    bigint  NOT NULL,
	PRIMARY KEY (left_id, right_id)
);
CREATE TABLE IF NOT EXISTS relation3 (
	left_id  integer NOT NULL,
	mid_id   integer NOT NULL,
	right_id integer NOT NULL,
	count    bigint  NOT NULL,
	PRIMARY KEY (left_id, mid_id, right_id)
)`

// Store is a model.Source backed by a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ model.Source = (*Store)(nil)

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the four tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Characters(ctx context.Context) ([]lexicon.Character, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, glyph, count FROM char_set ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (lexicon.Character, error) {
		var c lexicon.Character
		err := row.Scan(&c.ID, &c.Glyph, &c.Count)
		return c, err
	})
}

func (s *Store) Syllables(ctx context.Context) ([]syllable.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT reading, char_id FROM syllable ORDER BY reading, ord`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []syllable.Entry
	for rows.Next() {
		var (
			reading string
			id      int
		)
		if err := rows.Scan(&reading, &id); err != nil {
			return nil, err
		}
		if n := len(entries); n > 0 && entries[n-1].Reading == reading {
			entries[n-1].IDs = append(entries[n-1].IDs, id)
			continue
		}
		entries = append(entries, syllable.Entry{Reading: reading, IDs: []int{id}})
	}
	return entries, rows.Err()
}

func (s *Store) Bigrams(ctx context.Context) ([]ngram.Bigram, error) {
	rows, err := s.pool.Query(ctx, `SELECT left_id, right_id, count FROM relation2`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ngram.Bigram, error) {
		var b ngram.Bigram
		err := row.Scan(&b.Left, &b.Right, &b.Count)
		return b, err
	})
}

// Trigrams filters on the server so pruned rows never cross the wire. A key
// is pruned by its summed count; a negative row is passed through so
// validation rejects it.
func (s *Store) Trigrams(ctx context.Context, bound int) ([]ngram.Trigram, error) {
	rows, err := s.pool.Query(ctx, `
SELECT left_id, mid_id, right_id,
       CASE WHEN min(count) < 0 THEN min(count) ELSE sum(count)::bigint END
FROM relation3
GROUP BY left_id, mid_id, right_id
HAVING sum(count) > $1 OR min(count) < 0
ORDER BY left_id, mid_id, right_id`, bound)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ngram.Trigram, error) {
		var t ngram.Trigram
		err := row.Scan(&t.Left, &t.Mid, &t.Right, &t.Count)
		return t, err
	})
}

// Import replaces the content of all four tables with t in one transaction.
func (s *Store) Import(ctx context.Context, t *model.Tables) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE char_set, syllable, relation2, relation3`); err != nil {
		return err
	}

	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"char_set", []string{"id", "glyph", "count"}, charRows(t.CharRows)},
		{"syllable", []string{"reading", "char_id", "ord"}, syllableRows(t.SyllableRows)},
		{"relation2", []string{"left_id", "right_id", "count"}, bigramRows(t.BigramRows)},
		{"relation3", []string{"left_id", "mid_id", "right_id", "count"}, trigramRows(t.TrigramRows)},
	}
	for _, c := range copies {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows)); err != nil {
			return fmt.Errorf("copy %s: %w", c.table, err)
		}
	}
	return tx.Commit(ctx)
}

func charRows(chars []lexicon.Character) [][]any {
	rows := make([][]any, len(chars))
	for i, c := range chars {
		rows[i] = []any{c.ID, c.Glyph, c.Count}
	}
	return rows
}

func syllableRows(entries []syllable.Entry) [][]any {
	var rows [][]any
	for _, e := range entries {
		for ord, id := range e.IDs {
			rows = append(rows, []any{e.Reading, id, ord})
		}
	}
	return rows
}

// bigramRows and trigramRows sum rows repeating a key, which the primary
// keys would otherwise reject.
func bigramRows(grams []ngram.Bigram) [][]any {
	var rows [][]any
	at := make(map[[2]int]int, len(grams))
	for _, b := range grams {
		k := [2]int{b.Left, b.Right}
		if i, ok := at[k]; ok {
			rows[i][2] = rows[i][2].(int) + b.Count
			continue
		}
		at[k] = len(rows)
		rows = append(rows, []any{b.Left, b.Right, b.Count})
	}
	return rows
}

func trigramRows(grams []ngram.Trigram) [][]any {
	var rows [][]any
	at := make(map[[3]int]int, len(grams))
	for _, t := range grams {
		k := [3]int{t.Left, t.Mid, t.Right}
		if i, ok := at[k]; ok {
			rows[i][3] = rows[i][3].(int) + t.Count
			continue
		}
		at[k] = len(rows)
		rows = append(rows, []any{t.Left, t.Mid, t.Right, t.Count})
	}
	return rows
}
