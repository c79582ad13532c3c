package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teatak/pinyin/builder"
	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/pgstore"
)

func main() {
	tablePath := flag.String("table", "data/table.txt", "Pronunciation table: reading followed by its characters")
	inputs := flag.String("input", "", "Comma separated annotated corpus files or globs (glyph/reading tokens)")
	outputDir := flag.String("output", "data/model", "Directory to write the text model to")
	snapshotPath := flag.String("snapshot", "", "Also write a binary snapshot to this path")
	dsn := flag.String("postgres", os.Getenv("PINYIN_PG_DSN"), "Also import the model into this database")
	limit := flag.Int("limit", builder.DefaultLimit, "Continuations kept per trigram context (0 keeps all)")
	flag.Parse()

	if *inputs == "" {
		log.Fatal("Please provide corpus files using -input flag")
	}

	log.SetPrefix("[TRAIN] ")
	begin := time.Now()

	tableFile, err := os.Open(*tablePath)
	if err != nil {
		log.Fatalf("Failed to open table: %v", err)
	}
	table, err := builder.ReadTable(tableFile)
	tableFile.Close()
	if err != nil {
		log.Fatalf("Failed to read table: %v", err)
	}
	log.Printf("Loaded table with %d characters.", table.Len()-2)

	counter := builder.NewCounter(table)
	for _, path := range expand(*inputs) {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open corpus: %v", err)
		}
		err = counter.AddReader(f)
		f.Close()
		if err != nil {
			log.Fatalf("Error scanning %s: %v", path, err)
		}
		log.Printf("Processed %s (%d sentences so far).", path, counter.Sentences())
	}
	if counter.Skipped() > 0 {
		log.Printf("Warning: %d tokens were not in the table.", counter.Skipped())
	}

	tables := counter.Tables(*limit)
	log.Printf("Counted %d bigrams and %d trigrams.", len(tables.BigramRows), len(tables.TrigramRows))

	if err := model.WriteDir(*outputDir, tables); err != nil {
		log.Fatalf("Failed to write model: %v", err)
	}
	log.Printf("Model saved to %s", *outputDir)

	if *snapshotPath != "" {
		if err := model.SaveSnapshot(*snapshotPath, tables); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("Snapshot saved to %s", *snapshotPath)
	}

	if *dsn != "" {
		ctx := context.Background()
		store, err := pgstore.Open(ctx, *dsn)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("Migrate failed: %v", err)
		}
		if err := store.Import(ctx, tables); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		log.Println("Imported model into postgres.")
	}

	log.Printf("Done in %s.", time.Since(begin).Round(time.Millisecond))
}

// expand resolves comma separated paths and glob patterns.
func expand(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths
}
