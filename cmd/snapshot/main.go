package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/ngram"
	"github.com/teatak/pinyin/pgstore"
	"github.com/teatak/pinyin/util"
)

// snapshot packs a text model directory or a postgres model into a single
// binary file, or unpacks a snapshot back into a directory.
func main() {
	from := flag.String("from", "data/model", "Model directory, or snapshot file with -unpack")
	dsn := flag.String("postgres", "", "Read the model from this database instead of -from")
	to := flag.String("to", "data/model.snap", "Output snapshot file, or directory with -unpack")
	unpack := flag.Bool("unpack", false, "Write a snapshot back out as a text model directory")
	bound := flag.Int("bound", 0, "Drop trigrams with count at or below this before packing")
	topK := flag.Int("topk", 0, "Keep this many trigram continuations per context (0 keeps all)")
	flag.Parse()

	ctx := context.Background()

	if *unpack {
		if !util.FileExists(*from) {
			log.Fatalf("Snapshot not found at %s", *from)
		}
		tables, err := model.OpenSnapshot(*from)
		if err != nil {
			log.Fatal(err)
		}
		if err := model.WriteDir(*to, tables); err != nil {
			log.Fatalf("Failed to write model: %v", err)
		}
		log.Printf("Unpacked %s to %s", *from, *to)
		return
	}

	var src model.Source = model.Dir(*from)
	if *dsn != "" {
		store, err := pgstore.Open(ctx, *dsn)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		src = store
	}

	tables, err := model.ReadAll(ctx, src)
	if err != nil {
		log.Fatal(err)
	}
	// refuse to pack a model that would not load
	m, err := model.Load(ctx, tables, ngram.Options{OccurrenceBound: *bound, TopK: *topK})
	if err != nil {
		log.Fatal(err)
	}
	if *bound > 0 || *topK > 0 {
		log.Printf("Pruned model: %s", m.Stats())
		tables = m.Tables()
	}
	if err := model.SaveSnapshot(*to, tables); err != nil {
		log.Fatalf("Failed to write snapshot: %v", err)
	}
	info, err := os.Stat(*to)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Snapshot saved to %s (%d bytes)", *to, info.Size())
}
