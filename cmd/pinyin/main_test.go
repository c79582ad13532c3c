package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/teatak/pinyin/config"
	"github.com/teatak/pinyin/predictor"
)

func TestRunBatch_KeepsAlignment(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Dir = filepath.Join("..", "..", "model", "testdata", "toy")
	p, err := predictor.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "input.txt")
	out := filepath.Join(dir, "output.txt")
	if err := os.WriteFile(in, []byte("ni hao\n\nzzz\n   \nni hao\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := runBatch(p, in, out); err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := "你好\n\n\n\n你好\n"; string(got) != want {
		t.Errorf("runBatch() wrote %q, want %q", got, want)
	}
}
