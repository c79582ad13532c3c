package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/teatak/pinyin/config"
	"github.com/teatak/pinyin/decoder"
	"github.com/teatak/pinyin/evaluate"
	"github.com/teatak/pinyin/model"
	"github.com/teatak/pinyin/predictor"
)

func main() {
	configPath := flag.String("config", "pinyin.yaml", "Path to config file (missing file uses defaults)")
	inputPath := flag.String("input", "data/input.txt", "Pinyin lines")
	answerPath := flag.String("answer", "data/answer.txt", "Expected character lines")
	grid := flag.Bool("grid", false, "Sweep smoothing weights instead of using the configured ones")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Bad environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	inputs := mustReadLines(*inputPath)
	answers := mustReadLines(*answerPath)
	if len(inputs) != len(answers) {
		log.Printf("Warning: %d input lines but %d answers", len(inputs), len(answers))
	}

	m, err := predictor.LoadModel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	log.Printf("Loaded model: %s", m.Stats())

	weights := []decoder.Weights{cfg.Weights()}
	if *grid {
		weights = weights[:0]
		for i := 2; i < 12; i += 2 {
			for j := 12; j < 22; j += 2 {
				weights = append(weights, decoder.Weights{Unigram: float64(i) / 100, Bigram: float64(j) / 100})
			}
		}
	}

	for _, w := range weights {
		report, err := run(m, w, cfg.Decoder, inputs, answers)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.2f %.2f %s\n", w.Unigram, w.Bigram, report)
	}
}

func run(m *model.Model, w decoder.Weights, dc config.Decoder, inputs, answers []string) (evaluate.Report, error) {
	p, err := predictor.New(m, w, dc)
	if err != nil {
		return evaluate.Report{}, err
	}
	results := p.PredictAll(inputs)
	texts := make([]string, len(results))
	for i, r := range results {
		if r.Err != nil {
			log.Printf("Warning: %v", r.Err)
		}
		texts[i] = r.Text
	}
	return evaluate.Compare(texts, answers), nil
}

func mustReadLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	lines, err := evaluate.ReadLines(f)
	if err != nil {
		log.Fatalf("Error reading %s: %v", path, err)
	}
	return lines
}
