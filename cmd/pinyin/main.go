package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/teatak/pinyin/config"
	"github.com/teatak/pinyin/predictor"
)

func main() {
	configPath := flag.String("config", "pinyin.yaml", "Path to config file (missing file uses defaults)")
	modelDir := flag.String("model", "", "Model directory, overrides config")
	inputPath := flag.String("input", "", "Convert every line of this file instead of reading stdin")
	outputPath := flag.String("output", "", "Write batch results here (default stdout)")
	ids := flag.Bool("ids", false, "Print character ids instead of text")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Bad environment: %v", err)
	}
	if *modelDir != "" {
		cfg.Model = config.Model{Dir: *modelDir}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	p, err := predictor.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	log.Printf("Loaded model: %s", p.Model.Stats())

	process := func(line string) (string, error) {
		if !*ids {
			return p.Predict(line)
		}
		out, err := p.PredictIDs(line)
		if err != nil {
			return "", err
		}
		return strings.Trim(fmt.Sprint(out), "[]"), nil
	}

	// Batch mode
	if *inputPath != "" {
		if err := runBatch(p, *inputPath, *outputPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	// If args provided (non-flag args), convert them
	if args := flag.Args(); len(args) > 0 {
		result, err := process(strings.Join(args, " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(result)
		return
	}

	// Otherwise interactive mode
	fmt.Println("Enter pinyin separated by spaces (Ctrl+D to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		result, err := process(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(result)
	}
}

// runBatch converts every line of inputPath. Blank and failing lines are
// written as empty lines so output stays aligned with input.
func runBatch(p *predictor.Predictor, inputPath, outputPath string) error {
	inFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inFile.Close()

	var lines []string
	scanner := bufio.NewScanner(inFile)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var out io.Writer = os.Stdout
	if outputPath != "" {
		outFile, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer outFile.Close()
		out = outFile
	}
	writer := bufio.NewWriter(out)

	failed := 0
	for _, r := range p.PredictAll(lines) {
		if r.Err != nil {
			log.Printf("Warning: %v", r.Err)
			failed++
		}
		fmt.Fprintln(writer, r.Text)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	log.Printf("Done. Converted %d lines (%d failed).", len(lines), failed)
	return nil
}
