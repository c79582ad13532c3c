package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teatak/pinyin/decoder"
	"github.com/teatak/pinyin/ngram"
)

// Environment variables read by ApplyEnv.
const (
	EnvUnigram  = "PINYIN_SMOOTH_1"
	EnvBigram   = "PINYIN_SMOOTH_2"
	EnvModelDir = "PINYIN_MODEL_DIR"
	EnvPostgres = "PINYIN_PG_DSN"
)

// Config is read once at startup and not mutated afterwards.
type Config struct {
	Model     Model     `yaml:"model"`
	Smoothing Smoothing `yaml:"smoothing"`
	Pruning   Pruning   `yaml:"pruning"`
	Decoder   Decoder   `yaml:"decoder"`
	Server    Server    `yaml:"server"`
}

// Model selects where tables are loaded from. Postgres wins over Snapshot,
// Snapshot wins over Dir.
type Model struct {
	Dir      string `yaml:"dir"`
	Snapshot string `yaml:"snapshot"`
	Postgres string `yaml:"postgres"`
}

type Smoothing struct {
	Unigram float64 `yaml:"unigram"`
	Bigram  float64 `yaml:"bigram"`
}

type Pruning struct {
	OccurrenceBound int `yaml:"occurrence_bound"`
	TopK            int `yaml:"top_k"`
}

type Decoder struct {
	BeamWidth int `yaml:"beam_width"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Model:     Model{Dir: "data/model"},
		Smoothing: Smoothing{Unigram: 0.1, Bigram: 0.2},
		Pruning:   Pruning{OccurrenceBound: 5},
		Server:    Server{Addr: ":8080"},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvUnigram); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUnigram, err)
		}
		c.Smoothing.Unigram = f
	}
	if v := os.Getenv(EnvBigram); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBigram, err)
		}
		c.Smoothing.Bigram = f
	}
	if v := os.Getenv(EnvModelDir); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv(EnvPostgres); v != "" {
		c.Model.Postgres = v
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if c.Pruning.OccurrenceBound < 0 || c.Pruning.TopK < 0 {
		return fmt.Errorf("config: negative pruning %+v", c.Pruning)
	}
	if c.Decoder.BeamWidth < 0 {
		return fmt.Errorf("config: negative beam width %d", c.Decoder.BeamWidth)
	}
	if c.Model.Dir == "" && c.Model.Snapshot == "" && c.Model.Postgres == "" {
		return errors.New("config: no model source")
	}
	return nil
}

// Weights returns the smoothing weights as decoder weights.
func (c *Config) Weights() decoder.Weights {
	return decoder.Weights{Unigram: c.Smoothing.Unigram, Bigram: c.Smoothing.Bigram}
}

// NGram returns the pruning options for model.Load.
func (c *Config) NGram() ngram.Options {
	return ngram.Options{OccurrenceBound: c.Pruning.OccurrenceBound, TopK: c.Pruning.TopK}
}
