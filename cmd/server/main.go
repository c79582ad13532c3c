package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/teatak/pinyin/config"
	"github.com/teatak/pinyin/decoder"
	"github.com/teatak/pinyin/predictor"
	"github.com/teatak/pinyin/syllable"
)

// server holds the current predictor. Reload swaps in a freshly loaded one;
// a loaded predictor is never modified.
type server struct {
	cfg  *config.Config
	mu   sync.RWMutex
	pred *predictor.Predictor
}

func main() {
	configPath := flag.String("config", "pinyin.yaml", "Path to config file (missing file uses defaults)")
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

	s := &server{cfg: cfg}
	// Initial load
	if err := s.reload(context.Background()); err != nil {
		log.Fatalf("Initial load failed: %v", err)
	}

	e := s.routes()
	log.Printf("Server started on %s", cfg.Server.Addr)
	if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func (s *server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("%s %s %s %d %s", v.RequestID, v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.POST("/predict", s.handlePredict)
	e.POST("/predict/batch", s.handleBatch)
	e.POST("/reload", s.handleReload)
	return e
}

// reload loads the configured model and swaps it in.
func (s *server) reload(ctx context.Context) error {
	log.Println("Reloading model...")
	p, err := predictor.Open(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pred = p
	s.mu.Unlock()
	log.Printf("Model reloaded: %s", p.Model.Stats())
	return nil
}

func (s *server) predictor() *predictor.Predictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pred
}

// Request/Response types
type PredictRequest struct {
	Text string `json:"text"`
}

type PredictResponse struct {
	Text  string   `json:"text"`
	Chars []string `json:"chars"`
	IDs   []int    `json:"ids"`
}

type BatchRequest struct {
	Lines []string `json:"lines"`
}

type BatchResult struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

func (s *server) handleHealth(c echo.Context) error {
	stats := s.predictor().Model.Stats()
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"characters":  stats.Characters,
		"occurrences": stats.Occurrences,
		"readings":    stats.Readings,
		"bigrams":     stats.Bigrams,
		"trigrams":    stats.Trigrams,
	})
}

func (s *server) handlePredict(c echo.Context) error {
	var req PredictRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p := s.predictor()
	ids, err := p.PredictIDs(req.Text)
	if err != nil {
		return predictError(err)
	}
	return c.JSON(http.StatusOK, PredictResponse{
		Text:  p.Model.Lexicon.Text(ids),
		Chars: p.Glyphs(ids),
		IDs:   ids,
	})
}

func (s *server) handleBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results := s.predictor().PredictAll(req.Lines)
	resp := BatchResponse{Results: make([]BatchResult, len(results))}
	for i, r := range results {
		resp.Results[i].Text = r.Text
		if r.Err != nil {
			resp.Results[i].Error = r.Err.Error()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *server) handleReload(c echo.Context) error {
	if err := s.reload(c.Request().Context()); err != nil {
		log.Printf("Reload failed, keeping current model: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reloaded"})
}

// predictError maps per-line failures to HTTP statuses.
func predictError(err error) error {
	switch {
	case errors.Is(err, syllable.ErrUnknownSyllable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, decoder.ErrNoViablePath):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
