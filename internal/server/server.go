// Package server exposes the interview engine over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"family-vault/internal/config"
	"family-vault/internal/interview"
	"family-vault/internal/metrics"
	"family-vault/internal/session"
	"family-vault/internal/storage"
	"family-vault/internal/voice"
)

// Sessions runs interviews in progress.
type Sessions interface {
	Start(ctx context.Context, subject string) (session.View, error)
	Resume(ctx context.Context, location string) (session.View, error)
	Get(ctx context.Context, id string) (session.View, error)
	SubmitMain(ctx context.Context, id, text string) (session.View, error)
	SubmitFollowup(ctx context.Context, id, text string) (session.View, error)
	SkipFollowups(ctx context.Context, id string) (session.View, error)
	CancelFollowups(ctx context.Context, id string) (session.View, error)
	Back(ctx context.Context, id string) (session.View, error)
	PreviousFollowup(ctx context.Context, id string) (session.View, error)
	ReopenLastQuestion(ctx context.Context, id string) (session.View, error)
	Skip(ctx context.Context, id string) (session.View, error)
	SetRecording(ctx context.Context, id string, recording bool) (session.View, error)
	SetLanguage(ctx context.Context, id, language string) (session.View, error)
	Save(ctx context.Context, id string, exit bool) (session.SaveResult, error)
	Finish(ctx context.Context, id string) (session.SaveResult, error)
	Discard(id string) error
	RecordOp(location string, fn func() error) error
}

// Records gives access to saved interviews.
type Records interface {
	List() ([]storage.Entry, error)
	ReadRecord(location string) (*storage.Record, error)
	SaveExtracted(location string, extracted map[string]any) (*storage.Record, error)
	Delete(location string) error
	LocationOf(id string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, subject string, answers []interview.Answer) (map[string]any, error)
}

type Searcher interface {
	Answer(ctx context.Context, question string, rec *storage.Record) (string, error)
	AnswerAcross(ctx context.Context, question string, recs []*storage.Record) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text, language string) string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string, translate bool) string
}

type Speaker interface {
	Speak(ctx context.Context, text, profile string) ([]byte, voice.Profile, error)
}

// Metrics observes requests and serves the scrape endpoint.
type Metrics interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
	GetSnapshot() metrics.Snapshot
	Handler() http.Handler
}

// Deps are the services behind the API.
type Deps struct {
	Sessions    Sessions
	Records     Records
	Extractor   Extractor
	Searcher    Searcher
	Translator  Translator
	Transcriber Transcriber
	Speaker     Speaker
	Metrics     Metrics
}

type Server struct {
	deps    Deps
	cfg     config.ServerConfig
	limiter *session.RateLimiter
	logger  *zap.Logger
}

func New(deps Deps, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 30
	}
	return &Server{
		deps:    deps,
		cfg:     cfg,
		limiter: session.NewRateLimiter(limit, time.Minute),
		logger:  logger.Named("http"),
	}
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.requestLogger)
	router.Use(s.observe)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Voice-Profile"},
		MaxAge:         300,
	}))

	router.Get("/healthz", s.health)
	if s.deps.Metrics != nil {
		router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.startSession)
			r.Post("/resume", s.resumeSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.discardSession)
				r.Post("/answer", s.submitMain)
				r.Post("/followup", s.submitFollowup)
				r.Post("/followups/skip", s.skipFollowups)
				r.Post("/followups/cancel", s.cancelFollowups)
				r.Post("/followups/back", s.previousFollowup)
				r.Post("/reopen", s.reopen)
				r.Post("/back", s.back)
				r.Post("/skip", s.skip)
				r.Post("/recording", s.setRecording)
				r.Post("/language", s.setLanguage)
				r.Post("/save", s.save)
				r.Post("/finish", s.finish)
			})
		})

		r.Route("/interviews", func(r chi.Router) {
			r.Get("/", s.listInterviews)
			r.Get("/{recordID}", s.getInterview)
			r.Delete("/{recordID}", s.deleteInterview)
			r.Post("/{recordID}/extract", s.extractInterview)
		})

		r.Post("/search", s.search)
		r.Post("/translate", s.translate)
		r.Post("/transcribe", s.transcribe)
		r.Post("/speech", s.speech)
		r.Get("/languages", s.languages)
		r.Get("/voices", s.voices)
		r.Get("/stats", s.stats)
	})

	return router
}

// Run serves on the configured port until ctx is done, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Metrics == nil {
		s.respondJSON(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Metrics.GetSnapshot())
}
