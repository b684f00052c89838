package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"folio/internal/engine"
	"folio/internal/logger"
	"folio/internal/quotes"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port           int
	Log            zerolog.Logger
	Engine         *engine.Engine
	Quotes         *quotes.Store
	Store          pinger
	CorsOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	engine  *engine.Engine
	quotes  *quotes.Store
	store   pinger
	limiter *clientLimiter
	port    int
	started time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     logger.Component(cfg.Log, "server"),
		engine:  cfg.Engine,
		quotes:  cfg.Quotes,
		store:   cfg.Store,
		limiter: newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		port:    cfg.Port,
		started: time.Now(),
	}

	s.setupMiddleware(cfg.CorsOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Put("/", s.handleEnsureUser)
			r.Delete("/", s.handleDeactivateUser)

			r.Post("/positions", s.handleAddPosition)
			r.Delete("/positions/{symbol}", s.handleRemovePosition)
			r.Patch("/positions/{symbol}", s.handleRename)

			r.Post("/buy", s.handleBuy)
			r.Post("/sell", s.handleSell)
			r.Post("/cash/deposit", s.handleDeposit)
			r.Post("/cash/withdraw", s.handleWithdraw)
			r.Put("/allocation", s.handleEditAllocation)

			r.Get("/portfolio", s.handlePortfolio)
			r.Get("/cash", s.handleCash)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/allocation", s.handleAllocation)
			r.Get("/analytics", s.handleAnalytics)
			r.Get("/whatif", s.handleWhatIf)

			r.Post("/snapshots", s.handleRecordSnapshot)
		})

		r.Route("/market", func(r chi.Router) {
			r.Put("/quotes", s.handlePutQuotes)
			r.Put("/benchmarks", s.handlePutBenchmark)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/snapshots/run", s.handleRunSnapshots)
			r.Get("/snapshots/status", s.handleSnapshotStatus)
		})
	})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
