package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/repository"
	"github.com/Keepitcity/proof/scenario"
	ws "github.com/Keepitcity/proof/websocket"
)

// Server holds all server dependencies
type Server struct {
	config    *Config
	store     repository.Store
	pgPool    *pgxpool.Pool
	generator *scenario.Generator
	persona   consultation.PersonaAgent
	evaluator consultation.Evaluator
	manager   *SessionManager

	consultationEndpoints *ConsultationEndpoints
	scenarioEndpoints     *ScenarioEndpoints
	userEndpoints         *UserEndpoints
	websocketHandler      *WebSocketHandler
	wsHub                 *ws.Hub
}

func NewServer(config *Config) *Server {
	return &Server{config: config}
}

// SetStore sets the persistence layer. A nil store disables the user routes.
func (s *Server) SetStore(store repository.Store) {
	s.store = store
}

// SetAgents overrides the LLM clients built from config
func (s *Server) SetAgents(persona consultation.PersonaAgent, evaluator consultation.Evaluator) {
	s.persona = persona
	s.evaluator = evaluator
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	generator, err := NewScenarioGenerator(s.config.Scenario)
	if err != nil {
		return err
	}
	s.generator = generator

	if s.persona == nil || s.evaluator == nil {
		persona, evaluator, err := NewAgents(ctx, s.config.AI)
		if err != nil {
			return err
		}
		if s.persona == nil {
			s.persona = persona
		}
		if s.evaluator == nil {
			s.evaluator = evaluator
		}
	}

	engine := consultation.NewEngine(s.generator, s.persona, s.evaluator,
		consultation.WithTimeouts(s.config.AI.PersonaTimeout, s.config.AI.EvaluatorTimeout))

	opts := []SessionManagerOption{
		WithIdleTimeout(s.config.Session.IdleTimeout),
		WithRetention(s.config.Session.Retention),
	}
	if s.store != nil {
		opts = append(opts, WithScorecardStore(s.store))
		s.userEndpoints = NewUserEndpoints(s.store)
		slog.Info("User endpoints initialized")
	} else {
		slog.Warn("No store configured, scorecards will not be saved")
	}
	s.manager = NewSessionManager(engine, DefaultSweepInterval, opts...)
	slog.Info("Session manager initialized", "idle_timeout", s.config.Session.IdleTimeout)

	if s.config.Database.Driver == DriverPostgres && s.config.Database.URL != "" {
		pool, err := pgxpool.New(ctx, s.config.Database.URL)
		if err != nil {
			slog.Error("Failed to create health check pool", "error", err)
		} else {
			s.pgPool = pool
		}
	}

	s.consultationEndpoints = NewConsultationEndpoints(s.manager)
	s.scenarioEndpoints = NewScenarioEndpoints(s.generator)

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()
	s.websocketHandler = NewWebSocketHandler(NewCallProcessor(s.manager), s.manager, s.wsHub, s.config.WebSocket.AllowedOrigins)

	return nil
}

// NewScenarioGenerator uses the catalog file when one is configured
func NewScenarioGenerator(cfg ScenarioConfig) (*scenario.Generator, error) {
	if cfg.CatalogPath == "" {
		return scenario.NewDefaultGenerator(), nil
	}
	catalog, err := scenario.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	pools := scenario.DefaultPools()
	if catalog.Pools != nil {
		pools = *catalog.Pools
	}
	slog.Info("Loaded scenario catalog", "path", cfg.CatalogPath, "pm_templates", len(catalog.PM), "sales_templates", len(catalog.Sales))
	return scenario.NewGenerator(catalog, pools), nil
}

// NewAgents builds the persona and evaluator clients. Evaluation always
// runs on Gemini; the persona runs on Groq unless configured otherwise.
func NewAgents(ctx context.Context, cfg AIConfig) (consultation.PersonaAgent, consultation.Evaluator, error) {
	gemini, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.PersonaProvider {
	case PersonaProviderGemini:
		slog.Info("Persona provider initialized", "provider", PersonaProviderGemini, "model", cfg.GeminiModel)
		return gemini, gemini, nil
	case PersonaProviderGroq, "":
		slog.Info("Persona provider initialized", "provider", PersonaProviderGroq, "model", cfg.GroqModel)
		return NewGroqClient(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel), gemini, nil
	}
	return nil, nil, fmt.Errorf("unknown persona provider %q", cfg.PersonaProvider)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		r.Get("/health", s.healthHandler)
		r.Handle("/ws", s.websocketHandler)

		s.consultationEndpoints.RegisterRoutes(r)
		s.scenarioEndpoints.RegisterRoutes(r)
		if s.userEndpoints != nil {
			s.userEndpoints.RegisterRoutes(r)
		}
	})

	return r
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Close()

	slog.Info("Server exited")
}

// Close releases the session manager and database handles
func (s *Server) Close() {
	if s.manager != nil {
		s.manager.Close()
	}
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	var err error
	switch {
	case s.pgPool != nil:
		err = s.pgPool.Ping(r.Context())
	case s.store != nil:
		err = s.store.Ping(r.Context())
	}
	if s.pgPool != nil || s.store != nil {
		dbStatus = "up"
		if err != nil {
			dbStatus = "down"
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"database":        dbStatus,
		"active_sessions": s.manager.Len(),
	})
	slog.Info("Health check", "status", status, "database", dbStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API v1", "version": "1.0.0"})
}
