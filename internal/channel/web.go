// Package channel exposes the assistant over HTTP: the chat endpoint with
// its JSON and server-sent-event transport, the REST routes of each
// deployment, the n8n callback and the realtime KPI websocket.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bizassist/internal/auth"
	"bizassist/internal/config"
	"bizassist/internal/domain"
	"bizassist/internal/metrics"
)

const (
	maxBodySize     = 1 << 20 // 1MB
	shutdownTimeout = 5 * time.Second
)

// PromptRouter answers one chat prompt.
type PromptRouter interface {
	Route(ctx context.Context, p domain.Principal, prompt string) domain.Envelope
}

// Store is the persistence surface used by the HTTP routes.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	FindOrCreatePatient(ctx context.Context, email, name string) (domain.Patient, error)

	SalesBetween(ctx context.Context, tenantID string, from, to time.Time) (domain.SalesSummary, error)

	ListTasks(ctx context.Context, tenantID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, tenantID, title string, dueAt time.Time) (domain.Task, error)
	GetTask(ctx context.Context, tenantID, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, tenantID, id string, u domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, tenantID, id string) error

	ListAppointments(ctx context.Context, patientID string) ([]domain.Appointment, error)
	CreateAppointment(ctx context.Context, patientID string, startsAt, endsAt time.Time, reason string) (domain.Appointment, error)
	ListFAQs(ctx context.Context) ([]domain.FAQ, error)

	AppendExchange(ctx context.Context, scope, prompt, answer string) error
}

type ServerConfig struct {
	Host       string
	Port       int
	Version    string
	Deployment string // config.DeploymentBizAssist | config.DeploymentMediConnect

	Router   PromptRouter
	Store    Store
	Users    *auth.Tokens
	Patients *auth.Tokens

	UserTokenTTL    time.Duration
	PatientTokenTTL time.Duration
	CallbackSecret  string // HMAC secret for n8n callbacks; empty accepts unsigned
	MetricsEndpoint string // empty disables metrics
	WriteTimeout    time.Duration

	Now      func() time.Time
	Location *time.Location
	Logger   *slog.Logger
}

// Server is the assistant's HTTP API.
type Server struct {
	host       string
	port       int
	version    string
	deployment string

	router   PromptRouter
	store    Store
	users    *auth.Tokens
	patients *auth.Tokens

	userTTL         time.Duration
	patientTTL      time.Duration
	callbackSecret  string
	metricsEndpoint string
	writeTimeout    time.Duration

	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
	server *http.Server
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Deployment == "" {
		cfg.Deployment = config.DeploymentBizAssist
	}
	if cfg.Users == nil {
		cfg.Users = auth.NewUserTokens("")
	}
	if cfg.Patients == nil {
		cfg.Patients = auth.NewPatientTokens("")
	}
	if cfg.UserTokenTTL == 0 {
		cfg.UserTokenTTL = time.Hour
	}
	if cfg.PatientTokenTTL == 0 {
		cfg.PatientTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		host:            cfg.Host,
		port:            cfg.Port,
		version:         cfg.Version,
		deployment:      cfg.Deployment,
		router:          cfg.Router,
		store:           cfg.Store,
		users:           cfg.Users,
		patients:        cfg.Patients,
		userTTL:         cfg.UserTokenTTL,
		patientTTL:      cfg.PatientTokenTTL,
		callbackSecret:  cfg.CallbackSecret,
		metricsEndpoint: cfg.MetricsEndpoint,
		writeTimeout:    cfg.WriteTimeout,
		now:             cfg.Now,
		loc:             cfg.Location,
		logger:          cfg.Logger,
	}
}

// chatTokens are the tokens accepted by the chat endpoint.
func (s *Server) chatTokens() *auth.Tokens {
	if s.deployment == config.DeploymentMediConnect {
		return s.patients
	}
	return s.users
}

// Handler returns the full route table wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", auth.Require(s.chatTokens(), s.logger, s.handleChat))
	mux.HandleFunc("POST /api/webhook/n8n/{flowId}", s.handleN8NCallback)
	if s.metricsEndpoint != "" {
		mux.HandleFunc("GET "+s.metricsEndpoint, metrics.Collector.Handler())
	}

	switch s.deployment {
	case config.DeploymentMediConnect:
		patient := func(h http.HandlerFunc) http.HandlerFunc { return auth.Require(s.patients, s.logger, h) }
		mux.HandleFunc("POST /api/patient/session", s.handlePatientSession)
		mux.HandleFunc("GET /api/patient/appointments", patient(s.handleListAppointments))
		mux.HandleFunc("POST /api/appointments", patient(s.handleCreateAppointment))
		mux.HandleFunc("GET /api/faqs", s.handleListFAQs)
	default:
		user := func(h http.HandlerFunc) http.HandlerFunc { return auth.Require(s.users, s.logger, h) }
		mux.HandleFunc("POST /api/auth/register", s.handleRegister)
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		mux.HandleFunc("GET /api/kpi/summary", user(s.handleKPISummary))
		mux.HandleFunc("GET /api/tasks", user(s.handleListTasks))
		mux.HandleFunc("POST /api/tasks", user(s.handleCreateTask))
		mux.HandleFunc("GET /api/tasks/{id}", user(s.handleGetTask))
		mux.HandleFunc("PUT /api/tasks/{id}", user(s.handleUpdateTask))
		mux.HandleFunc("DELETE /api/tasks/{id}", user(s.handleDeleteTask))
	}

	return withRequestID(s.logger, recoverPanics(s.logger, accessLog(s.logger, mux)))
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("api server started", "addr", addr, "deployment", s.deployment)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"version":   s.version,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)
	p, _ := auth.PrincipalFrom(r.Context())

	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(w, r, &body); err != nil || strings.TrimSpace(body.Prompt) == "" {
		writeMessage(w, http.StatusBadRequest, "Prompt is required and must be a non-empty string.")
		return
	}
	prompt := strings.TrimSpace(body.Prompt)
	logger = logger.With("scope", p.Scope, "kind", p.Kind)
	logger.Info("chat prompt received")

	env := s.router.Route(r.Context(), p, prompt)
	answer, complete := writeEnvelope(w, r, env, logger)
	if !complete || s.store == nil {
		return
	}
	if err := s.store.AppendExchange(context.WithoutCancel(r.Context()), p.Scope, prompt, answer); err != nil {
		logger.Warn("failed to record conversation", "err", err)
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// parseISOTime accepts ISO 8601 timestamps; values without a zone are UTC.
func parseISOTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validEmail(email string) bool {
	return strings.Contains(email, "@")
}
