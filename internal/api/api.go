// Package api exposes the GymBro HTTP surface: the WhatsApp Cloud API webhook, the Twilio
// webhook, health and metrics endpoints.
//
// Every accepted webhook delivery is normalized into models.InboundEvent values and handed to
// an EventHandler (the conversation router) before the request is acknowledged.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twilio/twilio-go/client"

	"github.com/BTreeMap/GymBro/internal/messaging"
	"github.com/BTreeMap/GymBro/internal/models"
)

const (
	// DefaultAddr is the listen address when none is configured
	DefaultAddr = ":3000"
	// DefaultHandleTimeout bounds the processing of one webhook delivery
	DefaultHandleTimeout = 2 * time.Minute
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
	// maxBodyBytes caps webhook request bodies
	maxBodyBytes = 1 << 20
)

// EventHandler consumes normalized inbound events.
type EventHandler interface {
	Handle(ctx context.Context, ev models.InboundEvent) error
}

// SessionCounter reports the number of live conversation sessions for /healthz.
type SessionCounter interface {
	ActiveSessions() int
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	VerifyToken     string // Meta webhook verification token
	TwilioAuthToken string // enables X-Twilio-Signature validation when set
	TwilioURL       string // public URL Twilio posts to; derived from the request when empty
	Resolver        messaging.ButtonResolver
	Sessions        SessionCounter
	HandleTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the token Meta echoes during webhook verification.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithTwilioValidation enables signature validation on the Twilio webhook. publicURL is the
// exact URL configured in the Twilio console; when empty it is derived from each request.
func WithTwilioValidation(authToken, publicURL string) Option {
	return func(o *Opts) {
		o.TwilioAuthToken = authToken
		o.TwilioURL = publicURL
	}
}

// WithButtonResolver maps replies typed against text-rendered buttons back to button events.
func WithButtonResolver(r messaging.ButtonResolver) Option {
	return func(o *Opts) { o.Resolver = r }
}

// WithSessionCounter reports live sessions on /healthz.
func WithSessionCounter(c SessionCounter) Option {
	return func(o *Opts) { o.Sessions = c }
}

// WithHandleTimeout bounds the processing of one webhook delivery.
func WithHandleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.HandleTimeout = d }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	handler   EventHandler
	cfg       Opts
	validator *client.RequestValidator
	router    chi.Router
	started   time.Time
}

// NewServer creates a Server dispatching webhook events to handler.
func NewServer(handler EventHandler, opts ...Option) *Server {
	cfg := Opts{
		Addr:            DefaultAddr,
		HandleTimeout:   DefaultHandleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{handler: handler, cfg: cfg, started: time.Now()}
	if cfg.TwilioAuthToken != "" {
		v := client.NewRequestValidator(cfg.TwilioAuthToken)
		s.validator = &v
	}
	if cfg.VerifyToken == "" {
		slog.Warn("NewServer: webhook verify token not set, Meta verification will be refused")
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.landingHandler)
	r.Get("/healthz", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/webhook", s.verifyHandler)
	r.Post("/webhook", s.webhookHandler)
	r.Post("/twilio/webhook", s.twilioHandler)
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	slog.Info("Server.Run: stopped")
	return nil
}

// dispatch hands events to the handler one at a time. The work is detached from the request
// so a client that gives up does not cut a conversation step in half.
func (s *Server) dispatch(r *http.Request, events []models.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.HandleTimeout)
	defer cancel()
	for _, ev := range events {
		if s.cfg.Resolver != nil {
			ev = s.cfg.Resolver.Resolve(ev)
		}
		if err := s.handler.Handle(ctx, ev); err != nil {
			slog.Warn("Server.dispatch: event not handled", "userID", ev.UserID, "kind", ev.Kind(), "error", err)
		}
	}
}

func (s *Server) landingHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, landingPage)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	result := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.cfg.Sessions != nil {
		result["active_sessions"] = s.cfg.Sessions.ActiveSessions()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

const landingPage = `GymBro - Asistente virtual

Este es el servidor del bot de WhatsApp de GymBro.

Servicios disponibles:
- Agendamiento de clases
- Consulta de mensualidad y pausas
- Consultas abiertas con IA

Escríbenos por WhatsApp para empezar.
`
