package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"message-board/internal/failure"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer returns new Server with routes backed by provided message and auth services
func NewServer(logger *zap.SugaredLogger, messages MessageService, authSvc AuthService, opts ...Option) (*Server, error) {
	cfg := &config{
		httpServer: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
		},
		env: defaultEnvConfig(),
	}
	cfg.httpServer.Addr = cfg.env.addr()

	for _, opt := range opts {
		opt.apply(cfg)
	}

	if err := cfg.env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	h := &handler{
		logger:        logger,
		messages:      messages,
		auth:          authSvc,
		secureCookies: cfg.env.Production(),
	}

	m := newMetrics()

	router := mux.NewRouter()
	router.NotFoundHandler = routeNotFound(logger)
	router.MethodNotAllowedHandler = routeNotFound(logger)

	router.Handle("/metrics", m.handler()).Methods(http.MethodGet)
	router.Handle("/healthz", healthz(logger, cfg.healthCheck)).Methods(http.MethodGet)

	api := router.PathPrefix(cfg.env.APIPrefix).Subrouter()
	api.NotFoundHandler = router.NotFoundHandler
	api.MethodNotAllowedHandler = router.MethodNotAllowedHandler
	api.Use(m.instrument)

	api.Handle("/auth/signup", enforceJSON(logger, http.HandlerFunc(h.signUp))).Methods(http.MethodPost)
	api.Handle("/auth/login", enforceJSON(logger, http.HandlerFunc(h.signIn))).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	api.Handle("/auth/logout", authenticate(logger, authSvc, http.HandlerFunc(h.logout))).Methods(http.MethodPost)

	api.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)
	api.Handle("/messages", authenticate(logger, authSvc,
		enforceJSON(logger, http.HandlerFunc(h.createMessage)))).Methods(http.MethodPost)
	api.Handle("/messages/{id}", authenticate(logger, authSvc,
		enforceJSON(logger, http.HandlerFunc(h.updateMessage)))).Methods(http.MethodPatch)
	api.Handle("/messages/{id}", authenticate(logger, authSvc,
		http.HandlerFunc(h.deleteMessage))).Methods(http.MethodDelete)

	var root http.Handler = router
	if cfg.requestTimeout > 0 {
		root = http.TimeoutHandler(root, cfg.requestTimeout,
			`{"statusCode":503,"message":"Request timeout"}`)
	}
	root = throttle(logger, newLimiterPool(cfg.env.ThrottlerLimit, cfg.env.ThrottlerTTL), root)
	root = cors(cfg.env, root)
	root = securityHeaders(cfg.env.Production(), root)
	root = logRequests(logger.Desugar(), root)

	cfg.httpServer.Handler = root

	return &Server{
		logger:        logger,
		httpServer:    cfg.httpServer,
		afterShutdown: cfg.afterShutdown,
	}, nil
}

func routeNotFound(logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, &failure.Error{
			Kind:   failure.NotFound,
			Code:   "NOT_FOUND",
			Detail: "Cannot " + r.Method + " " + r.URL.Path,
		})
	})
}

func healthz(logger *zap.SugaredLogger, check func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Errorf("health check: %v", err)
				writeData(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, nil)
				return
			}
		}
		writeData(w, logger, http.StatusOK, map[string]string{"status": "ok"}, nil)
	})
}

// Handler returns the root http.Handler with every middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		s.logger.Info("Shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
