// Package httpapi exposes the catalog REST API and the development identity provider over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/metrics"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/service"
)

// Config names the identity provider realm and the only accepted client.
type Config struct {
	Realm    string
	ClientID string
}

// Server wires services into HTTP handlers.
type Server struct {
	books    service.BookService
	auth     service.AuthService
	metrics  *metrics.Metrics
	log      *zap.Logger
	realm    string
	clientID string
	ping     func(context.Context) error
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithHealthCheck makes /healthz report storage failures.
func WithHealthCheck(ping func(context.Context) error) Option {
	return func(s *Server) { s.ping = ping }
}

// New constructs a server with injected services.
func New(cfg Config, books service.BookService, auth service.AuthService, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{books: books, auth: auth, log: log, realm: cfg.Realm, clientID: cfg.ClientID}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(Logging(s.log, s.metrics), Recover(s.log))

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/realms/{realm}/protocol/openid-connect/token", s.token).Methods(http.MethodPost)

	api := r.PathPrefix("/rest").Subrouter()
	api.Use(Authenticate(s.auth))
	api.HandleFunc("", s.findBooks).Methods(http.MethodGet)
	api.HandleFunc("", RequireRole(model.RoleAdmin, s.createBook)).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", s.getBook).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", RequireRole(model.RoleAdmin, s.updateBook)).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}", RequireRole(model.RoleAdmin, s.deleteBook)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
