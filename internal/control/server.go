// Package control exposes the connect/disconnect commands over HTTP along
// with status, health and Prometheus endpoints.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/matst80/wslink/internal/manager"
	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/proto"
	"github.com/matst80/wslink/internal/ratelimit"
	"github.com/matst80/wslink/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commander is the connection manager surface the API drives.
type Commander interface {
	Connect(ctx context.Context, serverID string) error
	Disconnect(ctx context.Context) error
	Status() proto.Status
}

type Server struct {
	cmd     Commander
	limiter *ratelimit.KeyedLimiter
	servers func() []string
	router  *mux.Router
	ready   atomic.Bool
	closing atomic.Bool
}

// New builds the API. limiter and servers may be nil.
func New(cmd Commander, limiter *ratelimit.KeyedLimiter, servers func() []string) *Server {
	s := &Server{cmd: cmd, limiter: limiter, servers: servers, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(requestID, logRequests)
	// registered on the root router so a method mismatch answers 405
	s.router.HandleFunc("/api/connect/{id}", s.handleConnect).Methods(http.MethodPost)
	s.router.HandleFunc("/api/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.closing.Load() || !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) SetReady(v bool) { s.ready.Store(v) }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.SetReady(true)
	obs.Info("control.listen", obs.Fields{"addr": addr})
	select {
	case err := <-errc:
		s.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.closing.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.limiter != nil && !s.limiter.Allow(id) {
		obs.RateLimitedTotal.Inc()
		writeJSON(w, http.StatusTooManyRequests, proto.Result{Error: "too many connect attempts for " + id})
		return
	}
	if err := s.cmd.Connect(r.Context(), id); err != nil {
		writeJSON(w, statusFor(err), proto.Result{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, proto.Result{OK: true})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.cmd.Disconnect(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, proto.Result{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, proto.Result{OK: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmd.Status())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := s.cmd.Status()
	data := map[string]any{
		"Connected":   st.Connected,
		"ServerID":    st.ServerID,
		"SessionID":   st.SessionID,
		"Endpoint":    st.Endpoint,
		"ConnectedAt": st.ConnectedAt,
		"Relayed":     st.Relayed,
		"RelayActive": st.RelayActive,
	}
	if s.servers != nil {
		data["Servers"] = s.servers()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.Render(w, "status", data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func statusFor(err error) int {
	var he *manager.HandshakeError
	switch {
	case errors.Is(err, manager.ErrServerNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrInvalidEndpoint), errors.Is(err, manager.ErrHandshakeEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, manager.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, manager.ErrRegistry):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Error("control.write", obs.Fields{"err": err.Error()})
	}
}

type ctxKey struct{}

// RequestID returns the id assigned to the request by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		obs.Debug("control.request", obs.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"request": RequestID(r.Context()),
			"took_ms": time.Since(start).Milliseconds(),
		})
	})
}
