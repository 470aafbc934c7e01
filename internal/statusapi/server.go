package statusapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Server is the minimal HTTP surface for this batch job: a liveness probe
// and a metrics snapshot of the most recent run.
type Server struct {
	metrics    *Metrics
	httpServer *http.Server
}

// New builds a Server listening on addr (e.g. ":8080").
func New(addr string, metrics *Metrics) *Server {
	r := mux.NewRouter()
	s := &Server{metrics: metrics}

	r.Use(commonMiddleware)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.metrics.Snapshot())
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
