// control/http.go
// Author: momentics <momentics@gmail.com>
//
// Optional HTTP endpoint exposing the metrics registry.

package control

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// StatsServer serves GET /stats and GET /healthz.
type StatsServer struct {
	srv      *http.Server
	ln       net.Listener
	registry *MetricsRegistry
	runID    string
}

// NewRouter builds the stats routes over registry. probes may be nil, in
// which case /debug is not served.
func NewRouter(registry *MetricsRegistry, probes *DebugProbes, runID string) *mux.Router {
	h := &statsHandler{registry: registry, probes: probes, runID: runID}
	r := mux.NewRouter()
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/stats/{key}", h.stat).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if probes != nil {
		r.HandleFunc("/debug", h.debug).Methods(http.MethodGet)
		r.HandleFunc("/debug/{probe}", h.debugProbe).Methods(http.MethodGet)
	}
	return r
}

// StartStatsServer listens on addr and serves in a background goroutine.
func StartStatsServer(addr string, registry *MetricsRegistry, probes *DebugProbes, runID string) (*StatsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &StatsServer{
		srv: &http.Server{
			Handler:           NewRouter(registry, probes, runID),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:       ln,
		registry: registry,
		runID:    runID,
	}
	go func() {
		log.Printf("[control] stats endpoint listening on %s", ln.Addr())
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[control] stats endpoint stopped: %v", err)
		}
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *StatsServer) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the endpoint.
func (s *StatsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statsHandler struct {
	registry *MetricsRegistry
	probes   *DebugProbes
	runID    string
}

func (h *statsHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  h.runID,
		"updated": h.registry.Updated(),
		"metrics": h.registry.GetSnapshot(),
	})
}

func (h *statsHandler) stat(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	v, ok := h.registry.Get(key)
	if !ok {
		http.Error(w, "unknown metric "+key, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{key: v})
}

func (h *statsHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": h.runID})
}

func (h *statsHandler) debug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probes.DumpState())
}

func (h *statsHandler) debugProbe(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["probe"]
	v, ok := h.probes.Probe(name)
	if !ok {
		http.Error(w, "unknown probe "+name, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[control] encode response: %v", err)
	}
}
