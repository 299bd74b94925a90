// Package health serves the practice gateway's liveness and readiness
// probes.
//
// /healthz answers 200 whenever the process can serve HTTP at all. /readyz
// answers 200 only while every registered dependency probe passes — the
// stimulus store above all — so an orchestrator holds companion traffic
// until a practice session could actually run. Both bodies are JSON: a
// top-level "status" ("ok" or "fail") and, for /readyz, a "checks" map with
// one entry per probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds a single dependency probe. A store that cannot answer
// a ping within this window is not ready, whatever it might say later.
const probeTimeout = 5 * time.Second

// Check probes one dependency the gateway needs before it can run practice
// sessions.
type Check struct {
	// Name keys the probe's entry in the /readyz body (e.g. "storage").
	Name string

	// Probe reports nil while the dependency is usable. It must honor
	// ctx; the handler cancels it at probeTimeout.
	Probe func(ctx context.Context) error
}

// report is the JSON body for both probe endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. The check list is fixed at
// construction and a Handler is safe for concurrent use.
type Handler struct {
	checks []Check
}

// New returns a [Handler] that evaluates checks on every /readyz request.
func New(checks ...Check) *Handler {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Handler{checks: c}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe. Serving the request is the proof.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every probe, each under its own [probeTimeout] derived from
// the request context, and answers 503 with per-check detail when any
// fails. Probes run concurrently so one slow dependency cannot starve the
// others of their window.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	details := make([]string, len(h.checks))

	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			if err := c.Probe(ctx); err != nil {
				details[i] = "fail: " + err.Error()
			} else {
				details[i] = "ok"
			}
			return nil
		})
	}
	g.Wait()

	res := report{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for i, c := range h.checks {
		res.Checks[c.Name] = details[i]
		if details[i] != "ok" {
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	respond(w, status, res)
}

// respond encodes v as JSON with the given status code, falling back to a
// plain 500 body when encoding fails.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
