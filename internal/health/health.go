// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 as long as the process can serve HTTP. /readyz runs
// every registered [Checker] in parallel and answers 503 when any of them
// fails, for example while the storage circuit breaker is open.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/spellin/internal/observe"
)

// DefaultTimeout bounds a single readiness check.
const DefaultTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by the favourites store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts p to a [Checker] called name.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Report is the JSON body of both probes.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// Handler serves /healthz and /readyz. The checker set is fixed by [New].
type Handler struct {
	// Timeout bounds each check. Zero means [DefaultTimeout].
	Timeout time.Duration

	checkers []Checker
}

// New returns a Handler for checkers. Checkers sharing a name overwrite each
// other in the report.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts both probes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: statusOK})
}

// Readyz reports every checker and answers 503 when any failed.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Check(r.Context())
	code := http.StatusOK
	if rep.Status != statusOK {
		code = http.StatusServiceUnavailable
		observe.Logger(r.Context()).Warn("not ready", "checks", rep.Checks)
	}
	writeReport(w, code, rep)
}

// Check runs all checkers concurrently, each under its own timeout.
func (h *Handler) Check(ctx context.Context) Report {
	rep := Report{Status: statusOK, Checks: make(map[string]CheckResult, len(h.checkers))}
	var mu sync.Mutex

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			res := h.run(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			rep.Checks[c.Name] = res
			if res.Status != statusOK {
				rep.Status = statusFail
			}
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func (h *Handler) run(ctx context.Context, c Checker) CheckResult {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Status: statusOK, Duration: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		res.Status = statusFail
		res.Error = err.Error()
	}
	return res
}

func writeReport(w http.ResponseWriter, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
