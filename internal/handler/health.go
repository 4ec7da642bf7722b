package handler

import (
	"net/http"
	"sync"
	"time"
)

// ReadinessChecker reports whether storage finished initializing.
// *sqlite.DB implements it.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler answers load-balancer and operator probes.
//
// The server starts listening before the database is ready, so /healthz
// is the place to see whether it is still starting, ready, or stuck on a
// failed initialization.
type HealthHandler struct {
	db      ReadinessChecker
	started time.Time

	mu      sync.Mutex
	initErr error
}

func NewHealthHandler(db ReadinessChecker) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// RecordInitError remembers the latest initialization failure. It is wired
// to the storage layer's OnInitError hook.
func (h *HealthHandler) RecordInitError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initErr = err
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Uptime string `json:"uptime"`
}

// HandleHealth returns 200 once the database is ready and 503 before that.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Uptime: time.Since(h.started).Round(time.Second).String()}

	if h.db.Ready() {
		resp.Status = "ready"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.mu.Lock()
	initErr := h.initErr
	h.mu.Unlock()

	resp.Status = "starting"
	if initErr != nil {
		resp.Status = "failed"
		resp.Error = initErr.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, resp)
}
