package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"

	"jobwatch-engine/internal/poll"
)

type ScrapeHandler struct {
	Runner  Runner
	BaseCtx context.Context
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Runner.Status())
}

// Run starts a cycle in the background. A cycle already in progress,
// scheduled or manual, yields 409.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Status().Running {
		WriteError(w, r, http.StatusConflict, "already_running", "a scan cycle is already running")
		return
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := RequestIDFrom(r.Context())
	go func() {
		res, err := h.Runner.RunCycle(ctx)
		if errors.Is(err, poll.ErrCycleRunning) {
			log.Printf("[httpapi] request_id=%s manual run skipped: cycle already running", reqID)
			return
		}
		if err != nil {
			log.Printf("[httpapi] request_id=%s manual run cycle=%s err=%v", reqID, res.ID, err)
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
