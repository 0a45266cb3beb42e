package httpapi

import (
	"net/http"
)

type HealthHandler struct {
	Runner Runner
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"ok": true}
	if h.Runner != nil {
		body["state"] = h.Runner.Status().State
	}
	WriteJSON(w, http.StatusOK, body)
}
