package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type SecretsHandler struct {
	Set     func(account, password string) error
	Account string
}

type setSMTPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	if h.Set == nil || h.Account == "" {
		WriteError(w, r, http.StatusConflict, "no_sender", "email.from is not configured")
		return
	}

	var req setSMTPPasswordReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "empty_password", "password is empty")
		return
	}

	if err := h.Set(h.Account, req.Password); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keyring_failed", "failed to store password: "+err.Error())
		return
	}
	// Takes effect on restart; the email transport is built once at startup.
	w.WriteHeader(http.StatusNoContent)
}
