package httpapi

import (
	"net/http"
	"path/filepath"

	"jobwatch-engine/internal/config"
)

// ConfigHandler serves the effective configuration. Credentials carry
// json:"-" on config.Config and never leave the process.
type ConfigHandler struct {
	Cfg         config.Config
	UserCfgPath string
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Cfg)
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, _ := filepath.Abs(h.UserCfgPath)
	WriteJSON(w, http.StatusOK, map[string]any{"path": abs})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.Cfg)
	WriteJSON(w, http.StatusOK, vr)
}
