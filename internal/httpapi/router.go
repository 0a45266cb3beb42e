package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func NewRouter(d Deps) http.Handler {
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover)
	r.Use(AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	hh := HealthHandler{Runner: d.Runner}
	r.Get("/health", hh.Health)

	sch := ScrapeHandler{Runner: d.Runner, BaseCtx: d.BaseCtx}
	r.Get("/scrape/status", sch.Status)
	r.Post("/scrape/run", sch.Run)

	ch := ConfigHandler{Cfg: d.Cfg, UserCfgPath: d.UserCfgPath}
	r.Get("/config", ch.Get)
	r.Get("/config/path", ch.Path)
	r.Get("/config/validate", ch.Validate)

	sh := SecretsHandler{Set: d.SetSMTPPassword, Account: d.SMTPAccount}
	r.Post("/api/secrets/smtp", sh.SetSMTPPassword)

	if d.Hub != nil {
		eh := EventsHandler{Hub: d.Hub}
		r.Get("/events", eh.ServeSSE)
	}

	return r
}
