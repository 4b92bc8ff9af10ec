package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kali23041/3d-gsplat/internal/core"
	"github.com/kali23041/3d-gsplat/internal/domain"
	"github.com/kali23041/3d-gsplat/internal/middleware"
)

// App is the handler container: the lifecycle service plus request plumbing.
type App struct {
	Svc *core.Service
	Log zerolog.Logger
}

func NewApp(svc *core.Service, log zerolog.Logger) *App {
	return &App{Svc: svc, Log: log}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps domain errors onto HTTP status codes. A job's Failed state is a
// payload value and never goes through here.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		a.json(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, domain.ErrForbidden):
		a.json(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		a.json(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		a.json(w, http.StatusConflict, map[string]string{"error": "invalid state transition"})
	default:
		a.Log.Error().Err(err).Str("path", r.URL.Path).Msg("handlers: internal error")
		a.json(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (a *App) principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		a.json(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return p, ok
}
