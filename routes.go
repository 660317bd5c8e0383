package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/mockserver/internal/auth"
	"github.com/example/mockserver/internal/datastore"
)

type App struct {
	Auth        *auth.Service
	Store       *datastore.Store
	Log         *slog.Logger
	CORSOrigins []string
	rateLimiter *RateLimiter
}

// Router builds the full handler. Cross-cutting middleware wraps the mux
// from the outside so preflights and unmatched paths pass through it too.
func (a *App) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.HandleHealth).Methods("GET")
	r.HandleFunc("/ready", a.HandleReady).Methods("GET")

	r.HandleFunc("/auth/register", a.HandleRegister).Methods("POST")
	r.HandleFunc("/auth/login", a.HandleLogin).Methods("POST")
	r.HandleFunc("/auth/refresh", a.HandleRefresh).Methods("POST")
	r.HandleFunc("/auth/logout", a.HandleLogout).Methods("POST")
	r.HandleFunc("/auth/me", a.HandleMe).Methods("GET")

	r.HandleFunc("/db", a.HandleDB).Methods("GET")
	r.HandleFunc("/{collection}", a.HandleList).Methods("GET")
	r.HandleFunc("/{collection}", a.HandleCreate).Methods("POST")
	r.HandleFunc("/{collection}/{id}", a.HandleGet).Methods("GET")
	r.HandleFunc("/{collection}/{id}", a.HandleReplace).Methods("PUT")
	r.HandleFunc("/{collection}/{id}", a.HandlePatch).Methods("PATCH")
	r.HandleFunc("/{collection}/{id}", a.HandleDelete).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{})
	})

	var h http.Handler = r
	h = a.RateLimit(h)
	h = NoCache(h)
	h = a.CORS(h)
	h = SecurityHeaders(h)
	h = a.Logging(h)
	h = RequestID(h)
	return StripAPIPrefix(h)
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		a.Log.WarnContext(r.Context(), "datastore not ready", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
