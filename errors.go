package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/mockserver/internal/auth"
)

// writeJSON writes v as the raw response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "err", err)
	}
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeData writes {"data": data}.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{"data": data})
}

var authStatus = map[auth.Kind]int{
	auth.KindBadRequest:   http.StatusBadRequest,
	auth.KindConflict:     http.StatusConflict,
	auth.KindUnauthorized: http.StatusUnauthorized,
	auth.KindNotFound:     http.StatusNotFound,
}

// writeAuthError maps auth failures to their status; anything unclassified
// is logged and reported as a 500 without details.
func (a *App) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if status, ok := authStatus[auth.KindOf(err)]; ok {
		writeError(w, status, err.Error())
		return
	}
	a.Log.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
