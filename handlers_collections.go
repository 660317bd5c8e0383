package main

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/mockserver/internal/datastore"
)

// The collection endpoints answer with bare records, not the {data: ...}
// envelope used by /auth.

// HandleDB returns the whole document.
// GET /db
func (a *App) HandleDB(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.Snapshot())
}

// HandleList lists a collection with optional filters, sorting and paging.
// GET /{collection}?field=value&_sort=field&_order=desc&_page=2&_limit=10
func (a *App) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Store.List(mux.Vars(r)["collection"])
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	q := r.URL.Query()
	items = filterRecords(items, q)
	if field := q.Get("_sort"); field != "" {
		sortRecords(items, field, strings.EqualFold(q.Get("_order"), "desc"))
	}

	if q.Has("_page") || q.Has("_limit") {
		w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
		w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count")
		items = paginate(items, q)
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /{collection}/{id}
func (a *App) HandleGet(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	rec, err := a.Store.Get(v["collection"], v["id"])
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /{collection}
func (a *App) HandleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	created, err := a.Store.Insert(r.Context(), mux.Vars(r)["collection"], rec)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// PUT /{collection}/{id}
func (a *App) HandleReplace(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	v := mux.Vars(r)
	updated, err := a.Store.Replace(r.Context(), v["collection"], v["id"], rec)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PATCH /{collection}/{id}
func (a *App) HandlePatch(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	v := mux.Vars(r)
	updated, err := a.Store.Patch(r.Context(), v["collection"], v["id"], rec)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /{collection}/{id}
func (a *App) HandleDelete(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := a.Store.Delete(r.Context(), v["collection"], v["id"]); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func readRecord(w http.ResponseWriter, r *http.Request) (datastore.Record, bool) {
	rec, err := datastore.DecodeRecord(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return rec, true
}

func (a *App) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, datastore.ErrUnknownCollection), errors.Is(err, datastore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{})
	case errors.Is(err, datastore.ErrDuplicateID):
		writeError(w, http.StatusConflict, "duplicate id")
	default:
		a.Log.ErrorContext(r.Context(), "datastore request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// filterRecords keeps records whose fields equal the query values. Keys
// starting with "_" are reserved for sorting and paging.
func filterRecords(items []datastore.Record, q url.Values) []datastore.Record {
	out := items[:0:0]
	for _, rec := range items {
		if matchesQuery(rec, q) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesQuery(rec datastore.Record, q url.Values) bool {
	for key, want := range q {
		if strings.HasPrefix(key, "_") {
			continue
		}
		got := datastore.Stringify(rec[key])
		found := false
		for _, w := range want {
			if got == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortRecords(items []datastore.Record, field string, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return lessValue(items[j][field], items[i][field])
		}
		return lessValue(items[i][field], items[j][field])
	})
}

func lessValue(a, b interface{}) bool {
	as, bs := datastore.Stringify(a), datastore.Stringify(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return as < bs
}

func paginate(items []datastore.Record, q url.Values) []datastore.Record {
	limit := 10
	if v, err := strconv.Atoi(q.Get("_limit")); err == nil && v > 0 {
		limit = v
	}
	page := 1
	if v, err := strconv.Atoi(q.Get("_page")); err == nil && v > 0 {
		page = v
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []datastore.Record{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
