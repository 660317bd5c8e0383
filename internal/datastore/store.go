// Package datastore holds a JSON document of named collections in memory and
// flushes it to a Backend after every mutation. Each collection is an array
// of objects keyed by an "id" field.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrDuplicateID       = errors.New("duplicate id")
)

// Record is one object of a collection.
type Record map[string]any

// Document is the whole persisted state: collection name to records.
type Document map[string][]Record

// Store serializes all access to the document. Mutations hold the write lock
// across id assignment, append and flush, so ids stay unique under
// concurrent inserts.
type Store struct {
	mu      sync.RWMutex
	doc     Document
	backend Backend
}

// Open loads the document from b. A "users" collection is always present.
func Open(ctx context.Context, b Backend) (*Store, error) {
	doc, err := b.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	if _, ok := doc["users"]; !ok {
		doc["users"] = []Record{}
	}
	return &Store{doc: doc, backend: b}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) Close() error { return s.backend.Close() }

// Collections returns the collection names in sorted order.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.doc))
	for name := range s.doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doc[name]
	return ok
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Document, len(s.doc))
	for name, items := range s.doc {
		out[name] = cloneRecords(items)
	}
	return out
}

func (s *Store) List(name string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.doc[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return cloneRecords(items), nil
}

func (s *Store) Get(name, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.doc[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return items[i].Clone(), nil
}

// Find returns the first record of name matching pred.
func (s *Store) Find(name string, pred func(Record) bool) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.doc[name] {
		if pred(r) {
			return r.Clone(), true
		}
	}
	return nil, false
}

// Insert appends rec to name. A missing id is assigned as 1 + the highest
// numeric id in the collection; an explicit id must not already exist.
func (s *Store) Insert(ctx context.Context, name string, rec Record) (Record, error) {
	return s.InsertFunc(ctx, name, func([]Record, int64) (Record, error) {
		return rec, nil
	})
}

// InsertFunc runs build under the write lock with the current records and the
// next free id, then appends and flushes whatever build returns. Returning an
// error from build aborts the insert untouched.
func (s *Store) InsertFunc(ctx context.Context, name string, build func(items []Record, nextID int64) (Record, error)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.doc[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	rec, err := build(items, nextID(items))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("nil record")
	}
	rec = rec.Clone()
	if id, ok := IDOf(rec); ok {
		if indexOf(items, id) >= 0 {
			return nil, ErrDuplicateID
		}
	} else {
		rec["id"] = nextID(items)
	}

	updated := make([]Record, len(items), len(items)+1)
	copy(updated, items)
	updated = append(updated, rec)
	if err := s.commit(ctx, name, updated); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Replace swaps the record with the given id for rec, keeping the id.
func (s *Store) Replace(ctx context.Context, name, id string, rec Record) (Record, error) {
	return s.update(ctx, name, id, func(old Record) Record {
		next := rec.Clone()
		next["id"] = old["id"]
		return next
	})
}

// Patch merges fields into the record with the given id. The id is kept.
func (s *Store) Patch(ctx context.Context, name, id string, fields Record) (Record, error) {
	return s.update(ctx, name, id, func(old Record) Record {
		next := old.Clone()
		for k, v := range fields.Clone() {
			next[k] = v
		}
		next["id"] = old["id"]
		return next
	})
}

func (s *Store) Delete(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.doc[name]
	if !ok {
		return ErrUnknownCollection
	}
	i := indexOf(items, id)
	if i < 0 {
		return ErrNotFound
	}
	updated := make([]Record, 0, len(items)-1)
	updated = append(updated, items[:i]...)
	updated = append(updated, items[i+1:]...)
	return s.commit(ctx, name, updated)
}

func (s *Store) update(ctx context.Context, name, id string, fn func(Record) Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.doc[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	updated := make([]Record, len(items))
	copy(updated, items)
	updated[i] = fn(items[i])
	if err := s.commit(ctx, name, updated); err != nil {
		return nil, err
	}
	return updated[i].Clone(), nil
}

// commit installs items and flushes; the previous slice is restored when the
// backend rejects the write. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, name string, items []Record) error {
	prev := s.doc[name]
	s.doc[name] = items
	if err := s.backend.Save(ctx, s.doc, name); err != nil {
		s.doc[name] = prev
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

// IDOf returns the canonical string form of rec's id.
func IDOf(rec Record) (string, bool) {
	v, ok := rec["id"]
	if !ok || v == nil {
		return "", false
	}
	s := Stringify(v)
	return s, s != ""
}

// NumericID returns rec's id as an integer when it is a whole number.
func NumericID(rec Record) (int64, bool) {
	return AsInt64(rec["id"])
}

// Stringify renders a JSON scalar the way it would print in the document.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// AsInt64 converts JSON numbers to int64 when they hold a whole value.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	case float64:
		return wholeFloat(t)
	case int64:
		return t, true
	case int:
		return int64(t), true
	}
	return 0, false
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// DecodeRecord reads a single JSON object, keeping numbers as json.Number.
func DecodeRecord(r io.Reader) (Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("expected a JSON object")
	}
	return rec, nil
}

// Clone deep-copies r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}

func cloneRecords(items []Record) []Record {
	out := make([]Record, len(items))
	for i, r := range items {
		out[i] = r.Clone()
	}
	return out
}

func indexOf(items []Record, id string) int {
	for i, r := range items {
		if rid, ok := IDOf(r); ok && rid == id {
			return i
		}
	}
	return -1
}

// nextID mirrors the document's convention: numeric-looking ids count,
// everything else is treated as zero.
func nextID(items []Record) int64 {
	var max int64
	for _, r := range items {
		id, ok := NumericID(r)
		if !ok {
			if s, isStr := r["id"].(string); isStr {
				id, _ = strconv.ParseInt(s, 10, 64)
			}
		}
		if id > max {
			max = id
		}
	}
	return max + 1
}
